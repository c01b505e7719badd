// Package expr is the restricted expression language: the subset of plan
// expressions that can be embedded in a proof circuit.
//
// A restricted expression is a tree of Literal, Column, Binary, Not and Neg
// nodes. The tree shape and child order of the plan expression are preserved
// exactly, because the circuit encodes evaluation order.
//
// Conversion is fail-fast: the first unsupported node or operator aborts the
// whole conversion with an *UnsupportedExprError and no partial tree.
package expr
