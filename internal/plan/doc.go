// Package plan is the boundary to the query front-end.
//
// A plan is a tree (or DAG, when a subtree is shared by pointer) of relational
// operators. Each Node exposes its operator kind, its children, the expressions
// attached to it, and optionally the output schema the front-end expects.
//
// Plan expressions are deliberately richer than what can be proved. They carry
// function calls, casts, aggregate calls and subqueries so the restricted
// expression converter has something to reject.
//
// Expr is a sealed interface using the marker method pattern:
//
//	switch e := expr.(type) {
//	case Literal:
//	case ColumnRef:
//	case Binary:
//	case Unary:
//	case Call:
//	case Cast:
//	case AggCall:
//	case Subquery:
//	}
//
// Plans are built in Go or loaded from CUE with CompileString and LoadFile.
package plan
