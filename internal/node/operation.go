package node

import (
	"github.com/roach88/vquery/internal/expr"
	"github.com/roach88/vquery/internal/ir"
)

// OpKind names an operation.
type OpKind string

const (
	OpScan       OpKind = "scan"
	OpFilter     OpKind = "filter"
	OpProjection OpKind = "project"
	OpJoin       OpKind = "join"
	OpAggregate  OpKind = "aggregate"
	OpLimit      OpKind = "limit"
	OpSort       OpKind = "sort"
)

// Operation is the relational operator a node applies.
//
// This is a sealed interface; only types in this package implement it.
type Operation interface {
	Kind() OpKind

	// Exprs returns the restricted expressions of the operation in a fixed order.
	Exprs() []expr.Expr

	// Params returns the non-expression parameters that are part of the shape.
	Params() ir.IRObject

	operation()
}

// Scan passes a committed data unit through unchanged.
type Scan struct{}

// Filter keeps rows for which Predicate is true.
type Filter struct {
	Predicate expr.Expr
}

// Projection computes one output column per expression.
type Projection struct {
	Columns []expr.Expr
	Names   []string
}

// Join is an inner nested-loop join. On addresses the left columns followed by
// the right columns.
type Join struct {
	On expr.Expr
}

// AggFunc is an aggregate function.
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// AggCall is one aggregate output column. Arg is nil for count(*).
type AggCall struct {
	Func AggFunc
	Arg  expr.Expr
	Name string
}

// Aggregate groups rows by GroupBy and computes Aggs per group.
//
// A terminal aggregate (the plan root) with no group-by and exactly one
// aggregate produces a committed scalar instead of a unit.
type Aggregate struct {
	GroupBy    []expr.Expr
	GroupNames []string
	Aggs       []AggCall
	Terminal   bool
}

// Limit skips Offset rows and keeps at most Count.
type Limit struct {
	Count  int64
	Offset int64
}

// SortKey orders rows by an expression.
type SortKey struct {
	Expr expr.Expr
	Desc bool
}

// Sort is a stable sort by Keys.
type Sort struct {
	Keys []SortKey
}

func (Scan) Kind() OpKind       { return OpScan }
func (Filter) Kind() OpKind     { return OpFilter }
func (Projection) Kind() OpKind { return OpProjection }
func (Join) Kind() OpKind       { return OpJoin }
func (Aggregate) Kind() OpKind  { return OpAggregate }
func (Limit) Kind() OpKind      { return OpLimit }
func (Sort) Kind() OpKind       { return OpSort }

func (Scan) operation()       {}
func (Filter) operation()     {}
func (Projection) operation() {}
func (Join) operation()       {}
func (Aggregate) operation()  {}
func (Limit) operation()      {}
func (Sort) operation()       {}

func (Scan) Exprs() []expr.Expr         { return nil }
func (f Filter) Exprs() []expr.Expr     { return []expr.Expr{f.Predicate} }
func (p Projection) Exprs() []expr.Expr { return p.Columns }
func (j Join) Exprs() []expr.Expr       { return []expr.Expr{j.On} }
func (Limit) Exprs() []expr.Expr        { return nil }

func (a Aggregate) Exprs() []expr.Expr {
	out := append([]expr.Expr(nil), a.GroupBy...)
	for _, c := range a.Aggs {
		if c.Arg != nil {
			out = append(out, c.Arg)
		}
	}
	return out
}

func (s Sort) Exprs() []expr.Expr {
	out := make([]expr.Expr, len(s.Keys))
	for i, k := range s.Keys {
		out[i] = k.Expr
	}
	return out
}

func (Scan) Params() ir.IRObject   { return ir.IRObject{} }
func (Filter) Params() ir.IRObject { return ir.IRObject{} }
func (Join) Params() ir.IRObject   { return ir.IRObject{} }

func (p Projection) Params() ir.IRObject {
	return ir.IRObject{"names": stringArray(p.Names)}
}

func (a Aggregate) Params() ir.IRObject {
	aggs := make(ir.IRArray, len(a.Aggs))
	for i, c := range a.Aggs {
		aggs[i] = ir.IRObject{
			"func":    ir.IRString(c.Func),
			"name":    ir.IRString(c.Name),
			"has_arg": ir.IRBool(c.Arg != nil),
		}
	}
	return ir.IRObject{
		"groups": stringArray(a.GroupNames),
		"aggs":   aggs,
		"scalar": ir.IRBool(a.ScalarOutput()),
	}
}

func (l Limit) Params() ir.IRObject {
	return ir.IRObject{"count": ir.IRInt(l.Count), "offset": ir.IRInt(l.Offset)}
}

func (s Sort) Params() ir.IRObject {
	dirs := make(ir.IRArray, len(s.Keys))
	for i, k := range s.Keys {
		dirs[i] = ir.IRBool(k.Desc)
	}
	return ir.IRObject{"desc": dirs}
}

// ScalarOutput reports whether the aggregate produces a single committed value.
func (a Aggregate) ScalarOutput() bool {
	return a.Terminal && len(a.GroupBy) == 0 && len(a.Aggs) == 1
}

func stringArray(ss []string) ir.IRArray {
	out := make(ir.IRArray, len(ss))
	for i, s := range ss {
		out[i] = ir.IRString(s)
	}
	return out
}
