package plan

import (
	"fmt"
	"strings"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// Kind names a relational operator.
// Kinds outside the supported set are representable so the flattener can
// reject them.
type Kind string

const (
	KindScan       Kind = "scan"
	KindFilter     Kind = "filter"
	KindProjection Kind = "project"
	KindJoin       Kind = "join"
	KindAggregate  Kind = "aggregate"
	KindLimit      Kind = "limit"
	KindSort       Kind = "sort"
)

// Node is one operator in a plan.
//
// Which fields are meaningful depends on Kind:
//
//	scan       Table
//	filter     Children[0], Predicate
//	project    Children[0], Columns
//	join       Children[0] (left), Children[1] (right), Predicate (over left ++ right)
//	aggregate  Children[0], GroupBy, Aggregates (each an AggCall)
//	limit      Children[0], Count, Offset
//	sort       Children[0], SortKeys
type Node struct {
	Kind       Kind
	Table      string
	Children   []*Node
	Predicate  Expr
	Columns    []NamedExpr
	GroupBy    []NamedExpr
	Aggregates []NamedExpr
	SortKeys   []SortKey
	Count      int64
	Offset     int64

	// Schema is the output schema declared by the front-end, if any.
	// When set, the flattener checks it against the derived schema.
	Schema *table.Schema
}

// NamedExpr is an expression with an output column name.
type NamedExpr struct {
	Name string
	Expr Expr
}

// SortKey orders rows by an expression.
type SortKey struct {
	Expr Expr
	Desc bool
}

// Exprs returns every expression attached to n, in a fixed order:
// predicate, columns, group-by, aggregates, sort keys.
func (n *Node) Exprs() []Expr {
	var out []Expr
	if n.Predicate != nil {
		out = append(out, n.Predicate)
	}
	for _, c := range n.Columns {
		out = append(out, c.Expr)
	}
	for _, g := range n.GroupBy {
		out = append(out, g.Expr)
	}
	for _, a := range n.Aggregates {
		out = append(out, a.Expr)
	}
	for _, k := range n.SortKeys {
		out = append(out, k.Expr)
	}
	return out
}

// String renders the node and its subtree on one line.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Kind == KindScan {
		return fmt.Sprintf("scan(%s)", n.Table)
	}
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", n.Kind, strings.Join(parts, ", "))
}

// Scan builds a scan of a named table.
func Scan(name string) *Node {
	return &Node{Kind: KindScan, Table: name}
}

// Filter builds a filter over input.
func Filter(input *Node, predicate Expr) *Node {
	return &Node{Kind: KindFilter, Children: []*Node{input}, Predicate: predicate}
}

// Project builds a projection over input.
func Project(input *Node, columns ...NamedExpr) *Node {
	return &Node{Kind: KindProjection, Children: []*Node{input}, Columns: columns}
}

// Join builds an inner join. The predicate addresses columns of the left input
// followed by columns of the right input.
func Join(left, right *Node, on Expr) *Node {
	return &Node{Kind: KindJoin, Children: []*Node{left, right}, Predicate: on}
}

// Aggregate builds a grouped aggregation.
func Aggregate(input *Node, groupBy []NamedExpr, aggs ...NamedExpr) *Node {
	return &Node{Kind: KindAggregate, Children: []*Node{input}, GroupBy: groupBy, Aggregates: aggs}
}

// Limit builds a limit with offset.
func Limit(input *Node, count, offset int64) *Node {
	return &Node{Kind: KindLimit, Children: []*Node{input}, Count: count, Offset: offset}
}

// Sort builds a sort.
func Sort(input *Node, keys ...SortKey) *Node {
	return &Node{Kind: KindSort, Children: []*Node{input}, SortKeys: keys}
}

// Expr is a plan expression.
//
// This is a sealed interface; only types in this package implement it.
type Expr interface {
	planExpr()
}

// Literal is a constant value. Only int, bool and text are meaningful.
type Literal struct {
	Value ir.IRValue
}

// ColumnRef refers to an input column by position. Name is informational.
type ColumnRef struct {
	Index int
	Name  string
}

// Binary applies an infix operator, e.g. ">", "+", "AND", "LIKE".
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Unary applies a prefix operator, e.g. "NOT", "-".
type Unary struct {
	Op      string
	Operand Expr
}

// Call is a scalar function call.
type Call struct {
	Name string
	Args []Expr
}

// Cast converts Operand to Type.
type Cast struct {
	Operand Expr
	Type    string
}

// AggCall is an aggregate function call. Arg is nil for COUNT(*).
type AggCall struct {
	Func     string
	Arg      Expr
	Distinct bool
}

// Subquery embeds a nested plan.
type Subquery struct {
	Plan *Node
}

func (Literal) planExpr()   {}
func (ColumnRef) planExpr() {}
func (Binary) planExpr()    {}
func (Unary) planExpr()     {}
func (Call) planExpr()      {}
func (Cast) planExpr()      {}
func (AggCall) planExpr()   {}
func (Subquery) planExpr()  {}

// Lit builds a literal from a Go int, int64, bool or string.
func Lit(v any) Literal {
	val, err := ir.FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("plan.Lit: %v", err))
	}
	return Literal{Value: val}
}

// Col builds a positional column reference.
func Col(index int) ColumnRef {
	return ColumnRef{Index: index}
}

// Bin builds a binary expression.
func Bin(op string, left, right Expr) Binary {
	return Binary{Op: op, Left: left, Right: right}
}

// As names an expression.
func As(name string, e Expr) NamedExpr {
	return NamedExpr{Name: name, Expr: e}
}
