package expr

import (
	"fmt"

	"github.com/roach88/vquery/internal/ir"
)

// Op is a binary operator.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpAnd Op = "AND"
	OpOr  Op = "OR"
)

// IsComparison reports whether op compares two values of one type.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsArithmetic reports whether op is an int operator.
func (op Op) IsArithmetic() bool {
	return op == OpAdd || op == OpSub || op == OpMul
}

// IsLogical reports whether op is a boolean combinator.
func (op Op) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Expr is a restricted expression.
//
// This is a sealed interface; only types in this package implement it.
type Expr interface {
	restricted()

	// Children returns the operands in evaluation order.
	Children() []Expr

	String() string
}

// Literal is a constant int, bool or text value.
type Literal struct {
	Value ir.IRValue
}

// Column reads the input column at Index.
type Column struct {
	Index int
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Not is boolean negation.
type Not struct {
	Operand Expr
}

// Neg is integer negation.
type Neg struct {
	Operand Expr
}

func (Literal) restricted() {}
func (Column) restricted()  {}
func (Binary) restricted()  {}
func (Not) restricted()     {}
func (Neg) restricted()     {}

func (Literal) Children() []Expr  { return nil }
func (Column) Children() []Expr   { return nil }
func (b Binary) Children() []Expr { return []Expr{b.Left, b.Right} }
func (n Not) Children() []Expr    { return []Expr{n.Operand} }
func (n Neg) Children() []Expr    { return []Expr{n.Operand} }

func (l Literal) String() string {
	if s, ok := l.Value.(ir.IRString); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return fmt.Sprintf("%v", l.Value)
}

func (c Column) String() string { return fmt.Sprintf("$%d", c.Index) }

func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

func (n Not) String() string { return fmt.Sprintf("NOT %s", n.Operand) }

func (n Neg) String() string { return fmt.Sprintf("-%s", n.Operand) }

// Arity returns the number of direct children.
func Arity(e Expr) int {
	return len(e.Children())
}

// Walk visits e and its descendants in pre-order.
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// MaxColumn returns the largest column index referenced by e, or -1.
func MaxColumn(e Expr) int {
	top := -1
	Walk(e, func(x Expr) {
		if c, ok := x.(Column); ok && c.Index > top {
			top = c.Index
		}
	})
	return top
}

// Shape returns the canonical structural description of e. Two expressions
// with equal shapes compile to the same circuit.
func Shape(e Expr) ir.IRObject {
	switch x := e.(type) {
	case Literal:
		return ir.IRObject{"kind": ir.IRString("lit"), "type": ir.IRString(ir.TypeName(x.Value)), "value": x.Value}
	case Column:
		return ir.IRObject{"kind": ir.IRString("col"), "index": ir.IRInt(x.Index)}
	case Binary:
		return ir.IRObject{
			"kind": ir.IRString("binary"),
			"op":   ir.IRString(x.Op),
			"args": ir.IRArray{Shape(x.Left), Shape(x.Right)},
		}
	case Not:
		return ir.IRObject{"kind": ir.IRString("not"), "args": ir.IRArray{Shape(x.Operand)}}
	case Neg:
		return ir.IRObject{"kind": ir.IRString("neg"), "args": ir.IRArray{Shape(x.Operand)}}
	default:
		panic(fmt.Sprintf("expr.Shape: unknown expression %T", e))
	}
}

// Lit builds a literal from a Go int, int64, bool or string.
func Lit(v any) Literal {
	val, err := ir.FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("expr.Lit: %v", err))
	}
	return Literal{Value: val}
}

// Col builds a column reference.
func Col(i int) Column { return Column{Index: i} }

// Bin builds a binary expression.
func Bin(op Op, l, r Expr) Binary { return Binary{Op: op, Left: l, Right: r} }
