package expr

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// ErrEval is wrapped by every evaluation error.
var ErrEval = errors.New("evaluation error")

// Eval evaluates e against one row.
//
// Both operands of AND and OR are always evaluated, matching the circuit.
// Integer overflow is an error, never a wrap.
func Eval(e Expr, row []ir.IRValue) (ir.IRValue, error) {
	switch x := e.(type) {
	case Literal:
		return x.Value, nil

	case Column:
		if x.Index < 0 || x.Index >= len(row) {
			return nil, fmt.Errorf("%w: column $%d out of range for row of %d", ErrEval, x.Index, len(row))
		}
		return row[x.Index], nil

	case Not:
		v, err := Eval(x.Operand, row)
		if err != nil {
			return nil, err
		}
		b, ok := v.(ir.IRBool)
		if !ok {
			return nil, fmt.Errorf("%w: NOT of %s", ErrEval, ir.TypeName(v))
		}
		return !b, nil

	case Neg:
		v, err := Eval(x.Operand, row)
		if err != nil {
			return nil, err
		}
		n, ok := v.(ir.IRInt)
		if !ok {
			return nil, fmt.Errorf("%w: negation of %s", ErrEval, ir.TypeName(v))
		}
		if n == math.MinInt64 {
			return nil, fmt.Errorf("%w: integer overflow in -%d", ErrEval, n)
		}
		return -n, nil

	case Binary:
		l, err := Eval(x.Left, row)
		if err != nil {
			return nil, err
		}
		r, err := Eval(x.Right, row)
		if err != nil {
			return nil, err
		}
		return evalBinary(x.Op, l, r)

	default:
		return nil, fmt.Errorf("%w: unknown expression %T", ErrEval, e)
	}
}

// EvalBool evaluates a predicate.
func EvalBool(e Expr, row []ir.IRValue) (bool, error) {
	v, err := Eval(e, row)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, fmt.Errorf("%w: predicate produced %s, want bool", ErrEval, ir.TypeName(v))
	}
	return bool(b), nil
}

func evalBinary(op Op, l, r ir.IRValue) (ir.IRValue, error) {
	switch {
	case op.IsComparison():
		c, err := ir.Compare(l, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEval, op, err)
		}
		switch op {
		case OpEq:
			return ir.IRBool(c == 0), nil
		case OpNe:
			return ir.IRBool(c != 0), nil
		case OpLt:
			return ir.IRBool(c < 0), nil
		case OpLe:
			return ir.IRBool(c <= 0), nil
		case OpGt:
			return ir.IRBool(c > 0), nil
		default:
			return ir.IRBool(c >= 0), nil
		}

	case op.IsLogical():
		lb, lok := l.(ir.IRBool)
		rb, rok := r.(ir.IRBool)
		if !lok || !rok {
			return nil, fmt.Errorf("%w: %s of %s and %s", ErrEval, op, ir.TypeName(l), ir.TypeName(r))
		}
		if op == OpAnd {
			return lb && rb, nil
		}
		return lb || rb, nil

	case op.IsArithmetic():
		ln, lok := l.(ir.IRInt)
		rn, rok := r.(ir.IRInt)
		if !lok || !rok {
			return nil, fmt.Errorf("%w: %s of %s and %s", ErrEval, op, ir.TypeName(l), ir.TypeName(r))
		}
		return arith(op, int64(ln), int64(rn))

	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrEval, op)
	}
}

func arith(op Op, a, b int64) (ir.IRValue, error) {
	var out int64
	switch op {
	case OpAdd:
		out = a + b
		if (b > 0 && out < a) || (b < 0 && out > a) {
			return nil, fmt.Errorf("%w: integer overflow in %d + %d", ErrEval, a, b)
		}
	case OpSub:
		out = a - b
		if (b < 0 && out < a) || (b > 0 && out > a) {
			return nil, fmt.Errorf("%w: integer overflow in %d - %d", ErrEval, a, b)
		}
	case OpMul:
		if a != 0 && b != 0 {
			out = a * b
			if out/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return nil, fmt.Errorf("%w: integer overflow in %d * %d", ErrEval, a, b)
			}
		}
	}
	return ir.IRInt(out), nil
}

// TypeOf checks e against an input schema and returns its result type.
func TypeOf(e Expr, s table.Schema) (table.ColumnType, error) {
	switch x := e.(type) {
	case Literal:
		t := table.ColumnType(ir.TypeName(x.Value))
		if !t.Valid() {
			return "", fmt.Errorf("%w: literal of type %s", ErrEval, t)
		}
		return t, nil

	case Column:
		if x.Index < 0 || x.Index >= s.Len() {
			return "", fmt.Errorf("%w: column $%d out of range for %s", ErrEval, x.Index, s)
		}
		return s.Columns[x.Index].Type, nil

	case Not:
		t, err := TypeOf(x.Operand, s)
		if err != nil {
			return "", err
		}
		if t != table.ColumnBool {
			return "", fmt.Errorf("%w: NOT of %s", ErrEval, t)
		}
		return table.ColumnBool, nil

	case Neg:
		t, err := TypeOf(x.Operand, s)
		if err != nil {
			return "", err
		}
		if t != table.ColumnInt {
			return "", fmt.Errorf("%w: negation of %s", ErrEval, t)
		}
		return table.ColumnInt, nil

	case Binary:
		lt, err := TypeOf(x.Left, s)
		if err != nil {
			return "", err
		}
		rt, err := TypeOf(x.Right, s)
		if err != nil {
			return "", err
		}
		switch {
		case x.Op.IsComparison():
			if lt != rt {
				return "", fmt.Errorf("%w: %s compares %s with %s", ErrEval, x.Op, lt, rt)
			}
			return table.ColumnBool, nil
		case x.Op.IsLogical():
			if lt != table.ColumnBool || rt != table.ColumnBool {
				return "", fmt.Errorf("%w: %s of %s and %s", ErrEval, x.Op, lt, rt)
			}
			return table.ColumnBool, nil
		case x.Op.IsArithmetic():
			if lt != table.ColumnInt || rt != table.ColumnInt {
				return "", fmt.Errorf("%w: %s of %s and %s", ErrEval, x.Op, lt, rt)
			}
			return table.ColumnInt, nil
		}
		return "", fmt.Errorf("%w: unknown operator %q", ErrEval, x.Op)

	default:
		return "", fmt.Errorf("%w: unknown expression %T", ErrEval, e)
	}
}
