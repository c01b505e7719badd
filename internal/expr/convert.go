package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/plan"
)

// ErrUnsupportedExpr matches every *UnsupportedExprError.
var ErrUnsupportedExpr = errors.New("unsupported expression")

// UnsupportedExprError reports the first plan expression node that has no
// restricted equivalent.
type UnsupportedExprError struct {
	// Construct names the rejected node, e.g. "call", "cast", "binary op LIKE".
	Construct string
	// Path locates the node from the root, e.g. "root.left.args[0]".
	Path   string
	Detail string
}

func (e *UnsupportedExprError) Error() string {
	msg := fmt.Sprintf("unsupported expression %s at %s", e.Construct, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedExpr) true.
func (e *UnsupportedExprError) Is(target error) bool {
	return target == ErrUnsupportedExpr
}

// IsUnsupported reports whether err is or wraps an *UnsupportedExprError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedExprError
	return errors.As(err, &ue)
}

// Lowering rewrites a whitelisted function call into restricted combinators.
// Args are already converted, in call order.
type Lowering func(args []Expr) (Expr, error)

// Converter translates plan expressions. The zero value is not usable; use
// NewConverter.
type Converter struct {
	funcs map[string]Lowering
}

// Option configures a Converter.
type Option func(*Converter)

// WithFunction whitelists a function name. Calls to it are converted by
// lowering; calls to any other function are rejected.
func WithFunction(name string, lowering Lowering) Option {
	return func(c *Converter) {
		c.funcs[strings.ToLower(name)] = lowering
	}
}

// NewConverter returns a converter with the given whitelist.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{funcs: make(map[string]Lowering)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultConverter = NewConverter()

// FromPlanExpr converts e with no whitelisted functions.
func FromPlanExpr(e plan.Expr) (Expr, error) {
	return defaultConverter.Convert(e)
}

// Convert translates e, preserving tree shape and child order.
func (c *Converter) Convert(e plan.Expr) (Expr, error) {
	return c.convert(e, "root")
}

func (c *Converter) convert(e plan.Expr, path string) (Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, &UnsupportedExprError{Construct: "nil", Path: path}

	case plan.Literal:
		switch x.Value.(type) {
		case ir.IRInt, ir.IRBool, ir.IRString:
			return Literal{Value: x.Value}, nil
		default:
			return nil, &UnsupportedExprError{
				Construct: "literal",
				Path:      path,
				Detail:    fmt.Sprintf("%s literals are not provable", ir.TypeName(x.Value)),
			}
		}

	case plan.ColumnRef:
		if x.Index < 0 {
			return nil, &UnsupportedExprError{Construct: "column", Path: path, Detail: fmt.Sprintf("negative index %d", x.Index)}
		}
		return Column{Index: x.Index}, nil

	case plan.Binary:
		op, ok := binaryOp(x.Op)
		if !ok {
			return nil, &UnsupportedExprError{Construct: "binary op " + x.Op, Path: path}
		}
		left, err := c.convert(x.Left, path+".left")
		if err != nil {
			return nil, err
		}
		right, err := c.convert(x.Right, path+".right")
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, Left: left, Right: right}, nil

	case plan.Unary:
		switch strings.ToUpper(x.Op) {
		case "NOT":
			operand, err := c.convert(x.Operand, path+".operand")
			if err != nil {
				return nil, err
			}
			return Not{Operand: operand}, nil
		case "-":
			operand, err := c.convert(x.Operand, path+".operand")
			if err != nil {
				return nil, err
			}
			return Neg{Operand: operand}, nil
		default:
			return nil, &UnsupportedExprError{Construct: "unary op " + x.Op, Path: path}
		}

	case plan.Call:
		lowering, ok := c.funcs[strings.ToLower(x.Name)]
		if !ok {
			return nil, &UnsupportedExprError{Construct: "call", Path: path, Detail: fmt.Sprintf("function %q is not whitelisted", x.Name)}
		}
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			arg, err := c.convert(a, fmt.Sprintf("%s.args[%d]", path, i))
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		lowered, err := lowering(args)
		if err != nil {
			return nil, &UnsupportedExprError{Construct: "call", Path: path, Detail: fmt.Sprintf("%s: %v", x.Name, err)}
		}
		return lowered, nil

	case plan.Cast:
		return nil, &UnsupportedExprError{Construct: "cast", Path: path, Detail: "to " + x.Type}

	case plan.AggCall:
		return nil, &UnsupportedExprError{Construct: "aggregate", Path: path, Detail: x.Func}

	case plan.Subquery:
		return nil, &UnsupportedExprError{Construct: "subquery", Path: path}

	default:
		return nil, &UnsupportedExprError{Construct: fmt.Sprintf("%T", e), Path: path}
	}
}

func binaryOp(s string) (Op, bool) {
	switch op := Op(strings.ToUpper(s)); op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAdd, OpSub, OpMul, OpAnd, OpOr:
		return op, true
	case "==":
		return OpEq, true
	case "<>":
		return OpNe, true
	}
	return "", false
}

// Between lowers between(x, lo, hi) into x >= lo AND x <= hi.
func Between(args []Expr) (Expr, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("between takes 3 args, got %d", len(args))
	}
	return Binary{
		Op:    OpAnd,
		Left:  Binary{Op: OpGe, Left: args[0], Right: args[1]},
		Right: Binary{Op: OpLe, Left: args[0], Right: args[2]},
	}, nil
}
