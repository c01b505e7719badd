package expr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/plan"
)

func TestFromPlanExprPreservesShape(t *testing.T) {
	// (col0 > 5) AND NOT (col1 = "x" OR -col2 <= col0 * 3)
	in := plan.Bin("AND",
		plan.Bin(">", plan.Col(0), plan.Lit(5)),
		plan.Unary{Op: "NOT", Operand: plan.Bin("OR",
			plan.Bin("=", plan.Col(1), plan.Lit("x")),
			plan.Bin("<=",
				plan.Unary{Op: "-", Operand: plan.Col(2)},
				plan.Bin("*", plan.Col(0), plan.Lit(3)),
			),
		)},
	)

	got, err := FromPlanExpr(in)
	require.NoError(t, err)

	want := Bin(OpAnd,
		Bin(OpGt, Col(0), Lit(5)),
		Not{Operand: Bin(OpOr,
			Bin(OpEq, Col(1), Lit("x")),
			Bin(OpLe, Neg{Operand: Col(2)}, Bin(OpMul, Col(0), Lit(3))),
		)},
	)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, Arity(got))
	assert.Equal(t, `(($0 > 5) AND NOT (($1 = "x") OR (-$2 <= ($0 * 3))))`, got.String())
}

func TestFromPlanExprChildOrder(t *testing.T) {
	got, err := FromPlanExpr(plan.Bin("-", plan.Col(1), plan.Col(0)))
	require.NoError(t, err)

	children := got.Children()
	require.Len(t, children, 2)
	assert.Equal(t, Col(1), children[0])
	assert.Equal(t, Col(0), children[1])
}

func TestFromPlanExprOperatorAliases(t *testing.T) {
	for in, want := range map[string]Op{"==": OpEq, "<>": OpNe, "and": OpAnd, "or": OpOr} {
		t.Run(in, func(t *testing.T) {
			got, err := FromPlanExpr(plan.Bin(in, plan.Lit(true), plan.Lit(false)))
			require.NoError(t, err)
			assert.Equal(t, want, got.(Binary).Op)
		})
	}
}

func TestFromPlanExprRejects(t *testing.T) {
	tests := []struct {
		name      string
		in        plan.Expr
		construct string
		path      string
	}{
		{"udf", plan.Call{Name: "my_udf", Args: []plan.Expr{plan.Col(0)}}, "call", "root"},
		{"cast", plan.Cast{Operand: plan.Col(0), Type: "int"}, "cast", "root"},
		{"aggregate", plan.AggCall{Func: "sum", Arg: plan.Col(0)}, "aggregate", "root"},
		{"subquery", plan.Subquery{Plan: plan.Scan("T")}, "subquery", "root"},
		{"like", plan.Bin("LIKE", plan.Col(0), plan.Lit("a%")), "binary op LIKE", "root"},
		{"division", plan.Bin("/", plan.Col(0), plan.Lit(2)), "binary op /", "root"},
		{"null literal", plan.Literal{Value: ir.IRNull{}}, "literal", "root"},
		{"negative column", plan.ColumnRef{Index: -1}, "column", "root"},
		{"nil", nil, "nil", "root"},
		{"unknown unary", plan.Unary{Op: "~", Operand: plan.Col(0)}, "unary op ~", "root"},
		{
			"nested udf",
			plan.Bin("AND", plan.Lit(true), plan.Bin("=", plan.Col(0), plan.Call{Name: "lower", Args: []plan.Expr{plan.Col(1)}})),
			"call", "root.right.right",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromPlanExpr(tt.in)
			require.Error(t, err)
			assert.Nil(t, got, "no partial conversion")
			assert.True(t, errors.Is(err, ErrUnsupportedExpr))
			assert.True(t, IsUnsupported(err))

			var ue *UnsupportedExprError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.construct, ue.Construct)
			assert.Equal(t, tt.path, ue.Path)
		})
	}
}

func TestFromPlanExprStopsAtFirstUnsupported(t *testing.T) {
	in := plan.Bin("AND",
		plan.Cast{Operand: plan.Col(0), Type: "bool"},
		plan.Call{Name: "udf"},
	)

	_, err := FromPlanExpr(in)
	var ue *UnsupportedExprError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "cast", ue.Construct)
	assert.Equal(t, "root.left", ue.Path)
}

func TestConverterWithFunction(t *testing.T) {
	c := NewConverter(WithFunction("between", Between))

	got, err := c.Convert(plan.Call{Name: "BETWEEN", Args: []plan.Expr{plan.Col(0), plan.Lit(1), plan.Lit(9)}})
	require.NoError(t, err)
	assert.Equal(t, Bin(OpAnd, Bin(OpGe, Col(0), Lit(1)), Bin(OpLe, Col(0), Lit(9))), got)

	_, err = c.Convert(plan.Call{Name: "between", Args: []plan.Expr{plan.Col(0)}})
	assert.ErrorIs(t, err, ErrUnsupportedExpr)

	_, err = c.Convert(plan.Call{Name: "other"})
	assert.ErrorIs(t, err, ErrUnsupportedExpr)
}

func TestConverterLoweringError(t *testing.T) {
	c := NewConverter(WithFunction("boom", func([]Expr) (Expr, error) {
		return nil, fmt.Errorf("no lowering")
	}))

	_, err := c.Convert(plan.Call{Name: "boom"})
	var ue *UnsupportedExprError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Error(), "no lowering")
}

func TestShapeIsCanonical(t *testing.T) {
	a := Bin(OpGt, Col(0), Lit(5))
	b := Bin(OpGt, Col(0), Lit(5))
	c := Bin(OpGt, Col(1), Lit(5))

	da := ir.MustHashCanonical(ir.DomainShape, Shape(a))
	assert.Equal(t, da, ir.MustHashCanonical(ir.DomainShape, Shape(b)))
	assert.NotEqual(t, da, ir.MustHashCanonical(ir.DomainShape, Shape(c)))

	assert.Equal(t,
		`{"args":[{"index":0,"kind":"col"},{"kind":"lit","type":"int","value":5}],"kind":"binary","op":">"}`,
		string(ir.MustMarshalCanonical(Shape(a))))
}

func TestMaxColumn(t *testing.T) {
	assert.Equal(t, -1, MaxColumn(Lit(1)))
	assert.Equal(t, 4, MaxColumn(Bin(OpAnd, Bin(OpEq, Col(4), Col(1)), Not{Operand: Col(2)})))
}
