package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

func TestBuilders(t *testing.T) {
	scan := Scan("T")
	f := Filter(scan, Bin(">", Col(0), Lit(5)))

	assert.Equal(t, KindFilter, f.Kind)
	assert.Same(t, scan, f.Children[0])
	assert.Equal(t, Literal{Value: ir.IRInt(5)}, f.Predicate.(Binary).Right)
}

func TestLitRejectsFloat(t *testing.T) {
	assert.Panics(t, func() { Lit(1.5) })
}

func TestNodeExprsOrder(t *testing.T) {
	n := &Node{
		Kind:       KindAggregate,
		Predicate:  Lit(true),
		Columns:    []NamedExpr{As("c", Col(0))},
		GroupBy:    []NamedExpr{As("g", Col(1))},
		Aggregates: []NamedExpr{As("a", AggCall{Func: "count"})},
		SortKeys:   []SortKey{{Expr: Col(2)}},
	}

	assert.Equal(t, []Expr{Lit(true), Col(0), Col(1), AggCall{Func: "count"}, Col(2)}, n.Exprs())
}

func TestMapResolver(t *testing.T) {
	u := table.MustCommit(table.NewPage(), table.NewSchema("a", table.ColumnInt))
	r := MapResolver{"T": u, "A": u}

	got, err := r.Resolve("T")
	require.NoError(t, err)
	assert.Same(t, u, got)

	_, err = r.Resolve("missing")
	assert.True(t, errors.Is(err, ErrSourceNotFound))
	assert.Equal(t, []string{"A", "T"}, r.Names())
}
