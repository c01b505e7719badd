package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/compiler"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/testutil"
)

var (
	intUnit = testutil.IntUnit
	ints    = testutil.Ints

	quietLogger = testutil.QuietLogger
)

func testResolver() plan.MapResolver {
	return plan.MapResolver{
		"T": intUnit(3, 7, 9),
		"A": intUnit(1, 2, 3),
		"B": intUnit(2, 3, 4),
	}
}

func scanFilter() *plan.Node {
	return plan.Filter(plan.Scan("T"), plan.Bin(">", plan.Col(0), plan.Lit(5)))
}

func flatten(t *testing.T, root *plan.Node) *node.Arena {
	t.Helper()
	a, err := flattenWith(testResolver(), root)
	require.NoError(t, err)
	return a
}

func flattenWith(res plan.MapResolver, root *plan.Node) (*node.Arena, error) {
	return compiler.Flatten(root, res)
}

func newTestRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	base := []Option{
		WithBackend(proof.NewReferenceWithSeed("engine-test")),
		WithLogger(testutil.QuietLogger()),
		WithRunIDs(NewFixedGenerator("run-1", "run-2", "run-3")),
	}
	r, err := NewRunner(append(base, opts...)...)
	require.NoError(t, err)
	return r
}
