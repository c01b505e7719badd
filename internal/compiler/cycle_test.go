package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/plan"
)

func TestBuildPlanGraph_SharedSubtreeOnce(t *testing.T) {
	shared := plan.Scan("T")
	root := plan.Join(plan.Filter(shared, plan.Lit(true)), shared, nil)

	g := buildPlanGraph(root)

	require.Len(t, g.nodes, 3)
	assert.Equal(t, [][]int{{1, 2}, {2}, nil}, g.edges)
	assert.Nil(t, g.findCycle())
}

func TestFindCycle_SelfLoop(t *testing.T) {
	n := &plan.Node{Kind: plan.KindFilter}
	n.Children = []*plan.Node{n}

	g := buildPlanGraph(n)

	assert.Equal(t, []string{"filter@0", "filter@0"}, g.findCycle())
}

func TestFindCycle_TwoNodeCycle(t *testing.T) {
	a := &plan.Node{Kind: plan.KindFilter}
	b := &plan.Node{Kind: plan.KindSort, Children: []*plan.Node{a}}
	a.Children = []*plan.Node{b}
	root := plan.Limit(a, 1, 0)

	cycle := buildPlanGraph(root).findCycle()

	assert.Equal(t, []string{"filter@1", "sort@2", "filter@1"}, cycle)
	assert.Equal(t, "filter@1 -> sort@2 -> filter@1", formatCycle(cycle))
}

func TestFindCycle_DAG(t *testing.T) {
	root := plan.Join(plan.Scan("A"), plan.Filter(plan.Scan("B"), plan.Lit(true)), nil)

	g := buildPlanGraph(root)

	assert.Nil(t, g.findCycle())
	assert.Equal(t, "scan(A)@1", g.label(1))
}

func TestTarjanSCC_Components(t *testing.T) {
	g := &planGraph{
		nodes: make([]*plan.Node, 4),
		edges: [][]int{{1}, {2}, {1, 3}, nil},
	}

	sccs := g.tarjanSCC()

	assert.Len(t, sccs, 3)
	assert.ElementsMatch(t, [][]int{{3}, {2, 1}, {0}}, sccs)
}
