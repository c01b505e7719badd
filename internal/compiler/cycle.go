package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/vquery/internal/plan"
)

// planGraph is the child graph of a plan in discovery order.
type planGraph struct {
	nodes []*plan.Node
	index map[*plan.Node]int
	edges [][]int
}

// buildPlanGraph discovers every node reachable from root. Shared subtrees and
// back edges are recorded once; discovery never loops.
func buildPlanGraph(root *plan.Node) *planGraph {
	g := &planGraph{index: make(map[*plan.Node]int)}

	var visit func(*plan.Node) int
	visit = func(n *plan.Node) int {
		if id, ok := g.index[n]; ok {
			return id
		}
		id := len(g.nodes)
		g.index[n] = id
		g.nodes = append(g.nodes, n)
		g.edges = append(g.edges, nil)
		for _, c := range n.Children {
			if c == nil {
				continue
			}
			child := visit(c)
			g.edges[id] = append(g.edges[id], child)
		}
		return id
	}
	visit(root)
	return g
}

func (g *planGraph) label(id int) string {
	n := g.nodes[id]
	if n.Kind == plan.KindScan {
		return fmt.Sprintf("scan(%s)@%d", n.Table, id)
	}
	return fmt.Sprintf("%s@%d", n.Kind, id)
}

// findCycle returns one cycle as a path of labels, or nil for a DAG.
//
// Strongly connected components are found with Tarjan's algorithm; any
// component with more than one node, or a node with a self edge, is a cycle.
func (g *planGraph) findCycle() []string {
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			return g.cyclePath(scc)
		}
	}
	return nil
}

func (g *planGraph) hasSelfLoop(id int) bool {
	for _, w := range g.edges[id] {
		if w == id {
			return true
		}
	}
	return false
}

func (g *planGraph) tarjanSCC() [][]int {
	var (
		counter = 0
		stack   []int
		indices = make([]int, len(g.nodes))
		lowlink = make([]int, len(g.nodes))
		onStack = make([]bool, len(g.nodes))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range g.nodes {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// cyclePath walks edges inside the component from its smallest member until
// it returns to the start.
func (g *planGraph) cyclePath(scc []int) []string {
	member := make(map[int]bool, len(scc))
	start := scc[0]
	for _, id := range scc {
		member[id] = true
		if id < start {
			start = id
		}
	}

	path := []string{g.label(start)}
	visited := map[int]bool{}
	current := start
	for {
		visited[current] = true
		next := -1
		for _, w := range g.edges[current] {
			if member[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next < 0 {
			break
		}
		path = append(path, g.label(next))
		if next == start {
			break
		}
		current = next
	}
	return path
}

func formatCycle(path []string) string {
	return strings.Join(path, " -> ")
}
