package node

import (
	"errors"
	"fmt"
)

// ErrNotTopological is returned by Validate when an input does not precede its
// consumer.
var ErrNotTopological = errors.New("node sequence is not topologically ordered")

// Arena owns the nodes of one pipeline run. Position equals index.
type Arena struct {
	nodes []*Node
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Append adds n at the next position and returns that position.
func (a *Arena) Append(n *Node) int {
	n.Position = len(a.nodes)
	if n.Label == "" {
		n.Label = fmt.Sprintf("%s#%d", n.Kind(), n.Position)
	}
	a.nodes = append(a.nodes, n)
	return n.Position
}

// Len returns the number of nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// At returns the node at pos, or nil if out of range.
func (a *Arena) At(pos int) *Node {
	if pos < 0 || pos >= len(a.nodes) {
		return nil
	}
	return a.nodes[pos]
}

// Nodes returns the nodes in position order. The slice must not be modified.
func (a *Arena) Nodes() []*Node { return a.nodes }

// Root returns the last node, the one whose output answers the query.
func (a *Arena) Root() *Node {
	if len(a.nodes) == 0 {
		return nil
	}
	return a.nodes[len(a.nodes)-1]
}

// Validate checks that every NodeRef points strictly backwards and every
// SourceRef carries a unit.
func (a *Arena) Validate() error {
	for pos, n := range a.nodes {
		if n.Position != pos {
			return fmt.Errorf("%w: node at index %d records position %d", ErrNotTopological, pos, n.Position)
		}
		for _, in := range n.Inputs {
			switch {
			case in.IsNode():
				if in.Position() < 0 || in.Position() >= pos {
					return fmt.Errorf("%w: node %d reads %s", ErrNotTopological, pos, in)
				}
			case in.IsSource():
				if in.Unit() == nil {
					return fmt.Errorf("node %d: %s has no unit", pos, in)
				}
			default:
				return fmt.Errorf("node %d: invalid input reference", pos)
			}
		}
	}
	return nil
}

// Ancestors returns the positions of every node pos transitively reads, in
// ascending order.
func (a *Arena) Ancestors(pos int) []int {
	seen := make([]bool, len(a.nodes))
	var visit func(int)
	visit = func(p int) {
		for _, in := range a.nodes[p].Inputs {
			if in.IsNode() && !seen[in.Position()] {
				seen[in.Position()] = true
				visit(in.Position())
			}
		}
	}
	visit(pos)

	var out []int
	for p, ok := range seen {
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// Waves groups positions by dependency depth. A node's wave is one more than
// the deepest node it reads; nodes reading only sources are in wave 0. Nodes
// within a wave have no edge between them. Requires a valid arena.
func (a *Arena) Waves() [][]int {
	depth := make([]int, len(a.nodes))
	maxDepth := -1
	for pos, n := range a.nodes {
		d := 0
		for _, in := range n.Inputs {
			if in.IsNode() && depth[in.Position()]+1 > d {
				d = depth[in.Position()] + 1
			}
		}
		depth[pos] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]int, maxDepth+1)
	for pos, d := range depth {
		waves[d] = append(waves[d], pos)
	}
	return waves
}
