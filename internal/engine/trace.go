package engine

import (
	"cmp"
	"slices"
	"sync"

	"github.com/roach88/vquery/internal/node"
)

// TraceEvent records one successful stage of one node.
//
// Events carry no digests or timings so traces of the same plan over the same
// data are identical across runs and backends.
type TraceEvent struct {
	Seq      int         `json:"seq" yaml:"seq"`
	Phase    Phase       `json:"phase" yaml:"phase"`
	Position int         `json:"position" yaml:"position"`
	Label    string      `json:"label" yaml:"label"`
	Kind     node.OpKind `json:"kind" yaml:"kind"`
	Rows     int         `json:"rows" yaml:"rows"`
	Stage    string      `json:"stage" yaml:"stage"`
}

// Trace collects events from concurrent workers.
type Trace struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (t *Trace) record(phase Phase, n *node.Node) {
	ev := TraceEvent{
		Phase:    phase,
		Position: n.Position,
		Label:    n.Label,
		Kind:     n.Kind(),
		Rows:     n.Output().Rows(),
		Stage:    n.Stage().String(),
	}
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

// Events returns the events ordered by phase then position, numbered from 1.
// Completion order within a wave is not observable.
func (t *Trace) Events() []TraceEvent {
	t.mu.Lock()
	out := slices.Clone(t.events)
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b TraceEvent) int {
		if c := cmp.Compare(a.Phase.rank(), b.Phase.rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	for i := range out {
		out[i].Seq = i + 1
	}
	return out
}
