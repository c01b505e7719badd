package node

import (
	"fmt"

	"github.com/roach88/vquery/internal/table"
)

type refKind uint8

const (
	refNode refKind = iota + 1
	refSource
)

// InputRef points at one input of a node: another node's output or a
// committed data unit.
type InputRef struct {
	kind     refKind
	position int
	handle   string
	unit     *table.Unit
}

// NodeRef refers to the output of the node at position.
func NodeRef(position int) InputRef {
	return InputRef{kind: refNode, position: position}
}

// SourceRef refers to a committed data unit by handle.
func SourceRef(handle string, u *table.Unit) InputRef {
	return InputRef{kind: refSource, handle: handle, unit: u}
}

// IsNode reports whether r is a NodeRef.
func (r InputRef) IsNode() bool { return r.kind == refNode }

// IsSource reports whether r is a SourceRef.
func (r InputRef) IsSource() bool { return r.kind == refSource }

// Position returns the referenced node position. Only meaningful for NodeRef.
func (r InputRef) Position() int { return r.position }

// Handle returns the source handle. Only meaningful for SourceRef.
func (r InputRef) Handle() string { return r.handle }

// Unit returns the referenced data unit. Only meaningful for SourceRef.
func (r InputRef) Unit() *table.Unit { return r.unit }

func (r InputRef) String() string {
	switch r.kind {
	case refNode:
		return fmt.Sprintf("node(%d)", r.position)
	case refSource:
		return fmt.Sprintf("source(%s)", r.handle)
	default:
		return "invalid"
	}
}
