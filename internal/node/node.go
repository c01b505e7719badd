package node

import (
	"fmt"
	"sync"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

// Output is what Execute produces: a committed unit, or a committed scalar for
// terminal aggregates. Exactly one field is set.
type Output struct {
	Unit   *table.Unit
	Scalar *table.Scalar
}

// Commitment returns the commitment of whichever output is set.
func (o Output) Commitment() ir.Digest {
	if o.Scalar != nil {
		return o.Scalar.Commitment
	}
	if o.Unit != nil {
		return o.Unit.Commitment
	}
	return ""
}

// Rows returns the row count of a unit output, or 1 for a scalar.
func (o Output) Rows() int {
	if o.Scalar != nil {
		return 1
	}
	if o.Unit != nil {
		return o.Unit.Rows()
	}
	return 0
}

// IsZero reports whether neither field is set.
func (o Output) IsZero() bool { return o.Unit == nil && o.Scalar == nil }

// Node is one operator instance.
//
// Position, Label, Op, Inputs and Schema are fixed at creation. Stage-owned
// fields are written once each, by the record method for that stage.
type Node struct {
	Position int
	Label    string
	Op       Operation
	Inputs   []InputRef
	// Schema is the output schema. A scalar output has one column.
	Schema table.Schema

	mu     sync.RWMutex
	stage  Stage
	output Output
	pk     *proof.ProvingKey
	vk     *proof.VerifyingKey
	proof  *proof.Proof
}

// New returns a node in StageCreated.
func New(op Operation, inputs []InputRef, schema table.Schema) *Node {
	return &Node{Op: op, Inputs: inputs, Schema: schema}
}

// Kind returns the operation kind.
func (n *Node) Kind() OpKind { return n.Op.Kind() }

// Stage returns the current stage.
func (n *Node) Stage() Stage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stage
}

// Output returns the executed output. It is zero before StageExecuted.
func (n *Node) Output() Output {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.output
}

// Keys returns the key material. Both are nil before StageKeyGenerated.
func (n *Node) Keys() (*proof.ProvingKey, *proof.VerifyingKey) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pk, n.vk
}

// Proof returns the proof. It is nil before StageProved.
func (n *Node) Proof() *proof.Proof {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.proof
}

// advance moves from want to want+1. Caller holds mu.
func (n *Node) advance(want Stage) error {
	if n.stage != want {
		return &StageError{Position: n.Position, Current: n.stage, Want: want, To: want + 1}
	}
	n.stage = want + 1
	return nil
}

// SetOutput records the executed output: Created -> Executed.
func (n *Node) SetOutput(out Output) error {
	if out.IsZero() {
		return fmt.Errorf("node %d: empty output", n.Position)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.advance(StageCreated); err != nil {
		return err
	}
	n.output = out
	return nil
}

// SetKeys records key material: Executed -> KeyGenerated.
func (n *Node) SetKeys(pk *proof.ProvingKey, vk *proof.VerifyingKey) error {
	if pk == nil || vk == nil {
		return fmt.Errorf("node %d: nil key", n.Position)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.advance(StageExecuted); err != nil {
		return err
	}
	n.pk, n.vk = pk, vk
	return nil
}

// SetProof records the proof: KeyGenerated -> Proved.
func (n *Node) SetProof(p *proof.Proof) error {
	if p == nil {
		return fmt.Errorf("node %d: nil proof", n.Position)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.advance(StageKeyGenerated); err != nil {
		return err
	}
	n.proof = p
	return nil
}

// MarkVerified records a successful verification: Proved -> Verified.
func (n *Node) MarkVerified() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.advance(StageProved)
}

// OverrideOutput replaces the executed output without changing the stage.
// It simulates a dishonest executor and exists for tamper tests and the demo.
func (n *Node) OverrideOutput(out Output) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage < StageExecuted {
		return &StageError{Position: n.Position, Current: n.stage, Want: StageExecuted, To: n.stage}
	}
	n.output = out
	return nil
}

func (n *Node) String() string {
	if n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("%s#%d", n.Kind(), n.Position)
}
