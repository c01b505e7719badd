package proof

import (
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

var (
	// ErrUnsupportedShape is returned by KeyGen for circuits it cannot build.
	ErrUnsupportedShape = errors.New("unsupported circuit shape")

	// ErrShapeMismatch is returned by Prove when the witness does not fit the
	// circuit the proving key was generated for.
	ErrShapeMismatch = errors.New("witness does not match circuit shape")
)

// Relation decides whether a witness satisfies a circuit.
//
// Check returns false for a witness of the right shape whose data does not
// satisfy the relation. It returns an error only when the witness does not fit
// the shape at all.
type Relation interface {
	Check(w Witness) (bool, error)
}

// RelationFunc adapts a function to Relation.
type RelationFunc func(w Witness) (bool, error)

// Check implements Relation.
func (f RelationFunc) Check(w Witness) (bool, error) { return f(w) }

// Circuit is a compiled shape.
type Circuit struct {
	// Shape is the canonical description the circuit is built from.
	Shape ir.IRObject
	// Digest identifies the shape. Equal digests mean interchangeable keys.
	Digest ir.Digest
	// Inputs is the number of committed inputs the circuit expects.
	Inputs int
	// Scalar is true when the output is a committed scalar instead of a unit.
	Scalar bool

	Relation Relation
}

// NewCircuit hashes shape and binds it to a relation.
func NewCircuit(shape ir.IRObject, inputs int, scalar bool, rel Relation) (*Circuit, error) {
	if rel == nil {
		return nil, fmt.Errorf("%w: no relation", ErrUnsupportedShape)
	}
	digest, err := ir.HashCanonical(ir.DomainShape, shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
	}
	return &Circuit{Shape: shape, Digest: digest, Inputs: inputs, Scalar: scalar, Relation: rel}, nil
}

// Witness is the private data a proof attests to.
type Witness struct {
	Inputs []*table.Unit
	Output *table.Unit
	Scalar *table.Scalar
}

// PublicInputs are the values both prover and verifier see.
type PublicInputs struct {
	Inputs []ir.Digest
	Output ir.Digest
}

// Canonical returns the canonical encoding that proofs bind.
func (p PublicInputs) Canonical() ([]byte, error) {
	ins := make(ir.IRArray, len(p.Inputs))
	for i, d := range p.Inputs {
		ins[i] = ir.IRString(d)
	}
	return ir.MarshalCanonical(ir.IRObject{
		"inputs": ins,
		"output": ir.IRString(p.Output),
	})
}

// ProvingKey is bound to one circuit.
type ProvingKey struct {
	Circuit *Circuit
	secret  []byte
}

// VerifyingKey is bound to one circuit digest.
type VerifyingKey struct {
	Circuit ir.Digest
	secret  []byte
}

// Proof attests that a witness satisfying Circuit exists for some public inputs.
type Proof struct {
	Backend string    `json:"backend"`
	Circuit ir.Digest `json:"circuit"`
	Tag     []byte    `json:"tag"`
}

// Backend is a proof system.
type Backend interface {
	Name() string
	KeyGen(c *Circuit) (*ProvingKey, *VerifyingKey, error)
	Prove(pk *ProvingKey, public PublicInputs, w Witness) (*Proof, error)
	Verify(vk *VerifyingKey, public PublicInputs, p *Proof) (bool, error)
}
