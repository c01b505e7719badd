package table

import (
	"fmt"

	"github.com/roach88/vquery/internal/ir"
)

// Unit is a committed data unit: a page bound to its schema by a commitment.
//
// Fields are exported for read access. A Unit must be treated as read-only once
// created; any number of nodes may share one concurrently.
type Unit struct {
	Page       Page
	Schema     Schema
	Commitment ir.Digest
}

// Commit binds a page to a schema. The rows are validated against the schema and
// cloned, so later changes to the caller's slices do not reach the unit.
// Commit is pure and deterministic.
func Commit(page Page, schema Schema) (*Unit, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := CheckRows(page, schema); err != nil {
		return nil, err
	}

	u := &Unit{Page: page.Clone(), Schema: schema.Clone()}
	digest, err := computeCommitment(u.Page, u.Schema)
	if err != nil {
		return nil, err
	}
	u.Commitment = digest
	return u, nil
}

// MustCommit is like Commit but panics on error.
// Use only in tests and fixtures.
func MustCommit(page Page, schema Schema) *Unit {
	u, err := Commit(page, schema)
	if err != nil {
		panic(err)
	}
	return u
}

func computeCommitment(page Page, schema Schema) (ir.Digest, error) {
	schemaDigest, err := schema.Digest()
	if err != nil {
		return "", fmt.Errorf("commit schema: %w", err)
	}
	payload, err := EncodePage(page)
	if err != nil {
		return "", err
	}
	return ir.HashWithDomain(ir.DomainUnit, []byte(schemaDigest), payload), nil
}

// VerifyCommitment recomputes the commitment of u and compares it with the
// recorded one. Returns an error wrapping ErrCommitmentMismatch if the page or
// schema changed after commitment.
func VerifyCommitment(u *Unit) error {
	if u == nil {
		return fmt.Errorf("%w: nil unit", ErrCommitmentMismatch)
	}
	digest, err := computeCommitment(u.Page, u.Schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentMismatch, err)
	}
	if digest != u.Commitment {
		return fmt.Errorf("%w: recorded %s, computed %s",
			ErrCommitmentMismatch, u.Commitment.Short(), digest.Short())
	}
	return nil
}

// Verify reports whether the recorded commitment matches the content.
func (u *Unit) Verify() bool {
	return VerifyCommitment(u) == nil
}

// Rows returns the number of rows.
func (u *Unit) Rows() int { return u.Page.Len() }

// Payload returns the canonical page bytes, the artifact the store persists.
func (u *Unit) Payload() ([]byte, error) {
	return EncodePage(u.Page)
}

// Assemble rebuilds a unit from independently stored artifacts: a page payload,
// a schema descriptor, and the commitment recorded when the unit was created.
// The commitment is checked; a mismatch returns ErrCommitmentMismatch.
func Assemble(payload, descriptor []byte, commitment ir.Digest) (*Unit, error) {
	schema, err := UnmarshalSchema(descriptor)
	if err != nil {
		return nil, err
	}
	page, err := DecodePage(payload)
	if err != nil {
		return nil, err
	}
	if err := CheckRows(page, schema); err != nil {
		return nil, err
	}

	u := &Unit{Page: page, Schema: schema, Commitment: commitment}
	if err := VerifyCommitment(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Scalar is the committed output of a terminal aggregate.
type Scalar struct {
	Value      ir.IRValue
	Commitment ir.Digest
}

// CommitScalar binds a single value under its own domain so a scalar can never
// collide with a one-row, one-column unit.
func CommitScalar(v ir.IRValue) (*Scalar, error) {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("commit scalar: %w", err)
	}
	return &Scalar{Value: v, Commitment: ir.HashWithDomain(ir.DomainScalar, b)}, nil
}

// VerifyScalar recomputes a scalar commitment.
func VerifyScalar(s *Scalar) error {
	if s == nil {
		return fmt.Errorf("%w: nil scalar", ErrCommitmentMismatch)
	}
	fresh, err := CommitScalar(s.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentMismatch, err)
	}
	if fresh.Commitment != s.Commitment {
		return fmt.Errorf("%w: scalar recorded %s, computed %s",
			ErrCommitmentMismatch, s.Commitment.Short(), fresh.Commitment.Short())
	}
	return nil
}
