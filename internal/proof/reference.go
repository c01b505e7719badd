package proof

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// ReferenceName is the backend name recorded in proofs.
const ReferenceName = "reference-blake2b"

const (
	verdictAccept byte = 1
	verdictReject byte = 0
)

// Reference is the transparent reference backend.
//
// Keys are derived from a seed and the circuit digest with keyed BLAKE2b.
// A proof is a keyed tag over the circuit digest, the canonical public inputs
// and a verdict byte. Only a witness that satisfies the relation and opens
// the public commitments yields the accepting tag.
type Reference struct {
	seed []byte
}

// NewReference returns a backend with a fresh random seed. Keys from two
// instances are never interchangeable.
func NewReference() (*Reference, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("reference backend seed: %w", err)
	}
	return &Reference{seed: seed}, nil
}

// NewReferenceWithSeed returns a deterministic backend.
func NewReferenceWithSeed(seed string) *Reference {
	sum := blake2b.Sum256([]byte(seed))
	return &Reference{seed: sum[:]}
}

// Name implements Backend.
func (r *Reference) Name() string { return ReferenceName }

// KeyGen implements Backend.
func (r *Reference) KeyGen(c *Circuit) (*ProvingKey, *VerifyingKey, error) {
	if c == nil || c.Relation == nil {
		return nil, nil, fmt.Errorf("%w: circuit has no relation", ErrUnsupportedShape)
	}
	if c.Digest == "" {
		return nil, nil, fmt.Errorf("%w: circuit has no digest", ErrUnsupportedShape)
	}

	mac, err := blake2b.New256(r.seed)
	if err != nil {
		return nil, nil, err
	}
	mac.Write([]byte("vquery/keygen/v1"))
	mac.Write([]byte{0x00})
	mac.Write([]byte(c.Digest))
	secret := mac.Sum(nil)

	return &ProvingKey{Circuit: c, secret: secret},
		&VerifyingKey{Circuit: c.Digest, secret: secret},
		nil
}

// Prove implements Backend.
//
// A witness of the wrong shape is an error. A witness of the right shape that
// does not open the public inputs or does not satisfy the relation produces a
// proof that will not verify.
func (r *Reference) Prove(pk *ProvingKey, public PublicInputs, w Witness) (*Proof, error) {
	if pk == nil || pk.Circuit == nil {
		return nil, fmt.Errorf("%w: nil proving key", ErrShapeMismatch)
	}
	c := pk.Circuit
	if len(w.Inputs) != c.Inputs || len(public.Inputs) != c.Inputs {
		return nil, fmt.Errorf("%w: circuit %s takes %d inputs, witness has %d, public has %d",
			ErrShapeMismatch, c.Digest.Short(), c.Inputs, len(w.Inputs), len(public.Inputs))
	}
	if c.Scalar != (w.Scalar != nil) || (w.Scalar == nil && w.Output == nil) {
		return nil, fmt.Errorf("%w: circuit %s output kind does not match witness", ErrShapeMismatch, c.Digest.Short())
	}

	satisfied, err := c.Relation.Check(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if satisfied {
		satisfied = opens(public, w)
	}

	verdict := verdictReject
	if satisfied {
		verdict = verdictAccept
	}
	tag, err := r.tag(pk.secret, c.Digest, public, verdict)
	if err != nil {
		return nil, err
	}
	return &Proof{Backend: ReferenceName, Circuit: c.Digest, Tag: tag}, nil
}

// Verify implements Backend.
func (r *Reference) Verify(vk *VerifyingKey, public PublicInputs, p *Proof) (bool, error) {
	if vk == nil || p == nil {
		return false, nil
	}
	if p.Backend != ReferenceName || p.Circuit != vk.Circuit {
		return false, nil
	}
	want, err := r.tag(vk.secret, vk.Circuit, public, verdictAccept)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, p.Tag) == 1, nil
}

func (r *Reference) tag(secret []byte, circuit ir.Digest, public PublicInputs, verdict byte) ([]byte, error) {
	pub, err := public.Canonical()
	if err != nil {
		return nil, fmt.Errorf("encode public inputs: %w", err)
	}
	mac, err := blake2b.New256(secret)
	if err != nil {
		return nil, err
	}
	mac.Write([]byte("vquery/proof/v1"))
	mac.Write([]byte{0x00})
	mac.Write([]byte(circuit))
	mac.Write([]byte{0x00})
	mac.Write(pub)
	mac.Write([]byte{0x00, verdict})
	return mac.Sum(nil), nil
}

// opens reports whether the witness data is exactly what the public
// commitments bind.
func opens(public PublicInputs, w Witness) bool {
	for i, u := range w.Inputs {
		if table.VerifyCommitment(u) != nil || u.Commitment != public.Inputs[i] {
			return false
		}
	}
	if w.Scalar != nil {
		return table.VerifyScalar(w.Scalar) == nil && w.Scalar.Commitment == public.Output
	}
	return table.VerifyCommitment(w.Output) == nil && w.Output.Commitment == public.Output
}
