package proof

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

var schema = table.NewSchema("v", table.ColumnInt)

func unit(vals ...int64) *table.Unit {
	rows := make([]table.Row, len(vals))
	for i, v := range vals {
		rows[i] = table.Row{ir.IRInt(v)}
	}
	return table.MustCommit(table.NewPage(rows...), schema)
}

// identity holds when the output has the same rows as the single input.
var identity = RelationFunc(func(w Witness) (bool, error) {
	if len(w.Inputs) != 1 {
		return false, errors.New("identity takes one input")
	}
	return ir.Equal(w.Inputs[0].Page.Canonical(), w.Output.Page.Canonical()), nil
})

func identityCircuit(t *testing.T) *Circuit {
	t.Helper()
	c, err := NewCircuit(ir.IRObject{"kind": ir.IRString("identity")}, 1, false, identity)
	require.NoError(t, err)
	return c
}

func publicFor(in, out *table.Unit) PublicInputs {
	return PublicInputs{Inputs: []ir.Digest{in.Commitment}, Output: out.Commitment}
}

func TestReferenceRoundTrip(t *testing.T) {
	b := NewReferenceWithSeed("test")
	c := identityCircuit(t)

	pk, vk, err := b.KeyGen(c)
	require.NoError(t, err)

	in, out := unit(1, 2), unit(1, 2)
	pub := publicFor(in, out)
	p, err := b.Prove(pk, pub, Witness{Inputs: []*table.Unit{in}, Output: out})
	require.NoError(t, err)
	assert.Equal(t, ReferenceName, p.Backend)
	assert.Equal(t, c.Digest, p.Circuit)

	ok, err := b.Verify(vk, pub, p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReferenceUnsatisfiedRelationDoesNotVerify(t *testing.T) {
	b := NewReferenceWithSeed("test")
	pk, vk, err := b.KeyGen(identityCircuit(t))
	require.NoError(t, err)

	in, out := unit(1, 2), unit(1, 3)
	pub := publicFor(in, out)
	p, err := b.Prove(pk, pub, Witness{Inputs: []*table.Unit{in}, Output: out})
	require.NoError(t, err, "an unsatisfied witness still yields a proof")

	ok, err := b.Verify(vk, pub, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceWitnessMustOpenPublicInputs(t *testing.T) {
	b := NewReferenceWithSeed("test")
	pk, vk, err := b.KeyGen(identityCircuit(t))
	require.NoError(t, err)

	in, out := unit(1, 2), unit(1, 2)
	pub := publicFor(in, unit(5))
	p, err := b.Prove(pk, pub, Witness{Inputs: []*table.Unit{in}, Output: out})
	require.NoError(t, err)

	ok, err := b.Verify(vk, pub, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceChangedPublicInputsDoNotVerify(t *testing.T) {
	b := NewReferenceWithSeed("test")
	pk, vk, err := b.KeyGen(identityCircuit(t))
	require.NoError(t, err)

	in, out := unit(1, 2), unit(1, 2)
	p, err := b.Prove(pk, publicFor(in, out), Witness{Inputs: []*table.Unit{in}, Output: out})
	require.NoError(t, err)

	ok, err := b.Verify(vk, publicFor(in, unit(1)), p)
	require.NoError(t, err)
	assert.False(t, ok)

	p.Tag[0] ^= 0xff
	ok, err = b.Verify(vk, publicFor(in, out), p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceKeysAreBackendSpecific(t *testing.T) {
	c := identityCircuit(t)
	b1 := NewReferenceWithSeed("one")
	b2 := NewReferenceWithSeed("two")

	pk, _, err := b1.KeyGen(c)
	require.NoError(t, err)
	_, vk2, err := b2.KeyGen(c)
	require.NoError(t, err)

	in := unit(4)
	pub := publicFor(in, in)
	p, err := b1.Prove(pk, pub, Witness{Inputs: []*table.Unit{in}, Output: in})
	require.NoError(t, err)

	ok, err := b2.Verify(vk2, pub, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceRandomSeed(t *testing.T) {
	b, err := NewReference()
	require.NoError(t, err)
	assert.Len(t, b.seed, 32)
}

func TestReferenceShapeMismatch(t *testing.T) {
	b := NewReferenceWithSeed("test")
	pk, _, err := b.KeyGen(identityCircuit(t))
	require.NoError(t, err)

	in := unit(1)
	_, err = b.Prove(pk, PublicInputs{Output: in.Commitment}, Witness{Output: in})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	s, err := table.CommitScalar(ir.IRInt(1))
	require.NoError(t, err)
	_, err = b.Prove(pk, PublicInputs{Inputs: []ir.Digest{in.Commitment}, Output: s.Commitment},
		Witness{Inputs: []*table.Unit{in}, Scalar: s})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = b.Prove(nil, PublicInputs{}, Witness{})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestKeyGenUnsupportedShape(t *testing.T) {
	b := NewReferenceWithSeed("test")

	_, _, err := b.KeyGen(&Circuit{Digest: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	_, err = NewCircuit(ir.IRObject{"kind": ir.IRString("x")}, 1, false, nil)
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	_, err = NewCircuit(ir.IRObject{"bad": ir.IRNull{}}, 1, false, identity)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestCircuitDigestIsShapeOnly(t *testing.T) {
	a, err := NewCircuit(ir.IRObject{"kind": ir.IRString("identity")}, 1, false, identity)
	require.NoError(t, err)
	b, err := NewCircuit(ir.IRObject{"kind": ir.IRString("identity")}, 1, false, identity)
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)
}
