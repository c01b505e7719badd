package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/proof"
)

func TestProveBeforeKeyGen(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	require.NoError(t, r.RunPhase(ctx, a, PhaseExecute))

	err := r.Prove(ctx, a, 0)
	require.Error(t, err)
	assert.True(t, IsInputNotReady(err))
	assert.ErrorIs(t, err, ErrInputNotReady)
	assert.Nil(t, a.At(0).Proof())
	assert.Equal(t, node.StageExecuted, a.At(0).Stage())
}

func TestExecuteBeforeInputs(t *testing.T) {
	r := newTestRunner(t)
	a := flatten(t, scanFilter())

	err := r.Execute(context.Background(), a, 1)
	assert.ErrorIs(t, err, ErrInputNotReady)
	assert.True(t, a.At(1).Output().IsZero())
}

func TestKeyGenBeforeExecute(t *testing.T) {
	r := newTestRunner(t)
	a := flatten(t, scanFilter())

	err := r.KeyGen(context.Background(), a, 0)
	assert.ErrorIs(t, err, ErrInputNotReady)
}

func TestVerifyBeforeProve(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	require.NoError(t, r.RunPhase(ctx, a, PhaseExecute))
	require.NoError(t, r.RunPhase(ctx, a, PhaseKeyGen))

	v, err := r.Verify(ctx, a, 0)
	assert.False(t, v.OK)
	assert.ErrorIs(t, err, ErrInputNotReady)
	assert.False(t, IsVerificationFailed(err))
}

func TestProveRequiresProvedAncestors(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	require.NoError(t, r.RunPhase(ctx, a, PhaseExecute))
	require.NoError(t, r.RunPhase(ctx, a, PhaseKeyGen))

	err := r.Prove(ctx, a, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProve)

	require.NoError(t, r.Prove(ctx, a, 0))
	require.NoError(t, r.Prove(ctx, a, 1))
}

func TestStageRunsOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	require.NoError(t, r.Execute(ctx, a, 0))

	err := r.Execute(ctx, a, 0)
	assert.ErrorIs(t, err, ErrStageOrder)
	assert.ErrorIs(t, err, node.ErrStageOrder)
}

func TestStageUnknownPosition(t *testing.T) {
	r := newTestRunner(t)
	a := flatten(t, scanFilter())

	assert.Error(t, r.Execute(context.Background(), a, 5))
	_, err := r.Verify(context.Background(), a, -1)
	assert.Error(t, err)
}

func TestProveShapeMismatch(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	require.NoError(t, r.RunPhase(ctx, a, PhaseExecute))
	require.NoError(t, r.RunPhase(ctx, a, PhaseKeyGen))
	require.NoError(t, r.Prove(ctx, a, 0))

	// An output with a different schema does not fit the filter's circuit.
	pairs := pairUnit([2]any{7, "x"})
	require.NoError(t, a.Root().OverrideOutput(node.Output{Unit: pairs}))

	err := r.Prove(ctx, a, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProve)
	assert.ErrorIs(t, err, proof.ErrShapeMismatch)
}

type failingBackend struct {
	*proof.Reference
}

func (failingBackend) KeyGen(*proof.Circuit) (*proof.ProvingKey, *proof.VerifyingKey, error) {
	return nil, nil, proof.ErrUnsupportedShape
}

func TestKeyGenBackendError(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, WithBackend(failingBackend{proof.NewReferenceWithSeed("x")}))
	a := flatten(t, scanFilter())
	require.NoError(t, r.RunPhase(ctx, a, PhaseExecute))

	err := r.KeyGen(ctx, a, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeygen)
	assert.ErrorIs(t, err, proof.ErrUnsupportedShape)
	assert.Equal(t, node.StageExecuted, a.At(0).Stage())

	_, err = r.Run(ctx, flatten(t, scanFilter()))
	assert.ErrorIs(t, err, ErrKeygen)
}

func TestVerifyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	a := flatten(t, scanFilter())
	_, err := r.Run(ctx, a)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := r.VerifyRoot(ctx, a)
		require.NoError(t, err)
		assert.True(t, v.OK)
	}
	require.NoError(t, r.RunPhase(ctx, a, PhaseVerify))
	for _, n := range a.Nodes() {
		assert.Equal(t, node.StageVerified, n.Stage())
	}
}

func TestVerifyUsesRecordedKeys(t *testing.T) {
	ctx := context.Background()
	prover := newTestRunner(t)
	a := flatten(t, scanFilter())
	_, err := prover.Run(ctx, a)
	require.NoError(t, err)

	other := newTestRunner(t, WithBackend(proof.NewReferenceWithSeed("someone else")))
	v, err := other.VerifyRoot(ctx, a)
	require.NoError(t, err, "verification uses the node's recorded verifying key")
	assert.True(t, v.OK)
}

func TestPipelineErrorFormat(t *testing.T) {
	err := newNodeError(ErrCodeProve, PhaseProve, 3, ErrInputNotReady, "ancestor %s is %s", "scan#0", "executed")
	assert.Equal(t,
		"PROVE_ERROR: ancestor scan#0 is executed (phase=prove, node=3): input not ready",
		err.Error())

	run := &PipelineError{Code: ErrCodeKeygen, Phase: PhaseKeyGen, Position: -1, Message: "no backend"}
	assert.Equal(t, "KEYGEN_ERROR: no backend (phase=keygen)", run.Error())
}
