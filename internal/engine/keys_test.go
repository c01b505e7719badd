package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
)

type countingBackend struct {
	*proof.Reference
	calls atomic.Int32
}

func (b *countingBackend) KeyGen(c *proof.Circuit) (*proof.ProvingKey, *proof.VerifyingKey, error) {
	b.calls.Add(1)
	return b.Reference.KeyGen(c)
}

func testCircuit(t *testing.T, kind string) *proof.Circuit {
	t.Helper()
	c, err := proof.NewCircuit(ir.IRObject{"kind": ir.IRString(kind)}, 1, false,
		proof.RelationFunc(func(proof.Witness) (bool, error) { return true, nil }))
	require.NoError(t, err)
	return c
}

func TestKeyCacheGeneratesOncePerDigest(t *testing.T) {
	b := &countingBackend{Reference: proof.NewReferenceWithSeed("cache")}
	k := newKeyCache()
	c := testCircuit(t, "scan")

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := k.get(b, c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, 1, k.len())

	kp, hit, err := k.get(b, c)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, c.Digest, kp.vk.Circuit)

	_, hit, err = k.get(b, testCircuit(t, "filter"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, k.len())

	k.reset()
	assert.Equal(t, 0, k.len())
}
