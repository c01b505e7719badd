package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockStartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())
}

func TestClockResumesFromStoredSeq(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())

	r := newTestRunner(t, WithClock(c))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rep, err := r.Run(ctx, flatten(t, scanFilter()))
	assert.NoError(t, err)
	assert.Equal(t, int64(43), rep.Seq)
}

func TestClockConcurrentNextUnique(t *testing.T) {
	c := NewClock()
	const goroutines, calls = 50, 100

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*calls)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < calls; n++ {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), c.Current())
}
