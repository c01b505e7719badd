package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntUnit(t *testing.T) {
	u := IntUnit(3, 7, 9)
	assert.True(t, u.Verify())
	assert.Equal(t, []int64{3, 7, 9}, Ints(u))
	assert.Equal(t, u.Commitment, IntUnit(3, 7, 9).Commitment)
	assert.NotEqual(t, u.Commitment, IntUnit(9, 7, 3).Commitment)
}

func TestIntsNil(t *testing.T) {
	assert.Nil(t, Ints(nil))
	assert.Empty(t, Ints(IntUnit()))
}

func TestQuietLogger(t *testing.T) {
	l := QuietLogger()
	l.Info("discarded", "k", 1)
	assert.NotNil(t, l)
}
