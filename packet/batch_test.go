package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchRejectsTinyCapacity(t *testing.T) {
	_, err := NewBatch(SampleSize - 1)
	assert.Error(t, err)
}

func TestBatchFillAndFlush(t *testing.T) {
	b, err := NewBatch(3 * SampleSize)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Cap())

	for i := 0; i < 3; i++ {
		assert.False(t, b.Full())
		require.NoError(t, b.Add(JointSample{JointID: uint64(i + 1), TimeMs: int64(i)}))
	}
	assert.True(t, b.Full())

	payload, err := b.Flush()
	require.NoError(t, err)
	assert.Len(t, payload, 3*SampleSize)
	assert.Equal(t, 0, b.Len())

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), decoded[2].JointID)
}

func TestBatchFlushEmptyIsSentinelShaped(t *testing.T) {
	b, err := NewBatch(1024)
	require.NoError(t, err)

	payload, err := b.Flush()
	require.NoError(t, err)
	assert.True(t, IsSentinel(payload))
}

func TestBatchAddRejectsNegativeTime(t *testing.T) {
	b, err := NewBatch(1024)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Add(JointSample{JointID: 1, TimeMs: -5}), ErrNegativeTime)
	assert.Equal(t, 0, b.Len())
}
