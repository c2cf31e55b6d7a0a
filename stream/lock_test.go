package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJointLocker(t *testing.T) {
	tests := []struct {
		name    string
		mode    LockMode
		wantErr bool
	}{
		{"default", "", false},
		{"coarse", LockCoarse, false},
		{"per joint", LockPerJoint, false},
		{"unknown", LockMode("global"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewJointLocker(tt.mode, 0)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLockMode)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestPartitionedLockerStripes(t *testing.T) {
	l := NewPartitionedLocker(0).(*partitionedLocker)
	assert.Len(t, l.stripes, DefaultLockStripes)

	l = NewPartitionedLocker(4).(*partitionedLocker)
	assert.Same(t, l.stripe(1), l.stripe(5))
	assert.NotSame(t, l.stripe(1), l.stripe(2))
}

func TestLockersSerializeSameJoint(t *testing.T) {
	for _, l := range []JointLocker{NewCoarseLocker(), NewPartitionedLocker(8)} {
		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Lock(7)
				counter++
				l.Unlock(7)
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	}
}
