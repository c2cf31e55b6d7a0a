package stream

import (
	"fmt"
	"sync"
)

// LockMode selects how concurrent decoders serialize channel mutation.
type LockMode string

const (
	// LockCoarse serializes every sample apply behind one mutex.
	LockCoarse LockMode = "coarse"
	// LockPerJoint partitions locks by joint id so different joints apply in parallel.
	LockPerJoint LockMode = "joint"
)

// DefaultLockStripes is the partition count of a per-joint locker.
const DefaultLockStripes = 64

// JointLocker guards the channels of one joint while a sample is applied.
// Two goroutines never hold the lock for the same joint id at once.
type JointLocker interface {
	Lock(jointID uint64)
	Unlock(jointID uint64)
}

// NewJointLocker builds the locker for mode. stripes only matters for LockPerJoint;
// values <= 0 select DefaultLockStripes.
func NewJointLocker(mode LockMode, stripes int) (JointLocker, error) {
	switch mode {
	case LockCoarse, "":
		return NewCoarseLocker(), nil
	case LockPerJoint:
		return NewPartitionedLocker(stripes), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLockMode, mode)
	}
}

type coarseLocker struct {
	mu sync.Mutex
}

// NewCoarseLocker returns a locker that uses one mutex for every joint.
func NewCoarseLocker() JointLocker {
	return &coarseLocker{}
}

func (l *coarseLocker) Lock(uint64)   { l.mu.Lock() }
func (l *coarseLocker) Unlock(uint64) { l.mu.Unlock() }

type partitionedLocker struct {
	stripes []sync.Mutex
}

// NewPartitionedLocker returns a locker with n stripes keyed by jointID % n.
func NewPartitionedLocker(n int) JointLocker {
	if n <= 0 {
		n = DefaultLockStripes
	}
	return &partitionedLocker{stripes: make([]sync.Mutex, n)}
}

func (l *partitionedLocker) stripe(jointID uint64) *sync.Mutex {
	return &l.stripes[jointID%uint64(len(l.stripes))]
}

func (l *partitionedLocker) Lock(jointID uint64)   { l.stripe(jointID).Lock() }
func (l *partitionedLocker) Unlock(jointID uint64) { l.stripe(jointID).Unlock() }
