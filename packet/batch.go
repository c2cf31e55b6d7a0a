package packet

import "fmt"

// Batch accumulates samples until one datagram's worth is collected.
// It is not safe for concurrent use; the transmitter owns one per stream.
type Batch struct {
	samples []JointSample
	max     int
}

// NewBatch creates a batch sized for a datagram of capacity bytes.
func NewBatch(capacity int) (*Batch, error) {
	max := MaxSamplesPerDatagram(capacity)
	if max == 0 {
		return nil, fmt.Errorf("capacity %d cannot hold a %d byte sample", capacity, SampleSize)
	}
	return &Batch{
		samples: make([]JointSample, 0, max),
		max:     max,
	}, nil
}

// Add appends a sample. The caller flushes when Full reports true.
// Samples with a negative timestamp are rejected so Flush never fails on them.
func (b *Batch) Add(s JointSample) error {
	if s.TimeMs < 0 {
		return fmt.Errorf("%w: joint %d at %d ms", ErrNegativeTime, s.JointID, s.TimeMs)
	}
	b.samples = append(b.samples, s)
	return nil
}

// Full reports whether the batch holds MaxSamplesPerDatagram samples.
func (b *Batch) Full() bool {
	return len(b.samples) >= b.max
}

// Len returns the number of pending samples.
func (b *Batch) Len() int {
	return len(b.samples)
}

// Cap returns the number of samples that fit in one datagram.
func (b *Batch) Cap() int {
	return b.max
}

// Flush encodes the pending samples and resets the batch.
func (b *Batch) Flush() ([]byte, error) {
	payload, err := Encode(b.samples)
	b.samples = b.samples[:0]
	if err != nil {
		return nil, err
	}
	return payload, nil
}
