// Package packet implements the wire format of the keyframe stream.
//
// One JointSample is a fixed 64-byte little-endian record. A datagram payload is a
// plain concatenation of records with no header, and a zero-length payload is the
// end-of-stream sentinel.
//
// Example:
//
//	payload, err := packet.Encode([]packet.JointSample{{JointID: 3, RotX: 12.5, TimeMs: 33}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	samples, err := packet.Decode(payload)
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/keystream/limits"
)

// SampleSize is the encoded size of one JointSample.
const SampleSize = limits.SampleSize

// Field offsets inside one encoded record.
const (
	offJointID = 0
	offRotX    = 8
	offRotY    = 16
	offRotZ    = 24
	offTransX  = 32
	offTransY  = 40
	offTransZ  = 48
	offTimeMs  = 56
)

var (
	// ErrMisalignedPayload indicates a payload whose length is not a multiple of SampleSize.
	ErrMisalignedPayload = errors.New("payload length is not a multiple of the sample size")

	// ErrNegativeTime indicates a sample carrying a negative timestamp.
	ErrNegativeTime = errors.New("sample time must not be negative")
)

// JointSample is the atomic unit of transmission: one joint's six transform
// components at one point in time.
type JointSample struct {
	JointID uint64
	RotX    float64
	RotY    float64
	RotZ    float64
	TransX  float64
	TransY  float64
	TransZ  float64
	TimeMs  int64
}

// Rotation returns the rotation components in X, Y, Z order.
func (s JointSample) Rotation() [3]float64 {
	return [3]float64{s.RotX, s.RotY, s.RotZ}
}

// Translation returns the translation components in X, Y, Z order.
func (s JointSample) Translation() [3]float64 {
	return [3]float64{s.TransX, s.TransY, s.TransZ}
}

// MaxSamplesPerDatagram returns how many samples fit in a datagram of capacity bytes.
func MaxSamplesPerDatagram(capacity int) int {
	return limits.SamplesPerDatagram(capacity)
}

// Encode serializes samples into a buffer of exactly len(samples)*SampleSize bytes.
// Encoding zero samples yields the sentinel.
func Encode(samples []JointSample) ([]byte, error) {
	buf := make([]byte, len(samples)*SampleSize)
	for i, s := range samples {
		if s.TimeMs < 0 {
			return nil, fmt.Errorf("%w: joint %d at %d ms", ErrNegativeTime, s.JointID, s.TimeMs)
		}
		putSample(buf[i*SampleSize:(i+1)*SampleSize], s)
	}
	return buf, nil
}

// Decode is the inverse of Encode. It fails only when the payload is misaligned;
// a zero-length payload decodes to an empty, non-nil slice.
func Decode(data []byte) ([]JointSample, error) {
	if len(data)%SampleSize != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMisalignedPayload, len(data))
	}

	samples := make([]JointSample, len(data)/SampleSize)
	for i := range samples {
		samples[i] = readSample(data[i*SampleSize : (i+1)*SampleSize])
	}
	return samples, nil
}

// IsSentinel reports whether data is the end-of-stream marker.
func IsSentinel(data []byte) bool {
	return len(data) == 0
}

// Sentinel returns the end-of-stream payload.
func Sentinel() []byte {
	return []byte{}
}

func putSample(b []byte, s JointSample) {
	binary.LittleEndian.PutUint64(b[offJointID:], s.JointID)
	binary.LittleEndian.PutUint64(b[offRotX:], math.Float64bits(s.RotX))
	binary.LittleEndian.PutUint64(b[offRotY:], math.Float64bits(s.RotY))
	binary.LittleEndian.PutUint64(b[offRotZ:], math.Float64bits(s.RotZ))
	binary.LittleEndian.PutUint64(b[offTransX:], math.Float64bits(s.TransX))
	binary.LittleEndian.PutUint64(b[offTransY:], math.Float64bits(s.TransY))
	binary.LittleEndian.PutUint64(b[offTransZ:], math.Float64bits(s.TransZ))
	binary.LittleEndian.PutUint64(b[offTimeMs:], uint64(s.TimeMs))
}

func readSample(b []byte) JointSample {
	return JointSample{
		JointID: binary.LittleEndian.Uint64(b[offJointID:]),
		RotX:    math.Float64frombits(binary.LittleEndian.Uint64(b[offRotX:])),
		RotY:    math.Float64frombits(binary.LittleEndian.Uint64(b[offRotY:])),
		RotZ:    math.Float64frombits(binary.LittleEndian.Uint64(b[offRotZ:])),
		TransX:  math.Float64frombits(binary.LittleEndian.Uint64(b[offTransX:])),
		TransY:  math.Float64frombits(binary.LittleEndian.Uint64(b[offTransY:])),
		TransZ:  math.Float64frombits(binary.LittleEndian.Uint64(b[offTransZ:])),
		TimeMs:  int64(binary.LittleEndian.Uint64(b[offTimeMs:])),
	}
}
