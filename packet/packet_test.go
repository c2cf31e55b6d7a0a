package packet

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet() []JointSample {
	return []JointSample{
		{JointID: 1, RotX: 10, RotY: -20.5, RotZ: 30.25, TransX: 1, TransY: 2, TransZ: 3, TimeMs: 33},
		{JointID: 2, RotX: math.Pi, RotY: 0, RotZ: -math.MaxFloat64, TransX: -0.001, TransY: 1e9, TransZ: 0, TimeMs: 66},
		{JointID: math.MaxUint64, TimeMs: math.MaxInt64},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := sampleSet()

	payload, err := Encode(samples)
	require.NoError(t, err)
	assert.Len(t, payload, len(samples)*SampleSize)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, samples, decoded)
}

func TestEncodeLayoutIsLittleEndian(t *testing.T) {
	payload, err := Encode([]JointSample{{JointID: 0x0102030405060708, RotX: 1.5, TimeMs: 42}})
	require.NoError(t, err)

	assert.Equal(t, byte(0x08), payload[0], "joint id must be little-endian")
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(payload[0:8]))
	assert.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(payload[8:16])))
	assert.Equal(t, int64(42), int64(binary.LittleEndian.Uint64(payload[56:64])))
}

func TestSentinel(t *testing.T) {
	payload, err := Encode(nil)
	require.NoError(t, err)
	assert.True(t, IsSentinel(payload))
	assert.True(t, IsSentinel(Sentinel()))

	decoded, err := Decode(payload)
	require.NoError(t, err, "sentinel must be distinguishable from a decode failure")
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}

func TestDecodeMisaligned(t *testing.T) {
	for _, n := range []int{1, SampleSize - 1, SampleSize + 1, 3*SampleSize - 7} {
		_, err := Decode(make([]byte, n))
		assert.ErrorIs(t, err, ErrMisalignedPayload, "length %d", n)
	}
}

func TestEncodeRejectsNegativeTime(t *testing.T) {
	_, err := Encode([]JointSample{{JointID: 1, TimeMs: -1}})
	assert.ErrorIs(t, err, ErrNegativeTime)
}

func TestMaxSamplesPerDatagram(t *testing.T) {
	assert.Equal(t, 16, MaxSamplesPerDatagram(1024))
	assert.Equal(t, 5, MaxSamplesPerDatagram(5*SampleSize))
	assert.Equal(t, 0, MaxSamplesPerDatagram(SampleSize-1))
}

func TestSampleComponents(t *testing.T) {
	s := JointSample{RotX: 1, RotY: 2, RotZ: 3, TransX: 4, TransY: 5, TransZ: 6}
	assert.Equal(t, [3]float64{1, 2, 3}, s.Rotation())
	assert.Equal(t, [3]float64{4, 5, 6}, s.Translation())
}
