// Package limits provides centralized datagram size limits for the keyframe stream.
// This ensures consistent validation between the transmitter and the receiver.
package limits

import (
	"errors"
	"fmt"
)

const (
	// SampleSize is the encoded size of one joint sample on the wire (64 bytes).
	// Eight fixed-width fields of eight bytes each.
	SampleSize = 64

	// DefaultDatagramCapacity is the default payload budget of one datagram.
	// 1024 bytes carries 16 samples and stays well below common path MTUs.
	DefaultDatagramCapacity = 1024

	// MinDatagramCapacity is the smallest capacity that still fits one sample.
	MinDatagramCapacity = SampleSize

	// MaxDatagramCapacity is the largest UDP payload over IPv4
	// (65535 - 8 byte UDP header - 20 byte IP header).
	MaxDatagramCapacity = 65507
)

var (
	// ErrCapacityTooSmall indicates a capacity that cannot hold a single sample.
	ErrCapacityTooSmall = errors.New("datagram capacity too small")

	// ErrCapacityTooLarge indicates a capacity beyond the UDP payload limit.
	ErrCapacityTooLarge = errors.New("datagram capacity too large")

	// ErrDatagramTooLarge indicates a received datagram exceeds the configured capacity.
	ErrDatagramTooLarge = errors.New("datagram too large")
)

// ValidateDatagramCapacity checks that capacity lies within
// [MinDatagramCapacity, MaxDatagramCapacity].
func ValidateDatagramCapacity(capacity int) error {
	if capacity < MinDatagramCapacity {
		return fmt.Errorf("%w: capacity %d below minimum %d", ErrCapacityTooSmall, capacity, MinDatagramCapacity)
	}
	if capacity > MaxDatagramCapacity {
		return fmt.Errorf("%w: capacity %d exceeds limit %d", ErrCapacityTooLarge, capacity, MaxDatagramCapacity)
	}
	return nil
}

// ValidateDatagramSize validates a received payload against the configured capacity.
// An empty payload is valid: it is the end-of-stream sentinel.
func ValidateDatagramSize(payload []byte, capacity int) error {
	if len(payload) > capacity {
		return fmt.Errorf("%w: size %d exceeds capacity %d", ErrDatagramTooLarge, len(payload), capacity)
	}
	return nil
}

// SamplesPerDatagram returns how many whole samples fit in capacity bytes.
func SamplesPerDatagram(capacity int) int {
	if capacity < SampleSize {
		return 0
	}
	return capacity / SampleSize
}
