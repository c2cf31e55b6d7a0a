// Package limits provides centralized datagram size constants and validation functions
// for the keyframe stream. Both roles import it so a transmitter never builds a payload
// that the receiver would reject.
//
// # Size Hierarchy
//
//   - SampleSize (64 bytes): one encoded joint sample, the atomic unit of transmission.
//
//   - DefaultDatagramCapacity (1024 bytes): the default payload budget, 16 samples.
//
//   - MaxDatagramCapacity (65507 bytes): the largest UDP payload over IPv4.
//
// # Validation Functions
//
//	err := limits.ValidateDatagramCapacity(cfg.DatagramCapacity)
//	if err != nil {
//	    // ErrCapacityTooSmall or ErrCapacityTooLarge
//	}
//
// A zero-length payload always passes ValidateDatagramSize because it is the
// end-of-stream sentinel.
package limits
