package stream

import "errors"

var (
	// ErrRoleBusy indicates the session is already transmitting or serving.
	ErrRoleBusy = errors.New("session role already taken")

	// ErrSessionFailed marks a receive session that ended without a sentinel.
	ErrSessionFailed = errors.New("receive session failed")

	// ErrReceiveTimeout indicates no datagram arrived within the receive timeout.
	ErrReceiveTimeout = errors.New("receive timeout")

	// ErrNoDestination indicates a transmission without a destination address.
	ErrNoDestination = errors.New("no destination address")

	// ErrInvalidLockMode indicates an unknown lock mode.
	ErrInvalidLockMode = errors.New("invalid lock mode")
)
