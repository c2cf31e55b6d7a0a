package interfaces

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrClosed is wrapped by every implementation when the transport has been closed.
	// Senders treat it as "socket unusable" rather than a per-datagram failure.
	ErrClosed = errors.New("datagram transport closed")

	// ErrInvalidTimeout indicates a non-positive network timeout.
	ErrInvalidTimeout = errors.New("network timeout must be positive")

	// ErrInvalidLossRate indicates a simulated loss rate outside [0, 1].
	ErrInvalidLossRate = errors.New("loss rate must be within [0, 1]")

	// ErrInvalidReorderWindow indicates a negative reorder window.
	ErrInvalidReorderWindow = errors.New("reorder window must not be negative")
)

// IDatagramSender sends whole datagrams to a destination address.
type IDatagramSender interface {
	// Send transmits payload as one datagram. An empty payload is a valid datagram.
	Send(payload []byte, addr net.Addr) error

	// LocalAddr returns the address datagrams are sent from.
	LocalAddr() net.Addr

	// Close releases the underlying socket.
	Close() error

	// IsSimulation returns true if this is a simulation implementation
	IsSimulation() bool
}

// IDatagramSource receives whole datagrams.
type IDatagramSource interface {
	// ReadDatagram blocks until a datagram arrives, ctx is done, or the source is closed.
	// It returns the payload length written into buf. A zero length is a real,
	// empty datagram, never a timeout.
	ReadDatagram(ctx context.Context, buf []byte) (int, net.Addr, error)

	// LocalAddr returns the address the source is bound to.
	LocalAddr() net.Addr

	// Close unblocks pending reads and releases the socket.
	Close() error

	// IsSimulation returns true if this is a simulation implementation
	IsSimulation() bool
}

// IDatagramTransport can both send and receive datagrams.
type IDatagramTransport interface {
	IDatagramSender
	IDatagramSource
}

// NetworkConfig holds configuration for datagram transport implementations
type NetworkConfig struct {
	// UseSimulation determines whether to use the in-memory link or real UDP
	UseSimulation bool

	// NetworkTimeout bounds how long a blocked read waits before re-checking
	// cancellation, in milliseconds
	NetworkTimeout int

	// LossRate is the probability that the simulated link drops a data datagram
	LossRate float64

	// ReorderWindow is how many datagrams the simulated link may hold back and shuffle
	ReorderWindow int
}

// Validate checks the configuration bounds.
func (c *NetworkConfig) Validate() error {
	if c.NetworkTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if !(c.LossRate >= 0 && c.LossRate <= 1) {
		return ErrInvalidLossRate
	}
	if c.ReorderWindow < 0 {
		return ErrInvalidReorderWindow
	}
	return nil
}
