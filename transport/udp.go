package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDPTransport implements datagram I/O over a UDP socket.
// It satisfies interfaces.IDatagramTransport.
type UDPTransport struct {
	conn         net.PacketConn
	listenAddr   net.Addr
	pollInterval time.Duration

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewUDPTransport binds a UDP socket on listenAddr (":0" picks a free port).
// pollInterval bounds blocked reads between context checks; zero selects
// DefaultPollInterval.
func NewUDPTransport(listenAddr string, pollInterval time.Duration) (*UDPTransport, error) {
	// Use net.ListenPacket instead of net.ListenUDP for more abstraction
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "NewUDPTransport",
			"listen_addr": listenAddr,
			"error":       err.Error(),
		}).Error("Failed to bind UDP socket")
		return nil, fmt.Errorf("bind %s: %w", listenAddr, err)
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	t := &UDPTransport{
		conn:         conn,
		listenAddr:   conn.LocalAddr(), // Store the actual local address
		pollInterval: pollInterval,
		done:         make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewUDPTransport",
		"local_addr": t.listenAddr.String(),
	}).Debug("UDP socket bound")

	return t, nil
}

// Send writes payload as a single datagram. An empty payload is sent as a
// zero-length datagram.
func (t *UDPTransport) Send(payload []byte, addr net.Addr) error {
	if addr == nil {
		return fmt.Errorf("send: destination address is nil")
	}
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	n, err := t.conn.WriteTo(payload, addr)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("send to %s: %w", addr, ErrTransportClosed)
		}
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	if n != len(payload) {
		return fmt.Errorf("send to %s: short write %d of %d bytes", addr, n, len(payload))
	}
	return nil
}

// ReadDatagram blocks until a datagram arrives, ctx is done, or the transport
// is closed. Reads are split into pollInterval slices so cancellation is
// noticed between them.
func (t *UDPTransport) ReadDatagram(ctx context.Context, buf []byte) (int, net.Addr, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		n, addr, err := t.readPacketData(buf)
		if err == nil {
			return n, addr, nil
		}
		if isTimeout(err) {
			continue
		}
		if errors.Is(err, net.ErrClosed) {
			return 0, nil, ErrTransportClosed
		}
		return 0, nil, t.handleReadError(err)
	}
}

// readPacketData reads data from the connection with timeout handling.
func (t *UDPTransport) readPacketData(buf []byte) (int, net.Addr, error) {
	// Set read deadline for non-blocking reads with timeout
	_ = t.conn.SetReadDeadline(time.Now().Add(t.pollInterval))
	return t.conn.ReadFrom(buf)
}

// handleReadError processes connection read errors that end the read loop.
func (t *UDPTransport) handleReadError(err error) error {
	logrus.WithFields(logrus.Fields{
		"function":   "UDPTransport.ReadDatagram",
		"local_addr": t.listenAddr.String(),
		"error":      err.Error(),
	}).Error("UDP read failed")
	return fmt.Errorf("read datagram: %w", err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// LocalAddr returns the local address the transport is bound to.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.listenAddr
}

// IsSimulation returns false; this is a real socket.
func (t *UDPTransport) IsSimulation() bool {
	return false
}

// Close shuts down the transport. It is safe to call more than once.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
