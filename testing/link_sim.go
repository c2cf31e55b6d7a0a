package testing

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/keystream/interfaces"
	"github.com/sirupsen/logrus"
)

// DefaultLinkQueue is the number of datagrams a SimulatedLink buffers for its reader.
const DefaultLinkQueue = 4096

// ErrLinkClosed is returned by operations on a closed SimulatedLink.
var ErrLinkClosed = fmt.Errorf("simulated link: %w", interfaces.ErrClosed)

// SimAddr is the net.Addr of a simulated endpoint.
type SimAddr string

// Network returns "sim".
func (a SimAddr) Network() string { return "sim" }

// String returns the endpoint name.
func (a SimAddr) String() string { return string(a) }

// DeliveryRecord represents a datagram event for testing verification
type DeliveryRecord struct {
	Size      int
	Timestamp int64
	Sentinel  bool
	Dropped   bool
}

// LinkStats summarizes a SimulatedLink's traffic.
type LinkStats struct {
	Sent      int
	Delivered int
	Dropped   int
	Sentinels int
}

type datagram struct {
	payload []byte
	from    net.Addr
}

// SimulatedLink is an in-memory datagram link for tests and loopback runs.
// It can drop data datagrams with a fixed probability and hold back up to
// ReorderWindow datagrams to deliver them out of order. The end-of-stream
// sentinel is never dropped and is delivered after everything held back.
// It satisfies interfaces.IDatagramTransport.
type SimulatedLink struct {
	mu            sync.Mutex
	rng           *rand.Rand
	lossRate      float64
	reorderWindow int
	held          []datagram
	deliveryLog   []DeliveryRecord

	queue     chan datagram
	done      chan struct{}
	closeOnce sync.Once
	addr      SimAddr
}

// NewSimulatedLink creates a link configured by config. rng drives the loss and
// reorder decisions; nil seeds one from the clock.
func NewSimulatedLink(config *interfaces.NetworkConfig, rng *rand.Rand) *SimulatedLink {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewSimulatedLink",
		"loss_rate":      config.LossRate,
		"reorder_window": config.ReorderWindow,
	}).Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")

	return &SimulatedLink{
		rng:           rng,
		lossRate:      config.LossRate,
		reorderWindow: config.ReorderWindow,
		queue:         make(chan datagram, DefaultLinkQueue),
		done:          make(chan struct{}),
		addr:          SimAddr("sim-link"),
	}
}

// Send implements IDatagramSender.Send with simulated loss and reordering.
// The payload is copied, so callers may reuse their buffer immediately.
func (l *SimulatedLink) Send(payload []byte, addr net.Addr) error {
	select {
	case <-l.done:
		return ErrLinkClosed
	default:
	}

	d := datagram{payload: append([]byte{}, payload...), from: l.addr}
	sentinel := len(payload) == 0

	l.mu.Lock()
	defer l.mu.Unlock()

	record := DeliveryRecord{Size: len(payload), Timestamp: time.Now().UnixNano(), Sentinel: sentinel}

	if !sentinel && l.rng.Float64() < l.lossRate {
		record.Dropped = true
		l.deliveryLog = append(l.deliveryLog, record)
		logrus.WithFields(logrus.Fields{
			"function": "SimulatedLink.Send",
			"size":     len(payload),
		}).Debug("Simulated datagram loss")
		return nil
	}
	l.deliveryLog = append(l.deliveryLog, record)

	if sentinel {
		// Release everything still held back before the end-of-stream marker.
		l.rng.Shuffle(len(l.held), func(i, j int) { l.held[i], l.held[j] = l.held[j], l.held[i] })
		for _, h := range l.held {
			if err := l.enqueue(h); err != nil {
				return err
			}
		}
		l.held = l.held[:0]
		return l.enqueue(d)
	}

	if l.reorderWindow == 0 {
		return l.enqueue(d)
	}

	l.held = append(l.held, d)
	if len(l.held) > l.reorderWindow {
		i := l.rng.Intn(len(l.held))
		release := l.held[i]
		l.held = append(l.held[:i], l.held[i+1:]...)
		return l.enqueue(release)
	}
	return nil
}

func (l *SimulatedLink) enqueue(d datagram) error {
	select {
	case l.queue <- d:
		return nil
	case <-l.done:
		return ErrLinkClosed
	}
}

// ReadDatagram implements IDatagramSource.ReadDatagram. Payloads longer than buf
// are truncated, as a UDP socket would.
func (l *SimulatedLink) ReadDatagram(ctx context.Context, buf []byte) (int, net.Addr, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-l.done:
		return 0, nil, ErrLinkClosed
	case d := <-l.queue:
		n := copy(buf, d.payload)
		return n, d.from, nil
	}
}

// LocalAddr returns the simulated endpoint address.
func (l *SimulatedLink) LocalAddr() net.Addr {
	return l.addr
}

// IsSimulation implements IDatagramSender.IsSimulation
func (l *SimulatedLink) IsSimulation() bool {
	return true
}

// Close unblocks readers and rejects further sends. It is safe to call more than once.
func (l *SimulatedLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return nil
}

// GetDeliveryLog returns the complete delivery log for test verification
func (l *SimulatedLink) GetDeliveryLog() []DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Return a copy to prevent external modifications
	log := make([]DeliveryRecord, len(l.deliveryLog))
	copy(log, l.deliveryLog)
	return log
}

// GetTypedStats returns traffic counters derived from the delivery log.
func (l *SimulatedLink) GetTypedStats() LinkStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stats LinkStats
	for _, r := range l.deliveryLog {
		stats.Sent++
		switch {
		case r.Dropped:
			stats.Dropped++
		default:
			stats.Delivered++
		}
		if r.Sentinel {
			stats.Sentinels++
		}
	}
	return stats
}

// String describes the link configuration.
func (l *SimulatedLink) String() string {
	return fmt.Sprintf("SimulatedLink(loss=%.2f, reorder=%d)", l.lossRate, l.reorderWindow)
}
