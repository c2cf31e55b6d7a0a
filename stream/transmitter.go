package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/keystream/interfaces"
	"github.com/opd-ai/keystream/limits"
	"github.com/opd-ai/keystream/packet"
	"github.com/opd-ai/keystream/scene"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultSampleInterval paces outbound samples when no interval is configured.
const DefaultSampleInterval = 30 * time.Millisecond

// TransmitConfig holds the tuning of a Transmitter.
type TransmitConfig struct {
	// DatagramCapacity is the payload budget of one datagram in bytes.
	DatagramCapacity int
	// SampleInterval is the minimum spacing between samples. Zero disables pacing.
	SampleInterval time.Duration
	// SentinelDelay is waited after the last full datagram, before the final
	// partial datagram and the sentinel, giving the receiver time to catch up.
	SentinelDelay time.Duration
}

// TransmitReport summarizes one transmission.
type TransmitReport struct {
	Joints       int
	KeyTotal     int
	Samples      int
	Datagrams    int
	SendErrors   int
	SentinelSent bool
	// Skipped is true when the session was serving and nothing was sent.
	Skipped bool
}

// Transmitter walks marker channels in key order and streams them as datagrams.
// It runs synchronously in the caller's goroutine.
type Transmitter struct {
	session *Session
	sender  interfaces.IDatagramSender
	cfg     TransmitConfig
	limiter *rate.Limiter
}

// NewTransmitter validates cfg and prepares the pacing limiter.
func NewTransmitter(session *Session, sender interfaces.IDatagramSender, cfg TransmitConfig) (*Transmitter, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if err := limits.ValidateDatagramCapacity(cfg.DatagramCapacity); err != nil {
		return nil, err
	}
	if cfg.SampleInterval < 0 || cfg.SentinelDelay < 0 {
		return nil, fmt.Errorf("sample interval and sentinel delay must not be negative")
	}

	t := &Transmitter{session: session, sender: sender, cfg: cfg}
	if cfg.SampleInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(cfg.SampleInterval), 1)
	}
	return t, nil
}

// TransmitFile loads the animation at path, converts its skeleton to absolute
// markers and streams them to dest.
func (t *Transmitter) TransmitFile(ctx context.Context, path string, dest net.Addr) (TransmitReport, error) {
	if dest == nil {
		return TransmitReport{}, ErrNoDestination
	}
	if t.session.Role() == RoleServer {
		t.warnServerMode()
		return TransmitReport{Skipped: true}, nil
	}

	sc, err := scene.Load(path)
	if err != nil {
		return TransmitReport{}, err
	}
	skel, err := scene.FindSkeletonRoot(sc)
	if err != nil {
		return TransmitReport{}, fmt.Errorf("%s: %w", path, err)
	}
	set, err := scene.ToAbsoluteMarkers(sc, skel)
	if err != nil {
		return TransmitReport{}, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Transmitter.TransmitFile",
		"path":     path,
		"dest":     dest.String(),
	}).Info("Animation loaded, sending")

	return t.Transmit(ctx, sc, set, dest)
}

// Transmit streams every key after the bind pose of the markers under markerSet.
// The first marker is the reference joint: its key count bounds the stream.
// The sentinel is always sent, even when ctx is cancelled mid-stream or there
// is nothing to send.
func (t *Transmitter) Transmit(ctx context.Context, sc *scene.Scene, markerSet scene.NodeID, dest net.Addr) (TransmitReport, error) {
	if dest == nil {
		return TransmitReport{}, ErrNoDestination
	}
	if !t.session.Acquire(RoleClient) {
		if t.session.Role() == RoleServer {
			t.warnServerMode()
			return TransmitReport{Skipped: true}, nil
		}
		return TransmitReport{}, ErrRoleBusy
	}
	defer t.session.Release(RoleClient)

	set := sc.Node(markerSet)
	if set == nil {
		return TransmitReport{}, fmt.Errorf("marker set: %w: %d", scene.ErrUnknownNode, markerSet)
	}

	batch, err := packet.NewBatch(t.cfg.DatagramCapacity)
	if err != nil {
		return TransmitReport{}, err
	}

	report := TransmitReport{Joints: len(set.Children)}
	if len(set.Children) > 0 {
		report.KeyTotal = sc.Node(set.Children[0]).MaxKeyCount()
	}

	logger := logrus.WithFields(logrus.Fields{
		"function":   "Transmitter.Transmit",
		"session_id": t.session.ID().String(),
		"dest":       dest.String(),
	})
	logger.WithFields(logrus.Fields{
		"joints":      report.Joints,
		"key_total":   report.KeyTotal,
		"max_samples": batch.Cap(),
	}).Info("Starting transmission")

	streamErr := t.streamKeys(ctx, sc, set.Children, batch, dest, &report)
	if streamErr == nil && t.cfg.SentinelDelay > 0 {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
		case <-time.After(t.cfg.SentinelDelay):
		}
	}

	if finishErr := t.finish(batch, dest, &report); finishErr != nil && streamErr == nil {
		streamErr = finishErr
	}

	fields := logrus.Fields{
		"samples":     report.Samples,
		"datagrams":   report.Datagrams,
		"send_errors": report.SendErrors,
		"sentinel":    report.SentinelSent,
	}
	if streamErr != nil {
		logger.WithFields(fields).WithError(streamErr).Error("Transmission aborted")
		return report, streamErr
	}
	logger.WithFields(fields).Info("Transmission completed")
	return report, nil
}

// streamKeys emits one sample per joint per key index, flushing full batches.
func (t *Transmitter) streamKeys(ctx context.Context, sc *scene.Scene, joints []scene.NodeID, batch *packet.Batch, dest net.Addr, report *TransmitReport) error {
	for keyI := 1; keyI < report.KeyTotal; keyI++ {
		for _, j := range joints {
			sample, ok := sampleAt(sc.Node(j), keyI)
			if !ok {
				logrus.WithFields(logrus.Fields{
					"function": "Transmitter.Transmit",
					"joint":    sc.Node(j).Name,
					"key":      keyI,
				}).Debug("Joint has no key at this index, skipping")
				continue
			}
			if err := batch.Add(sample); err != nil {
				return err
			}
			report.Samples++

			if err := t.pace(ctx); err != nil {
				return err
			}

			if batch.Full() {
				payload, err := batch.Flush()
				if err != nil {
					return err
				}
				if err := t.send(payload, dest, report); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// finish flushes a non-empty partial batch and then sends the sentinel.
// An empty partial batch is never sent because it would read as the sentinel.
func (t *Transmitter) finish(batch *packet.Batch, dest net.Addr, report *TransmitReport) error {
	if batch.Len() > 0 {
		payload, err := batch.Flush()
		if err != nil {
			return err
		}
		if err := t.send(payload, dest, report); err != nil {
			return err
		}
	}

	if err := t.sender.Send(packet.Sentinel(), dest); err != nil {
		report.SendErrors++
		logrus.WithFields(logrus.Fields{
			"function": "Transmitter.Transmit",
			"dest":     dest.String(),
			"error":    err.Error(),
		}).Error("Failed to send end-of-stream sentinel")
		return fmt.Errorf("send sentinel: %w", err)
	}
	report.SentinelSent = true
	return nil
}

// send transmits one data datagram. Per-datagram failures are logged and
// tolerated; a closed transport aborts the stream.
func (t *Transmitter) send(payload []byte, dest net.Addr, report *TransmitReport) error {
	err := t.sender.Send(payload, dest)
	if err == nil {
		report.Datagrams++
		return nil
	}

	report.SendErrors++
	logrus.WithFields(logrus.Fields{
		"function": "Transmitter.send",
		"dest":     dest.String(),
		"size":     len(payload),
		"error":    err.Error(),
	}).Warn("Failed to send datagram, continuing")

	if errors.Is(err, interfaces.ErrClosed) {
		return fmt.Errorf("transport unusable: %w", err)
	}
	return nil
}

func (t *Transmitter) pace(ctx context.Context) error {
	if t.limiter == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}

func (t *Transmitter) warnServerMode() {
	logrus.WithFields(logrus.Fields{
		"function":   "Transmitter.Transmit",
		"session_id": t.session.ID().String(),
	}).Warn("Server mode has been enabled, client mode is disabled")
}

// timeAxes is the order in which a sample's timestamp is looked up; rotation Z
// is the reference axis.
var timeAxes = []struct {
	prop scene.Property
	axis scene.Axis
}{
	{scene.Rotation, scene.AxisZ},
	{scene.Rotation, scene.AxisX},
	{scene.Rotation, scene.AxisY},
	{scene.Translation, scene.AxisX},
	{scene.Translation, scene.AxisY},
	{scene.Translation, scene.AxisZ},
}

// sampleAt reads key keyI of every axis of node. Missing curves or keys read as 0.
// It reports false when no axis has a key at keyI.
func sampleAt(node *scene.Node, keyI int) (packet.JointSample, bool) {
	timeMs := int64(-1)
	for _, ta := range timeAxes {
		if k, ok := node.Curve(ta.prop, ta.axis).Key(keyI); ok {
			timeMs = k.TimeMs
			break
		}
	}
	if timeMs < 0 {
		return packet.JointSample{}, false
	}

	value := func(prop scene.Property, axis scene.Axis) float64 {
		k, _ := node.Curve(prop, axis).Key(keyI)
		return k.Value
	}

	return packet.JointSample{
		JointID: node.JointID,
		RotX:    value(scene.Rotation, scene.AxisX),
		RotY:    value(scene.Rotation, scene.AxisY),
		RotZ:    value(scene.Rotation, scene.AxisZ),
		TransX:  value(scene.Translation, scene.AxisX),
		TransY:  value(scene.Translation, scene.AxisY),
		TransZ:  value(scene.Translation, scene.AxisZ),
		TimeMs:  timeMs,
	}, true
}
