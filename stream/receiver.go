package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/keystream/interfaces"
	"github.com/opd-ai/keystream/jointmap"
	"github.com/opd-ai/keystream/limits"
	"github.com/opd-ai/keystream/scene"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle position of a Receiver.
type State int32

const (
	StateIdle State = iota
	StateBound
	StateListening
	StateDraining
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Binder opens the datagram source for one session. It is called after the
// template has been prepared, so a bad template never holds the port.
type Binder func() (interfaces.IDatagramSource, error)

// StaticSource returns a Binder that always yields src.
func StaticSource(src interfaces.IDatagramSource) Binder {
	return func() (interfaces.IDatagramSource, error) {
		if src == nil {
			return nil, fmt.Errorf("datagram source cannot be nil")
		}
		return src, nil
	}
}

// ReceiverConfig holds the tuning of a Receiver.
type ReceiverConfig struct {
	// DatagramCapacity is the largest accepted payload in bytes.
	DatagramCapacity int
	// TemplatePath is the scene the received keys are written into.
	TemplatePath string
	// OutputPath is where the finished scene is saved. Empty skips saving.
	OutputPath string
	// DecodeWorkers bounds concurrent decode tasks; <= 0 means unbounded.
	DecodeWorkers int
	LockMode      LockMode
	LockStripes   int
	// ReceiveTimeout fails the session when no datagram arrives in time; 0 waits forever.
	ReceiveTimeout time.Duration
}

// ServeReport summarizes one receive session.
type ServeReport struct {
	RunID        uuid.UUID
	Datagrams    int
	Applied      int
	Skipped      int
	Oversized    int
	Misaligned   int
	DecodeErrors int
	Sentinel     bool
	Failed       bool
	Scene        *scene.Scene
	OutputPath   string
}

// Receiver runs receive sessions: it reads datagrams until the sentinel,
// decodes them concurrently into a template scene, then writes the result.
type Receiver struct {
	session *Session
	bind    Binder
	cfg     ReceiverConfig
	state   atomic.Int32
}

// NewReceiver validates cfg.
func NewReceiver(session *Session, bind Binder, cfg ReceiverConfig) (*Receiver, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if bind == nil {
		return nil, fmt.Errorf("binder cannot be nil")
	}
	if err := limits.ValidateDatagramCapacity(cfg.DatagramCapacity); err != nil {
		return nil, err
	}
	if cfg.TemplatePath == "" {
		return nil, fmt.Errorf("template path cannot be empty")
	}
	if cfg.ReceiveTimeout < 0 {
		return nil, fmt.Errorf("receive timeout must not be negative")
	}
	if _, err := NewJointLocker(cfg.LockMode, cfg.LockStripes); err != nil {
		return nil, err
	}
	return &Receiver{session: session, bind: bind, cfg: cfg}, nil
}

// State returns the current lifecycle state. It may be read from any goroutine.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

func (r *Receiver) setState(s State) {
	r.state.Store(int32(s))
}

// target is the prepared template of a session.
type target struct {
	scene     *scene.Scene
	skeleton  scene.NodeID
	markerSet scene.NodeID
	joints    *jointmap.Map
}

// Serve runs one receive session in the caller's goroutine. It returns after the
// sentinel has been received, every decode task has finished and the result has
// been written, or after the session failed. In-flight decode tasks are always
// awaited before Serve returns.
func (r *Receiver) Serve(ctx context.Context) (ServeReport, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":   "Receiver.Serve",
		"session_id": r.session.ID().String(),
	})

	if !r.session.Acquire(RoleServer) {
		if r.session.Role() == RoleServer {
			logger.Warn("Server already started")
		} else {
			logger.WithField("role", r.session.Role().String()).Warn("Session busy, cannot start server")
		}
		return ServeReport{}, ErrRoleBusy
	}
	return r.ServeAcquired(ctx)
}

// ServeAcquired is Serve for a caller that has already moved the session to
// RoleServer, so that no transmission can slip in between claiming the role and
// starting the session. The role is released when ServeAcquired returns. It
// fails with ErrRoleBusy when the session is not in the server role.
func (r *Receiver) ServeAcquired(ctx context.Context) (ServeReport, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":   "Receiver.Serve",
		"session_id": r.session.ID().String(),
	})

	if role := r.session.Role(); role != RoleServer {
		logger.WithField("role", role.String()).Warn("Session not claimed for serving")
		return ServeReport{}, ErrRoleBusy
	}
	defer func() {
		r.setState(StateIdle)
		r.session.Release(RoleServer)
	}()

	report := ServeReport{RunID: uuid.New(), OutputPath: r.cfg.OutputPath}
	logger = logger.WithField("run_id", report.RunID.String())

	tgt, err := r.prepare()
	if err != nil {
		logger.WithError(err).Error("Failed to prepare template scene")
		return report, err
	}
	report.Scene = tgt.scene

	src, err := r.bind()
	if err != nil {
		logger.WithError(err).Error("Failed to bind datagram source")
		return report, fmt.Errorf("bind: %w", err)
	}
	defer src.Close()
	r.setState(StateBound)

	logger.WithFields(logrus.Fields{
		"local_addr": src.LocalAddr().String(),
		"joints":     tgt.joints.Len(),
		"workers":    r.cfg.DecodeWorkers,
	}).Info("Server started, waiting for datagrams")

	locker, _ := NewJointLocker(r.cfg.LockMode, r.cfg.LockStripes)
	decoder := NewDecoder(tgt.scene, tgt.joints, locker)

	listenErr := r.listen(ctx, src, decoder, &report)
	if listenErr != nil {
		report.Failed = true
		logger.WithError(listenErr).Error("Receive session failed, discarding result")
		return report, fmt.Errorf("%w: %w", ErrSessionFailed, listenErr)
	}

	r.setState(StateFinalizing)
	if err := r.finalize(tgt); err != nil {
		report.Failed = true
		logger.WithError(err).Error("Failed to finalize received animation")
		return report, err
	}

	logger.WithFields(logrus.Fields{
		"datagrams":  report.Datagrams,
		"applied":    report.Applied,
		"skipped":    report.Skipped,
		"oversized":  report.Oversized,
		"misaligned": report.Misaligned,
		"output":     r.cfg.OutputPath,
	}).Info("Receive session completed")
	return report, nil
}

// prepare loads the template and builds the identity map of its marker set.
func (r *Receiver) prepare() (*target, error) {
	sc, err := scene.Load(r.cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	skel, err := scene.FindSkeletonRoot(sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.cfg.TemplatePath, err)
	}
	set, err := scene.FindMarkerSet(sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.cfg.TemplatePath, err)
	}
	joints, err := jointmap.Build(sc, set)
	if err != nil {
		return nil, err
	}
	return &target{scene: sc, skeleton: skel, markerSet: set, joints: joints}, nil
}

// listen reads datagrams until the sentinel and fans them out to decode tasks.
// It always waits for the spawned tasks before returning.
func (r *Receiver) listen(ctx context.Context, src interfaces.IDatagramSource, decoder *Decoder, report *ServeReport) error {
	group := new(errgroup.Group)
	if r.cfg.DecodeWorkers > 0 {
		group.SetLimit(r.cfg.DecodeWorkers)
	}

	var applied, skipped, decodeErrors atomic.Int64
	r.setState(StateListening)

	// One spare byte so a datagram larger than the capacity is detectable.
	buf := make([]byte, r.cfg.DatagramCapacity+1)
	loopErr := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			n, from, err := r.read(ctx, src, buf)
			if err != nil {
				return err
			}

			if n == 0 {
				report.Sentinel = true
				logrus.WithFields(logrus.Fields{
					"function": "Receiver.listen",
					"from":     addrString(from),
				}).Info("End-of-stream sentinel received")
				return nil
			}

			report.Datagrams++
			if !r.accept(buf[:n], from, report) {
				continue
			}

			payload := make([]byte, n)
			copy(payload, buf[:n])

			group.Go(func() error {
				res, err := decoder.Apply(payload)
				if err != nil {
					decodeErrors.Add(1)
					logrus.WithFields(logrus.Fields{
						"function": "Receiver.decode",
						"size":     len(payload),
						"error":    err.Error(),
					}).Warn("Dropping undecodable datagram")
					return nil
				}
				applied.Add(int64(res.Applied))
				skipped.Add(int64(res.Skipped))
				return nil
			})
		}
	}()

	r.setState(StateDraining)
	_ = group.Wait()

	report.Applied = int(applied.Load())
	report.Skipped = int(skipped.Load())
	report.DecodeErrors = int(decodeErrors.Load())
	return loopErr
}

// read waits for one datagram, bounded by the receive timeout when one is set.
func (r *Receiver) read(ctx context.Context, src interfaces.IDatagramSource, buf []byte) (int, net.Addr, error) {
	readCtx := ctx
	if r.cfg.ReceiveTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, r.cfg.ReceiveTimeout)
		defer cancel()
	}

	n, from, err := src.ReadDatagram(readCtx, buf)
	if err == nil {
		return n, from, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return 0, nil, fmt.Errorf("%w after %s", ErrReceiveTimeout, r.cfg.ReceiveTimeout)
	}
	return 0, nil, fmt.Errorf("read datagram: %w", err)
}

// accept drops oversized and misaligned payloads before they reach a decoder.
func (r *Receiver) accept(payload []byte, from net.Addr, report *ServeReport) bool {
	fields := logrus.Fields{
		"function": "Receiver.listen",
		"from":     addrString(from),
		"size":     len(payload),
	}
	if err := limits.ValidateDatagramSize(payload, r.cfg.DatagramCapacity); err != nil {
		report.Oversized++
		logrus.WithFields(fields).WithError(err).Warn("Dropping oversized datagram")
		return false
	}
	if len(payload)%limits.SampleSize != 0 {
		report.Misaligned++
		logrus.WithFields(fields).Warn("Dropping datagram with partial record")
		return false
	}
	logrus.WithFields(fields).Debug("Datagram received")
	return true
}

// finalize converts the absolute marker keys back onto the skeleton and writes
// the result when an output path is set.
func (r *Receiver) finalize(tgt *target) error {
	if err := scene.FromAbsoluteMarkers(tgt.scene, tgt.skeleton, tgt.markerSet); err != nil {
		return fmt.Errorf("restore skeleton: %w", err)
	}
	if r.cfg.OutputPath == "" {
		return nil
	}
	return scene.Save(tgt.scene, r.cfg.OutputPath)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
