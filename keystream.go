package keystream

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/opd-ai/keystream/config"
	"github.com/opd-ai/keystream/factory"
	"github.com/opd-ai/keystream/interfaces"
	"github.com/opd-ai/keystream/scene"
	"github.com/opd-ai/keystream/stream"
	"github.com/opd-ai/keystream/transport"
	"github.com/sirupsen/logrus"
)

// Options configures a Streamer.
type Options struct {
	Config *config.Config
	// Factory, when set, is shared instead of creating one. Two Streamers in one
	// process need a shared factory to meet on the same simulated link. A shared
	// factory is not closed by Streamer.Close.
	Factory *factory.TransportFactory
}

// NewOptions returns options holding the default configuration.
func NewOptions() *Options {
	return &Options{Config: config.Default()}
}

// Streamer is the entry point for transmitting and serving animation streams.
// A Streamer owns one session, so it is either transmitting or serving at a time.
type Streamer struct {
	cfg         *config.Config
	session     *stream.Session
	factory     *factory.TransportFactory
	ownsFactory bool

	mu       sync.Mutex
	receiver *stream.Receiver
	cancel   context.CancelFunc
	done     chan struct{}
	report   stream.ServeReport
	err      error
}

// New validates options and prepares the transport factory.
func New(options *Options) (*Streamer, error) {
	if options == nil {
		options = NewOptions()
	}
	cfg := options.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := options.Factory
	owns := false
	if f == nil {
		var err error
		f, err = factory.NewTransportFactory(cfg.NetworkConfig())
		if err != nil {
			return nil, err
		}
		if cfg.Network.Seed != 0 {
			f.SetSeed(cfg.Network.Seed)
		}
		owns = true
	}

	s := &Streamer{cfg: cfg, session: stream.NewSession(), factory: f, ownsFactory: owns}

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"session_id": s.session.ID().String(),
		"simulation": f.IsUsingSimulation(),
	}).Info("Streamer created")
	return s, nil
}

// Session returns the session shared by this Streamer's client and server roles.
func (s *Streamer) Session() *stream.Session {
	return s.session
}

// Factory returns the transport factory in use.
func (s *Streamer) Factory() *factory.TransportFactory {
	return s.factory
}

// Transmit streams the animation file at path to the configured host and port.
// While this Streamer is serving, Transmit logs a warning and sends nothing.
func (s *Streamer) Transmit(ctx context.Context, path string) (stream.TransmitReport, error) {
	tx, dest, release, err := s.newTransmitter()
	if err != nil {
		return stream.TransmitReport{}, err
	}
	defer release()
	return tx.TransmitFile(ctx, path, dest)
}

// TransmitScene streams the markers under markerSet of an already loaded scene.
func (s *Streamer) TransmitScene(ctx context.Context, sc *scene.Scene, markerSet scene.NodeID) (stream.TransmitReport, error) {
	tx, dest, release, err := s.newTransmitter()
	if err != nil {
		return stream.TransmitReport{}, err
	}
	defer release()
	return tx.Transmit(ctx, sc, markerSet, dest)
}

// newTransmitter opens a sender for one transmission. release closes it.
func (s *Streamer) newTransmitter() (*stream.Transmitter, net.Addr, func(), error) {
	dest, err := s.factory.Destination(s.cfg.Network.Host, s.cfg.Network.Port)
	if err != nil {
		return nil, nil, nil, err
	}
	sender, err := s.factory.CreateSender()
	if err != nil {
		return nil, nil, nil, err
	}
	release := func() {
		if err := sender.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Streamer.Transmit",
				"error":    err.Error(),
			}).Warn("Failed to close sender")
		}
	}

	tx, err := stream.NewTransmitter(s.session, sender, s.cfg.TransmitConfig())
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	return tx, dest, release, nil
}

// StartServer runs one receive session on a background goroutine and returns
// once it has been launched. Use Wait for the outcome. Setup failures such as a
// bad template are reported by Wait.
func (s *Streamer) StartServer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
		default:
			logrus.WithFields(logrus.Fields{
				"function":   "Streamer.StartServer",
				"session_id": s.session.ID().String(),
			}).Warn("Server already started")
			return stream.ErrRoleBusy
		}
	}
	// The role is claimed before returning so a Transmit issued right after
	// StartServer already sees the server.
	if !s.session.Acquire(stream.RoleServer) {
		logrus.WithFields(logrus.Fields{
			"function": "Streamer.StartServer",
			"role":     s.session.Role().String(),
		}).Warn("Session busy, cannot start server")
		return stream.ErrRoleBusy
	}

	listenAddr := transport.ListenAddr(s.cfg.Network.Port)
	receiver, err := stream.NewReceiver(s.session, func() (interfaces.IDatagramSource, error) {
		return s.factory.CreateSource(listenAddr)
	}, s.cfg.ReceiverConfig())
	if err != nil {
		s.session.Release(stream.RoleServer)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.receiver, s.cancel, s.done = receiver, cancel, done
	s.report, s.err = stream.ServeReport{}, nil

	go s.serve(runCtx, receiver, done)
	return nil
}

// serve is the server goroutine. No panic escapes it.
func (s *Streamer) serve(ctx context.Context, receiver *stream.Receiver, done chan struct{}) {
	var (
		report stream.ServeReport
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Streamer.serve",
				"panic":    fmt.Sprint(r),
			}).Error("Receive session panicked")
			err = fmt.Errorf("%w: panic: %v", stream.ErrSessionFailed, r)
			report.Failed = true
			s.session.Release(stream.RoleServer)
		}
		s.mu.Lock()
		s.report, s.err = report, err
		s.mu.Unlock()
		close(done)
	}()

	report, err = receiver.ServeAcquired(ctx)
}

// Wait blocks until the server started by StartServer has finished and returns
// its report. It returns immediately when no server was started.
func (s *Streamer) Wait() (stream.ServeReport, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return stream.ServeReport{}, fmt.Errorf("server not started")
	}

	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.err
}

// ServerDone returns a channel closed when the current server has finished, or
// nil when no server was started.
func (s *Streamer) ServerDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ServerState returns the lifecycle state of the current or last server.
func (s *Streamer) ServerState() stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiver == nil {
		return stream.StateIdle
	}
	return s.receiver.State()
}

// Close stops a running server, waits for it, and releases an owned factory.
func (s *Streamer) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Streamer.Close",
		"session_id": s.session.ID().String(),
	}).Debug("Streamer closed")

	if s.ownsFactory {
		return s.factory.Close()
	}
	return nil
}
