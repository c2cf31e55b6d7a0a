package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/opd-ai/keystream"
	"github.com/opd-ai/keystream/config"
	"github.com/opd-ai/keystream/factory"
	"github.com/opd-ai/keystream/scene"
	"github.com/opd-ai/keystream/stream"
	simnet "github.com/opd-ai/keystream/testing"
	"github.com/sirupsen/logrus"
)

// readyTimeout bounds how long loopback waits for its server to listen.
const readyTimeout = 10 * time.Second

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func runClient(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("client", stderr)
	def := config.Default()
	in := fs.String("in", "", "Animation file to transmit")
	interval := fs.Duration("interval", def.Client.SampleInterval, "Minimum spacing between samples (0 disables pacing)")
	sentinelDelay := fs.Duration("sentinel-delay", def.Client.SentinelDelay, "Pause before the final datagram and end-of-stream marker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, func(name string, cfg *config.Config) {
		switch name {
		case "interval":
			cfg.Client.SampleInterval = *interval
		case "sentinel-delay":
			cfg.Client.SentinelDelay = *sentinelDelay
		}
	})
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := requireFlag("in", *in); err != nil {
		return err
	}

	s, err := keystream.New(&keystream.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.Transmit(ctx, *in)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "sent %d samples for %d joints in %d datagrams (%d send errors)\n",
		report.Samples, report.Joints, report.Datagrams, report.SendErrors)
	return nil
}

// serverFlags registers the receive options shared by server and loopback.
func serverFlags(fs *flag.FlagSet) func(name string, cfg *config.Config) {
	def := config.Default()
	template := fs.String("template", "", "Template scene holding the target skeleton and marker set")
	out := fs.String("out", "", "Where to write the received animation")
	workers := fs.Int("workers", def.Server.DecodeWorkers, "Concurrent decode tasks (<= 0: unbounded)")
	lock := fs.String("lock", string(def.Server.LockMode), "Channel lock mode (coarse, joint)")
	timeout := fs.Duration("timeout", def.Server.ReceiveTimeout, "Fail the session when no datagram arrives in time (0: wait forever)")

	return func(name string, cfg *config.Config) {
		switch name {
		case "template":
			cfg.Server.Template = *template
		case "out":
			cfg.Server.Output = *out
		case "workers":
			cfg.Server.DecodeWorkers = *workers
		case "lock":
			cfg.Server.LockMode = stream.LockMode(*lock)
		case "timeout":
			cfg.Server.ReceiveTimeout = *timeout
		}
	}
}

func runServer(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("server", stderr)
	apply := serverFlags(fs)
	repeat := fs.Bool("repeat", false, "Keep serving sessions until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, func(name string, cfg *config.Config) {
		if name == "repeat" {
			cfg.Server.Repeat = *repeat
			return
		}
		apply(name, cfg)
	})
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := requireFlag("template", cfg.Server.Template); err != nil {
		return err
	}
	if err := requireFlag("out", cfg.Server.Output); err != nil {
		return err
	}

	s, err := keystream.New(&keystream.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		if err := s.StartServer(ctx); err != nil {
			return err
		}
		report, err := s.Wait()
		if err != nil {
			if !cfg.Server.Repeat || !errors.Is(err, stream.ErrSessionFailed) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			// The role is back to idle; the next session starts fresh.
			logrus.WithFields(logrus.Fields{
				"function": "runServer",
				"error":    err.Error(),
			}).Warn("Receive session failed, serving again")
			fmt.Fprintf(stdout, "session failed: %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "received %d datagrams, applied %d samples (%d unknown), wrote %s\n",
			report.Datagrams, report.Applied, report.Skipped, report.OutputPath)

		if !cfg.Server.Repeat || ctx.Err() != nil {
			return nil
		}
	}
}

func runPrepare(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("prepare", stderr)
	in := fs.String("in", "", "Scene containing the skeleton")
	out := fs.String("out", "", "Where to write the template")
	keep := fs.Bool("keep-animation", false, "Keep every key instead of only the bind pose")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := requireFlag("in", *in); err != nil {
		return err
	}
	if err := requireFlag("out", *out); err != nil {
		return err
	}

	sc, err := scene.Load(*in)
	if err != nil {
		return err
	}

	converted := 0
	for _, id := range sc.Children(scene.RootID) {
		if sc.Node(id).Kind != scene.KindSkeleton {
			continue
		}
		if _, err := scene.ToAbsoluteMarkers(sc, id); err != nil {
			return err
		}
		converted++
	}
	if converted == 0 {
		return fmt.Errorf("%s: %w", *in, scene.ErrNoSkeleton)
	}
	if !*keep {
		sc.TruncateKeys(scene.RootID, 1)
	}

	if err := scene.Save(sc, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote template %s with %d marker set(s)\n", *out, converted)
	return nil
}

func runDroptest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("droptest", stderr)
	in := fs.String("in", "", "Animation file")
	out := fs.String("out", "", "Where to write the degraded animation")
	rate := fs.Float64("rate", 0.6, "Probability of dropping each key after the first")
	seed := fs.Int64("seed", 0, "Random seed (0: seed from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := requireFlag("in", *in); err != nil {
		return err
	}
	if err := requireFlag("out", *out); err != nil {
		return err
	}

	sc, err := scene.Load(*in)
	if err != nil {
		return err
	}
	skel, err := scene.FindSkeletonRoot(sc)
	if err != nil {
		return fmt.Errorf("%s: %w", *in, err)
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	report, err := simnet.InjectLoss(sc, skel, *rate, rand.New(rand.NewSource(s)))
	if err != nil {
		return err
	}
	if err := scene.Save(sc, *out); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "dropped %d keys across %d nodes (seed %d), wrote %s\n", report.KeysDropped, report.Nodes, s, *out)
	return nil
}

func runLoopback(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("loopback", stderr)
	apply := serverFlags(fs)
	in := fs.String("in", "", "Animation file to transmit")
	loss := fs.Float64("loss", 0, "Simulated datagram loss rate")
	reorder := fs.Int("reorder", 0, "Simulated reorder window in datagrams")
	seed := fs.Int64("seed", 0, "Random seed for the simulated link (0: seed from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, func(name string, cfg *config.Config) {
		switch name {
		case "loss":
			cfg.Network.LossRate = *loss
		case "reorder":
			cfg.Network.ReorderWindow = *reorder
		case "seed":
			cfg.Network.Seed = *seed
		default:
			apply(name, cfg)
		}
	})
	if err != nil {
		return err
	}
	if !isSet(fs, "sim") {
		cfg.Network.UseSimulation = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := requireFlag("in", *in); err != nil {
		return err
	}
	if err := requireFlag("template", cfg.Server.Template); err != nil {
		return err
	}

	shared, err := factory.NewTransportFactory(cfg.NetworkConfig())
	if err != nil {
		return err
	}
	defer shared.Close()
	if cfg.Network.Seed != 0 {
		shared.SetSeed(cfg.Network.Seed)
	}

	server, err := keystream.New(&keystream.Options{Config: cfg, Factory: shared})
	if err != nil {
		return err
	}
	defer server.Close()
	client, err := keystream.New(&keystream.Options{Config: cfg, Factory: shared})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := server.StartServer(ctx); err != nil {
		return err
	}
	if err := waitListening(ctx, server); err != nil {
		_, serveErr := server.Wait()
		if serveErr != nil {
			return serveErr
		}
		return err
	}

	sent, err := client.Transmit(ctx, *in)
	if err != nil {
		return err
	}
	received, err := server.Wait()
	if err != nil {
		return err
	}

	if link := shared.SimulatedLink(); link != nil {
		stats := link.GetTypedStats()
		logrus.WithFields(logrus.Fields{
			"function":  "runLoopback",
			"sent":      stats.Sent,
			"delivered": stats.Delivered,
			"dropped":   stats.Dropped,
		}).Info("Simulated link statistics")
	}

	fmt.Fprintf(stdout, "sent %d samples in %d datagrams, applied %d\n", sent.Samples, sent.Datagrams, received.Applied)
	if received.OutputPath != "" {
		fmt.Fprintf(stdout, "wrote %s\n", received.OutputPath)
	}
	return nil
}

// waitListening blocks until server reads datagrams, or fails when it stops first.
func waitListening(ctx context.Context, server *keystream.Streamer) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(readyTimeout)

	for server.ServerState() != stream.StateListening {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-server.ServerDone():
			return fmt.Errorf("server stopped before listening")
		case <-deadline:
			return fmt.Errorf("server not listening after %s", readyTimeout)
		case <-ticker.C:
		}
	}
	return nil
}
