package keystream

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/keystream/config"
	"github.com/opd-ai/keystream/factory"
	"github.com/opd-ai/keystream/scene"
	"github.com/opd-ai/keystream/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAnimation saves a two-joint chain with keys at 0, 10, ... and returns the
// animation path plus a template path holding only the bind pose.
func writeAnimation(t *testing.T, keys int) (string, string) {
	t.Helper()
	dir := t.TempDir()

	build := func(n int) *scene.Scene {
		sc := scene.New("walk")
		hips, err := sc.AddNode(scene.RootID, "Hips", scene.KindSkeleton)
		require.NoError(t, err)
		spine, err := sc.AddNode(hips, "Spine", scene.KindSkeleton)
		require.NoError(t, err)
		for _, id := range []scene.NodeID{hips, spine} {
			c := scene.NewCurve()
			for k := 0; k < n; k++ {
				c.AddOrSet(int64(k*10), float64(k), scene.InterpolationCubic)
			}
			sc.Node(id).SetCurve(scene.Rotation, scene.AxisY, c)
		}
		return sc
	}

	anim := filepath.Join(dir, "walk.yaml")
	require.NoError(t, scene.Save(build(keys), anim))

	base := build(1)
	skel, err := scene.FindSkeletonRoot(base)
	require.NoError(t, err)
	_, err = scene.ToAbsoluteMarkers(base, skel)
	require.NoError(t, err)
	template := filepath.Join(dir, "base.yaml")
	require.NoError(t, scene.Save(base, template))
	return anim, template
}

func simConfig(template, output string) *config.Config {
	cfg := config.Default()
	cfg.Network.UseSimulation = true
	cfg.Client.SampleInterval = 0
	cfg.Client.SentinelDelay = 0
	cfg.Server.Template = template
	cfg.Server.Output = output
	cfg.Server.ReceiveTimeout = 5 * time.Second
	return cfg
}

func TestLoopbackOverSimulatedLink(t *testing.T) {
	t.Setenv(factory.EnvUseSimulation, "true")
	anim, template := writeAnimation(t, 6)
	out := filepath.Join(t.TempDir(), "result.yaml")
	cfg := simConfig(template, out)

	shared, err := factory.NewTransportFactory(cfg.NetworkConfig())
	require.NoError(t, err)
	defer shared.Close()

	server, err := New(&Options{Config: cfg, Factory: shared})
	require.NoError(t, err)
	defer server.Close()
	client, err := New(&Options{Config: cfg, Factory: shared})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, server.StartServer(context.Background()))

	sent, err := client.Transmit(context.Background(), anim)
	require.NoError(t, err)
	assert.Equal(t, 10, sent.Samples)

	report, err := server.Wait()
	require.NoError(t, err)
	assert.True(t, report.Sentinel)
	assert.Equal(t, 10, report.Applied)
	assert.Equal(t, stream.StateIdle, server.ServerState())

	got, err := scene.Load(out)
	require.NoError(t, err)
	skel, err := scene.FindSkeletonRoot(got)
	require.NoError(t, err)
	spine := got.Children(skel)[0]
	v, ok := got.Curve(spine, scene.Rotation, scene.AxisY).Evaluate(30)
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestTransmitWhileServingSendsNothing(t *testing.T) {
	anim, template := writeAnimation(t, 3)
	s, err := New(&Options{Config: simConfig(template, "")})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StartServer(context.Background()))
	assert.Equal(t, stream.RoleServer, s.Session().Role())

	report, err := s.Transmit(context.Background(), anim)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, s.Factory().SimulatedLink().GetTypedStats().Sent)

	assert.ErrorIs(t, s.StartServer(context.Background()), stream.ErrRoleBusy)
}

func TestCloseStopsServer(t *testing.T) {
	_, template := writeAnimation(t, 2)
	cfg := simConfig(template, "")
	cfg.Server.ReceiveTimeout = 0
	s, err := New(&Options{Config: cfg})
	require.NoError(t, err)

	require.NoError(t, s.StartServer(context.Background()))
	require.NoError(t, s.Close())

	_, err = s.Wait()
	assert.ErrorIs(t, err, stream.ErrSessionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitReportsSetupFailure(t *testing.T) {
	s, err := New(&Options{Config: simConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Wait()
	assert.Error(t, err)

	require.NoError(t, s.StartServer(context.Background()))
	_, err = s.Wait()
	assert.Error(t, err)
	assert.Equal(t, stream.RoleIdle, s.Session().Role())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Network.DatagramCapacity = 1
	_, err := New(&Options{Config: cfg})
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestNewOptionsDefaults(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, stream.RoleIdle, s.Session().Role())
	assert.Equal(t, stream.StateIdle, s.ServerState())
}
