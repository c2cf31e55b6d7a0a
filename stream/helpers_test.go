package stream

import (
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opd-ai/keystream/packet"
	"github.com/opd-ai/keystream/scene"
	"github.com/stretchr/testify/require"
)

// animatedScene builds a chain of joints animated over keys keys, 10ms apart,
// and converts it to absolute markers.
func animatedScene(t *testing.T, joints, keys int) (*scene.Scene, scene.NodeID, scene.NodeID) {
	t.Helper()
	sc := scene.New("anim")

	parent := scene.RootID
	var root scene.NodeID
	for j := 0; j < joints; j++ {
		id, err := sc.AddNode(parent, jointName(j), scene.KindSkeleton)
		require.NoError(t, err)
		if j == 0 {
			root = id
		}

		rz := scene.NewCurve()
		tx := scene.NewCurve()
		for k := 0; k < keys; k++ {
			rz.AddOrSet(int64(k*10), float64(k), scene.InterpolationCubic)
			tx.AddOrSet(int64(k*10), float64(j+1), scene.InterpolationLinear)
		}
		sc.Node(id).SetCurve(scene.Rotation, scene.AxisZ, rz)
		sc.Node(id).SetCurve(scene.Translation, scene.AxisX, tx)
		parent = id
	}

	set, err := scene.ToAbsoluteMarkers(sc, root)
	require.NoError(t, err)
	return sc, root, set
}

// writeTemplate saves a bind-pose-only copy of the animated chain, as a server
// template would look.
func writeTemplate(t *testing.T, joints int) string {
	t.Helper()
	sc, _, _ := animatedScene(t, joints, 1)
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, scene.Save(sc, path))
	return path
}

func jointName(j int) string {
	return []string{"Hips", "Spine", "Chest", "Neck", "Head", "Arm", "Hand", "Finger"}[j%8] + string(rune('A'+j/8))
}

// recordingSender captures every datagram; failAt makes the n-th send (1-based) fail.
type recordingSender struct {
	mu      sync.Mutex
	sent    [][]byte
	failAt  map[int]error
	calls   int
	closeOK bool
}

func (s *recordingSender) Send(payload []byte, addr net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.failAt[s.calls]; ok {
		return err
	}
	s.sent = append(s.sent, append([]byte{}, payload...))
	return nil
}

func (s *recordingSender) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (s *recordingSender) Close() error        { s.closeOK = true; return nil }
func (s *recordingSender) IsSimulation() bool  { return true }

func (s *recordingSender) datagrams() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte{}, s.sent...)
}

func samplesOf(t *testing.T, datagrams [][]byte) []packet.JointSample {
	t.Helper()
	var all []packet.JointSample
	for _, d := range datagrams {
		got, err := packet.Decode(d)
		require.NoError(t, err)
		all = append(all, got...)
	}
	return all
}

var testDest = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 33450}
