package testing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/opd-ai/keystream/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// animatedChain builds root -> child, each with keys curves on every axis.
func animatedChain(t *testing.T, keys int) (*scene.Scene, scene.NodeID, scene.NodeID) {
	t.Helper()
	s := scene.New("loss")
	root, err := s.AddNode(scene.RootID, "Hips", scene.KindSkeleton)
	require.NoError(t, err)
	child, err := s.AddNode(root, "Spine", scene.KindSkeleton)
	require.NoError(t, err)

	for _, id := range []scene.NodeID{root, child} {
		for _, prop := range scene.Properties {
			for _, axis := range scene.Axes {
				c, err := s.EnsureCurve(id, prop, axis)
				require.NoError(t, err)
				for k := 0; k < keys; k++ {
					c.AddOrSet(int64(k*33), float64(k), scene.InterpolationFor(prop))
				}
			}
		}
	}
	return s, root, child
}

func TestInjectLossFullRateKeepsOnlyBindPose(t *testing.T) {
	s, root, child := animatedChain(t, 5)

	report, err := InjectLoss(s, root, 1.0, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Nodes)
	assert.Equal(t, 8, report.KeysDropped)

	for _, id := range []scene.NodeID{root, child} {
		for _, prop := range scene.Properties {
			for _, axis := range scene.Axes {
				c := s.Curve(id, prop, axis)
				require.Equal(t, 1, c.KeyCount())
				k, _ := c.Key(0)
				assert.Equal(t, int64(0), k.TimeMs)
			}
		}
	}
}

func TestInjectLossZeroRateKeepsEverything(t *testing.T) {
	s, root, _ := animatedChain(t, 5)

	report, err := InjectLoss(s, root, 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.KeysDropped)
	assert.Equal(t, 5, s.Curve(root, scene.Rotation, scene.AxisX).KeyCount())
}

func TestInjectLossSameDecisionAcrossAxes(t *testing.T) {
	s, root, child := animatedChain(t, 40)

	_, err := InjectLoss(s, root, 0.5, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	for _, id := range []scene.NodeID{root, child} {
		reference := s.Curve(id, scene.Rotation, scene.AxisX).Keys()
		for _, prop := range scene.Properties {
			for _, axis := range scene.Axes {
				keys := s.Curve(id, prop, axis).Keys()
				require.Len(t, keys, len(reference))
				for i := range keys {
					assert.Equal(t, reference[i].TimeMs, keys[i].TimeMs)
				}
			}
		}
	}
}

func TestInjectLossDeterministicForSeed(t *testing.T) {
	a, rootA, _ := animatedChain(t, 30)
	b, rootB, _ := animatedChain(t, 30)

	ra, err := InjectLoss(a, rootA, 0.3, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	rb, err := InjectLoss(b, rootB, 0.3, rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	assert.Equal(t, ra, rb)
	assert.Equal(t, a.Curve(rootA, scene.Translation, scene.AxisZ).Keys(), b.Curve(rootB, scene.Translation, scene.AxisZ).Keys())
}

func TestInjectLossValidation(t *testing.T) {
	s, root, _ := animatedChain(t, 3)

	_, err := InjectLoss(s, root, 1.2, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInvalidLossRate)
	_, err = InjectLoss(s, root, -0.1, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInvalidLossRate)
	_, err = InjectLoss(s, root, math.NaN(), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInvalidLossRate)
	_, err = InjectLoss(s, 99, 0.5, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, scene.ErrUnknownNode)
}
