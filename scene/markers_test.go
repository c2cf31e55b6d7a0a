package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSkeletonRootAndMarkerSet(t *testing.T) {
	s := New("x")
	_, err := FindSkeletonRoot(s)
	assert.ErrorIs(t, err, ErrNoSkeleton)
	_, err = FindMarkerSet(s)
	assert.ErrorIs(t, err, ErrNoMarkerSet)

	_, _ = s.AddNode(RootID, "camera", KindNull)
	skel, _ := s.AddNode(RootID, "Hips", KindSkeleton)
	got, err := FindSkeletonRoot(s)
	require.NoError(t, err)
	assert.Equal(t, skel, got)

	set, err := ToAbsoluteMarkers(s, skel)
	require.NoError(t, err)
	found, err := FindMarkerSet(s)
	require.NoError(t, err)
	assert.Equal(t, set, found)
}

func TestToAbsoluteMarkers(t *testing.T) {
	s, hips, spine := buildChain(t)

	set, err := ToAbsoluteMarkers(s, hips)
	require.NoError(t, err)
	assert.Equal(t, "Hips"+MarkerSetSuffix, s.Node(set).Name)

	markers := s.Children(set)
	require.Len(t, markers, 2)
	hm, sm := markers[0], markers[1]

	// identifiers are assigned to joints and copied to markers
	assert.True(t, s.Node(hips).HasJointID)
	assert.Equal(t, s.Node(hips).JointID, s.Node(hm).JointID)
	assert.Equal(t, s.Node(spine).JointID, s.Node(sm).JointID)
	assert.NotEqual(t, s.Node(hm).JointID, s.Node(sm).JointID)

	// every marker curve shares the same key grid
	for _, m := range markers {
		for _, prop := range Properties {
			for _, axis := range Axes {
				assert.Equal(t, 3, s.Curve(m, prop, axis).KeyCount())
			}
		}
	}

	rx, _ := s.Curve(sm, Rotation, AxisX).Evaluate(10)
	assert.InDelta(t, 1.5, rx, 1e-9)
	tx, _ := s.Curve(sm, Translation, AxisX).Evaluate(10)
	assert.InDelta(t, 15, tx, 1e-9)

	k, _ := s.Curve(sm, Rotation, AxisX).Key(1)
	assert.Equal(t, InterpolationCubic, k.Interpolation)
	k, _ = s.Curve(sm, Translation, AxisX).Key(1)
	assert.Equal(t, InterpolationLinear, k.Interpolation)
}

func TestToAbsoluteMarkersIsRepeatable(t *testing.T) {
	s, hips, _ := buildChain(t)

	first, err := ToAbsoluteMarkers(s, hips)
	require.NoError(t, err)
	n := s.Len()

	second, err := ToAbsoluteMarkers(s, hips)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, n, s.Len())
}

func TestFromAbsoluteMarkersInvertsConversion(t *testing.T) {
	s, hips, spine := buildChain(t)
	set, err := ToAbsoluteMarkers(s, hips)
	require.NoError(t, err)

	s.TruncateKeys(hips, 1)
	require.NoError(t, FromAbsoluteMarkers(s, hips, set))

	for _, at := range []int64{0, 10, 20} {
		hv, _ := s.Curve(hips, Rotation, AxisX).Evaluate(at)
		sv, _ := s.Curve(spine, Rotation, AxisX).Evaluate(at)
		st, _ := s.Curve(spine, Translation, AxisX).Evaluate(at)
		assert.InDelta(t, float64(at)/10, hv, 1e-9, "hips rx at %d", at)
		assert.InDelta(t, float64(at)/20, sv, 1e-9, "spine rx at %d", at)
		assert.InDelta(t, 5, st, 1e-9, "spine tx at %d", at)
	}
	assert.Equal(t, 3, s.Curve(spine, Rotation, AxisX).KeyCount())
}

func TestFromAbsoluteMarkersUnknownNodes(t *testing.T) {
	s, hips, _ := buildChain(t)
	assert.ErrorIs(t, FromAbsoluteMarkers(s, 99, hips), ErrUnknownNode)
	assert.ErrorIs(t, FromAbsoluteMarkers(s, hips, 99), ErrUnknownNode)
}
