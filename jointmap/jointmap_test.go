package jointmap

import (
	"testing"

	"github.com/opd-ai/keystream/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerSet(t *testing.T) (*scene.Scene, scene.NodeID, []scene.NodeID) {
	t.Helper()
	s := scene.New("markers")
	set, err := s.AddNode(scene.RootID, "Hips_Markers", scene.KindMarkerSet)
	require.NoError(t, err)

	var markers []scene.NodeID
	for i, name := range []string{"Hips", "Spine", "Head"} {
		m, err := s.AddNode(set, name, scene.KindMarker)
		require.NoError(t, err)
		require.NoError(t, s.SetJointID(m, uint64(10+i)))
		markers = append(markers, m)
	}
	return s, set, markers
}

func TestBuildAndLookup(t *testing.T) {
	s, set, markers := markerSet(t)

	m, err := Build(s, set)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []uint64{10, 11, 12}, m.IDs())

	for i, want := range markers {
		got, ok := m.Lookup(uint64(10 + i))
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	got, ok := m.Lookup(999)
	assert.False(t, ok)
	assert.Equal(t, scene.NoNode, got)
}

func TestBuildSkipsMarkersWithoutID(t *testing.T) {
	s, set, _ := markerSet(t)
	_, err := s.AddNode(set, "Unlabelled", scene.KindMarker)
	require.NoError(t, err)

	m, err := Build(s, set)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestBuildDuplicateLastWins(t *testing.T) {
	s, set, _ := markerSet(t)
	dup, err := s.AddNode(set, "HeadCopy", scene.KindMarker)
	require.NoError(t, err)
	require.NoError(t, s.SetJointID(dup, 12))

	m, err := Build(s, set)
	require.NoError(t, err)
	got, ok := m.Lookup(12)
	require.True(t, ok)
	assert.Equal(t, dup, got)
}

func TestBuildOnlyDirectChildren(t *testing.T) {
	s, set, markers := markerSet(t)
	nested, err := s.AddNode(markers[0], "Nested", scene.KindMarker)
	require.NoError(t, err)
	require.NoError(t, s.SetJointID(nested, 77))

	m, err := Build(s, set)
	require.NoError(t, err)
	_, ok := m.Lookup(77)
	assert.False(t, ok)
}

func TestBuildUnknownSet(t *testing.T) {
	s := scene.New("x")
	_, err := Build(s, 5)
	assert.ErrorIs(t, err, scene.ErrUnknownNode)
}
