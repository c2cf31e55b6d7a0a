// Package jointmap associates streamed joint identifiers with the scene nodes
// whose channels they target.
//
// A Map is built once per session, before any decoding starts, and is read-only
// afterwards, so concurrent decoders may call Lookup without locking.
package jointmap

import (
	"fmt"
	"sort"

	"github.com/opd-ai/keystream/scene"
	"github.com/sirupsen/logrus"
)

// Map is an immutable jointId -> node association.
type Map struct {
	byID map[uint64]scene.NodeID
}

// Build iterates the direct children of markerSet and records each child's joint
// identifier. Children without one are skipped; duplicate identifiers keep the
// last child seen.
func Build(s *scene.Scene, markerSet scene.NodeID) (*Map, error) {
	set := s.Node(markerSet)
	if set == nil {
		return nil, fmt.Errorf("build joint map: %w: %d", scene.ErrUnknownNode, markerSet)
	}

	m := &Map{byID: make(map[uint64]scene.NodeID, len(set.Children))}
	for _, child := range set.Children {
		n := s.Node(child)
		if !n.HasJointID {
			logrus.WithFields(logrus.Fields{
				"function": "jointmap.Build",
				"node":     n.Name,
			}).Warn("Marker has no joint id, it will never receive samples")
			continue
		}
		if prev, dup := m.byID[n.JointID]; dup {
			logrus.WithFields(logrus.Fields{
				"function": "jointmap.Build",
				"joint_id": n.JointID,
				"previous": s.Node(prev).Name,
				"node":     n.Name,
			}).Warn("Duplicate joint id, last marker wins")
		}
		m.byID[n.JointID] = child
	}

	logrus.WithFields(logrus.Fields{
		"function": "jointmap.Build",
		"set":      set.Name,
		"joints":   len(m.byID),
	}).Debug("Joint identity map built")
	return m, nil
}

// Lookup returns the node targeted by id.
func (m *Map) Lookup(id uint64) (scene.NodeID, bool) {
	n, ok := m.byID[id]
	if !ok {
		return scene.NoNode, false
	}
	return n, true
}

// Len returns the number of mapped joints.
func (m *Map) Len() int {
	return len(m.byID)
}

// IDs returns the mapped identifiers in ascending order.
func (m *Map) IDs() []uint64 {
	ids := make([]uint64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
