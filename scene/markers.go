package scene

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// MarkerSetSuffix is appended to a skeleton root's name to name its marker set.
const MarkerSetSuffix = "_Markers"

// InterpolationFor returns the key tagging used for a channel group:
// cubic for rotation and linear for translation.
func InterpolationFor(prop Property) Interpolation {
	if prop == Rotation {
		return InterpolationCubic
	}
	return InterpolationLinear
}

// FindSkeletonRoot returns the first direct child of the scene root that is a skeleton.
func FindSkeletonRoot(s *Scene) (NodeID, error) {
	for _, c := range s.nodes[RootID].Children {
		if s.nodes[c].Kind == KindSkeleton {
			return c, nil
		}
	}
	return NoNode, ErrNoSkeleton
}

// FindMarkerSet returns the first marker set anywhere in the scene.
func FindMarkerSet(s *Scene) (NodeID, error) {
	for _, id := range s.Walk(RootID) {
		if s.nodes[id].Kind == KindMarkerSet {
			return id, nil
		}
	}
	return NoNode, ErrNoMarkerSet
}

// ToAbsoluteMarkers builds (or refreshes) a marker set holding one marker per joint
// of the skeleton rooted at skeletonRoot. Each marker carries the absolute transform
// of its joint, sampled on the union of all key times of the skeleton, so every
// marker curve shares the same key grid. Joints without an identifier get the next
// free one; markers copy it.
//
// The transform model is additive: absolute = sum of local values along the parent chain.
func ToAbsoluteMarkers(s *Scene, skeletonRoot NodeID) (NodeID, error) {
	root := s.Node(skeletonRoot)
	if root == nil {
		return NoNode, fmt.Errorf("skeleton root: %w: %d", ErrUnknownNode, skeletonRoot)
	}

	joints := s.Walk(skeletonRoot)
	assignJointIDs(s, joints)
	times := keyTimes(s, joints)

	setName := root.Name + MarkerSetSuffix
	set := s.FindChild(RootID, setName)
	if set == NoNode {
		var err error
		set, err = s.AddNode(RootID, setName, KindMarkerSet)
		if err != nil {
			return NoNode, err
		}
	}

	for _, j := range joints {
		joint := s.nodes[j]
		m := s.FindChild(set, joint.Name)
		if m == NoNode {
			var err error
			m, err = s.AddNode(set, joint.Name, KindMarker)
			if err != nil {
				return NoNode, err
			}
		}
		marker := s.nodes[m]
		marker.JointID = joint.JointID
		marker.HasJointID = true

		chain := ancestry(s, j, skeletonRoot)
		for _, prop := range Properties {
			interp := InterpolationFor(prop)
			for _, axis := range Axes {
				c := &Curve{}
				for _, t := range times {
					c.AddOrSet(t, chainValue(s, chain, prop, axis, t), interp)
				}
				marker.SetCurve(prop, axis, c)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "ToAbsoluteMarkers",
		"skeleton":   root.Name,
		"marker_set": setName,
		"joints":     len(joints),
		"keys":       len(times),
	}).Debug("Converted skeleton to absolute markers")
	return set, nil
}

// FromAbsoluteMarkers rebuilds the local joint transforms of the skeleton rooted at
// skeletonRoot from the absolute marker data in markerSet. Markers are matched to
// joints by name. Keys are added or overwritten at every marker key time; existing
// joint keys at other times are left alone.
func FromAbsoluteMarkers(s *Scene, skeletonRoot, markerSet NodeID) error {
	if s.Node(skeletonRoot) == nil {
		return fmt.Errorf("skeleton root: %w: %d", ErrUnknownNode, skeletonRoot)
	}
	if s.Node(markerSet) == nil {
		return fmt.Errorf("marker set: %w: %d", ErrUnknownNode, markerSet)
	}

	markerOf := make(map[string]NodeID)
	for _, m := range s.nodes[markerSet].Children {
		markerOf[s.nodes[m].Name] = m
	}

	rebuilt := 0
	for _, j := range s.Walk(skeletonRoot) {
		joint := s.nodes[j]
		m, ok := markerOf[joint.Name]
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "FromAbsoluteMarkers",
				"joint":    joint.Name,
			}).Warn("No marker found for joint, keeping its animation unchanged")
			continue
		}

		parentMarker := NoNode
		if j != skeletonRoot {
			if pm, ok := markerOf[s.nodes[joint.Parent].Name]; ok {
				parentMarker = pm
			}
		}

		times := keyTimes(s, []NodeID{m})
		for _, prop := range Properties {
			interp := InterpolationFor(prop)
			for _, axis := range Axes {
				mc := s.nodes[m].Curve(prop, axis)
				if mc.KeyCount() == 0 {
					continue
				}
				jc, _ := s.EnsureCurve(j, prop, axis)
				for _, t := range times {
					abs, _ := mc.Evaluate(t)
					local := abs
					if parentMarker != NoNode {
						if pv, ok := s.nodes[parentMarker].Curve(prop, axis).Evaluate(t); ok {
							local -= pv
						}
					}
					jc.AddOrSet(t, local, interp)
				}
			}
		}
		rebuilt++
	}

	logrus.WithFields(logrus.Fields{
		"function": "FromAbsoluteMarkers",
		"skeleton": s.nodes[skeletonRoot].Name,
		"joints":   rebuilt,
	}).Debug("Rebuilt skeleton from absolute markers")
	return nil
}

func assignJointIDs(s *Scene, joints []NodeID) {
	used := make(map[uint64]bool)
	for _, j := range joints {
		if s.nodes[j].HasJointID {
			used[s.nodes[j].JointID] = true
		}
	}
	next := uint64(1)
	for _, j := range joints {
		if s.nodes[j].HasJointID {
			continue
		}
		for used[next] {
			next++
		}
		s.nodes[j].JointID = next
		s.nodes[j].HasJointID = true
		used[next] = true
	}
}

// keyTimes returns the sorted union of key times over every curve of nodes.
func keyTimes(s *Scene, nodes []NodeID) []int64 {
	seen := make(map[int64]bool)
	for _, id := range nodes {
		n := s.nodes[id]
		for _, prop := range Properties {
			for _, axis := range Axes {
				c := n.Curve(prop, axis)
				for i := 0; i < c.KeyCount(); i++ {
					k, _ := c.Key(i)
					seen[k.TimeMs] = true
				}
			}
		}
	}
	times := make([]int64, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}

// ancestry returns id and its ancestors up to and including stop.
func ancestry(s *Scene, id, stop NodeID) []NodeID {
	var chain []NodeID
	for cur := id; cur != NoNode; cur = s.nodes[cur].Parent {
		chain = append(chain, cur)
		if cur == stop {
			break
		}
	}
	return chain
}

func chainValue(s *Scene, chain []NodeID, prop Property, axis Axis, t int64) float64 {
	sum := 0.0
	for _, id := range chain {
		if v, ok := s.nodes[id].Curve(prop, axis).Evaluate(t); ok {
			sum += v
		}
	}
	return sum
}
