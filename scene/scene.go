package scene

import (
	"errors"
	"fmt"
)

// NodeID indexes a node inside its scene's node arena.
type NodeID int

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// RootID is the implicit scene root every scene starts with.
const RootID NodeID = 0

// NodeKind classifies a node in the hierarchy.
type NodeKind string

const (
	KindNull      NodeKind = "null"
	KindSkeleton  NodeKind = "skeleton"
	KindMarkerSet NodeKind = "marker_set"
	KindMarker    NodeKind = "marker"
)

// Property selects the rotation or translation channel group of a node.
type Property int

const (
	Rotation Property = iota
	Translation
)

func (p Property) String() string {
	if p == Rotation {
		return "rotation"
	}
	return "translation"
}

// Axis selects one component of a channel group.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the three axes in wire order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

// Properties lists both channel groups in wire order.
var Properties = [2]Property{Rotation, Translation}

var (
	// ErrUnknownNode indicates a NodeID that is not part of the scene.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoSkeleton indicates the scene has no skeleton root.
	ErrNoSkeleton = errors.New("no skeleton found")
	// ErrNoMarkerSet indicates the scene has no marker set.
	ErrNoMarkerSet = errors.New("no marker set found")
)

// Node is one element of the scene hierarchy with its animation channels.
type Node struct {
	Name     string
	Kind     NodeKind
	Parent   NodeID
	Children []NodeID

	// JointID is the application-defined identifier streamed on the wire.
	JointID    uint64
	HasJointID bool

	Rotation    [3]*Curve
	Translation [3]*Curve
}

// Curve returns the curve for prop/axis, or nil when the node has none.
func (n *Node) Curve(prop Property, axis Axis) *Curve {
	if prop == Rotation {
		return n.Rotation[axis]
	}
	return n.Translation[axis]
}

// SetCurve installs c as the prop/axis curve.
func (n *Node) SetCurve(prop Property, axis Axis, c *Curve) {
	if prop == Rotation {
		n.Rotation[axis] = c
		return
	}
	n.Translation[axis] = c
}

// MaxKeyCount returns the largest key count across the node's six curves.
func (n *Node) MaxKeyCount() int {
	max := 0
	for _, prop := range Properties {
		for _, axis := range Axes {
			if c := n.Curve(prop, axis).KeyCount(); c > max {
				max = c
			}
		}
	}
	return max
}

// Scene is an arena of nodes rooted at RootID.
type Scene struct {
	Name  string
	nodes []*Node
}

// New creates an empty scene holding only the root node.
func New(name string) *Scene {
	return &Scene{
		Name:  name,
		nodes: []*Node{{Name: "RootNode", Kind: KindNull, Parent: NoNode}},
	}
}

// AddNode appends a child of parent and returns its id.
func (s *Scene) AddNode(parent NodeID, name string, kind NodeKind) (NodeID, error) {
	p, err := s.lookup(parent)
	if err != nil {
		return NoNode, err
	}
	id := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, &Node{Name: name, Kind: kind, Parent: parent})
	p.Children = append(p.Children, id)
	return id, nil
}

// Node returns the node for id, or nil when id is unknown.
func (s *Scene) Node(id NodeID) *Node {
	n, err := s.lookup(id)
	if err != nil {
		return nil
	}
	return n
}

// Len returns the number of nodes including the root.
func (s *Scene) Len() int {
	return len(s.nodes)
}

// Contains reports whether id belongs to the scene.
func (s *Scene) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(s.nodes)
}

// Children returns the direct children of id.
func (s *Scene) Children(id NodeID) []NodeID {
	n := s.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, len(n.Children))
	copy(out, n.Children)
	return out
}

// Curve returns the prop/axis curve of node id, or nil.
func (s *Scene) Curve(id NodeID, prop Property, axis Axis) *Curve {
	n := s.Node(id)
	if n == nil {
		return nil
	}
	return n.Curve(prop, axis)
}

// EnsureCurve returns the prop/axis curve of node id, creating an empty one if absent.
func (s *Scene) EnsureCurve(id NodeID, prop Property, axis Axis) (*Curve, error) {
	n, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	c := n.Curve(prop, axis)
	if c == nil {
		c = &Curve{}
		n.SetCurve(prop, axis, c)
	}
	return c, nil
}

// SetJointID assigns the streamed identifier of node id.
func (s *Scene) SetJointID(id NodeID, jointID uint64) error {
	n, err := s.lookup(id)
	if err != nil {
		return err
	}
	n.JointID = jointID
	n.HasJointID = true
	return nil
}

// Walk returns root and all of its descendants in pre-order.
// It uses an explicit stack so deep hierarchies cannot exhaust the goroutine stack.
func (s *Scene) Walk(root NodeID) []NodeID {
	if !s.Contains(root) {
		return nil
	}
	var out []NodeID
	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, id)

		children := s.nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// FindChild returns the first direct child of parent with the given name.
func (s *Scene) FindChild(parent NodeID, name string) NodeID {
	n := s.Node(parent)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if s.nodes[c].Name == name {
			return c
		}
	}
	return NoNode
}

// TruncateKeys keeps only the first keep keys on every curve below root.
func (s *Scene) TruncateKeys(root NodeID, keep int) {
	for _, id := range s.Walk(root) {
		n := s.nodes[id]
		for _, prop := range Properties {
			for _, axis := range Axes {
				if c := n.Curve(prop, axis); c != nil {
					c.Truncate(keep)
				}
			}
		}
	}
}

func (s *Scene) lookup(id NodeID) (*Node, error) {
	if !s.Contains(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return s.nodes[id], nil
}
