package scene

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScene indicates a scene document that violates the hierarchy rules.
var ErrInvalidScene = errors.New("invalid scene document")

// curveNames maps the document curve keys to their property and axis.
var curveNames = []struct {
	name string
	prop Property
	axis Axis
}{
	{"rx", Rotation, AxisX},
	{"ry", Rotation, AxisY},
	{"rz", Rotation, AxisZ},
	{"tx", Translation, AxisX},
	{"ty", Translation, AxisY},
	{"tz", Translation, AxisZ},
}

type sceneDocument struct {
	Name  string         `yaml:"name"`
	Nodes []nodeDocument `yaml:"nodes"`
}

type nodeDocument struct {
	Name    string           `yaml:"name"`
	Kind    NodeKind         `yaml:"kind"`
	Parent  int              `yaml:"parent"`
	JointID *uint64          `yaml:"joint_id,omitempty"`
	Curves  map[string][]Key `yaml:"curves,omitempty"`
}

// Load reads a scene document from path.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
			"error":    err.Error(),
		}).Error("Failed to read scene file")
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}

	s, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
		"nodes":    s.Len(),
	}).Debug("Scene loaded")
	return s, nil
}

// Save writes s to path, replacing any existing file.
func Save(s *Scene, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Save",
			"path":     path,
			"error":    err.Error(),
		}).Error("Failed to write scene file")
		return fmt.Errorf("save scene %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Save",
		"path":     path,
		"nodes":    s.Len(),
	}).Debug("Scene saved")
	return nil
}

// Marshal encodes s as a YAML scene document.
func Marshal(s *Scene) ([]byte, error) {
	doc := sceneDocument{Name: s.Name, Nodes: make([]nodeDocument, len(s.nodes))}
	for i, n := range s.nodes {
		nd := nodeDocument{Name: n.Name, Kind: n.Kind, Parent: int(n.Parent)}
		if n.HasJointID {
			id := n.JointID
			nd.JointID = &id
		}
		for _, cn := range curveNames {
			c := n.Curve(cn.prop, cn.axis)
			if c == nil {
				continue
			}
			if nd.Curves == nil {
				nd.Curves = make(map[string][]Key)
			}
			keys := c.Keys()
			if keys == nil {
				keys = []Key{}
			}
			nd.Curves[cn.name] = keys
		}
		doc.Nodes[i] = nd
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a YAML scene document. Node 0 must be the root and every
// other node must reference an earlier node as its parent.
func Unmarshal(data []byte) (*Scene, error) {
	var doc sceneDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidScene)
	}
	if doc.Nodes[0].Parent != int(NoNode) {
		return nil, fmt.Errorf("%w: node 0 must be the root (parent -1)", ErrInvalidScene)
	}

	s := &Scene{Name: doc.Name, nodes: make([]*Node, 0, len(doc.Nodes))}
	for i, nd := range doc.Nodes {
		if i > 0 && (nd.Parent < 0 || nd.Parent >= i) {
			return nil, fmt.Errorf("%w: node %d (%s) has parent %d", ErrInvalidScene, i, nd.Name, nd.Parent)
		}
		kind := nd.Kind
		if kind == "" {
			kind = KindNull
		}
		n := &Node{Name: nd.Name, Kind: kind, Parent: NodeID(nd.Parent)}
		if nd.JointID != nil {
			n.JointID = *nd.JointID
			n.HasJointID = true
		}
		for _, cn := range curveNames {
			keys, ok := nd.Curves[cn.name]
			if !ok {
				continue
			}
			for _, k := range keys {
				if k.TimeMs < 0 {
					return nil, fmt.Errorf("%w: node %s curve %s has negative time %d", ErrInvalidScene, nd.Name, cn.name, k.TimeMs)
				}
				if k.Interpolation != "" && !k.Interpolation.Valid() {
					return nil, fmt.Errorf("%w: node %s curve %s has interpolation %q", ErrInvalidScene, nd.Name, cn.name, k.Interpolation)
				}
			}
			n.SetCurve(cn.prop, cn.axis, NewCurve(keys...))
		}
		s.nodes = append(s.nodes, n)
		if i > 0 {
			parent := s.nodes[nd.Parent]
			parent.Children = append(parent.Children, NodeID(i))
		}
	}
	return s, nil
}
