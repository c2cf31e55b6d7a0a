package testing

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/opd-ai/keystream/scene"
	"github.com/sirupsen/logrus"
)

// ErrInvalidLossRate indicates a loss rate outside [0, 1].
var ErrInvalidLossRate = errors.New("loss rate must be within [0, 1]")

// LossReport describes what InjectLoss removed.
type LossReport struct {
	Nodes       int
	KeysDropped int
}

// InjectLoss emulates degraded transport on an already reconstructed animation.
// For every node below (and including) root and every key index beyond the first,
// one draw decides whether that key is removed from all six curves of the node.
// Index 0, the bind pose, is always kept. Nodes are visited with an explicit
// worklist in pre-order, and draws happen in ascending key order, so a fixed
// rng seed gives a reproducible result.
func InjectLoss(s *scene.Scene, root scene.NodeID, rate float64, rng *rand.Rand) (LossReport, error) {
	if !(rate >= 0 && rate <= 1) {
		return LossReport{}, fmt.Errorf("%w: %v", ErrInvalidLossRate, rate)
	}
	if !s.Contains(root) {
		return LossReport{}, fmt.Errorf("inject loss: %w: %d", scene.ErrUnknownNode, root)
	}

	var report LossReport
	for _, id := range s.Walk(root) {
		node := s.Node(id)
		report.Nodes++

		keyCount := node.MaxKeyCount()
		var drop []int
		for i := 1; i < keyCount; i++ {
			if rng.Float64() < rate {
				drop = append(drop, i)
			}
		}

		// Remove from the highest index down so earlier indices stay valid.
		for d := len(drop) - 1; d >= 0; d-- {
			idx := drop[d]
			for _, prop := range scene.Properties {
				for _, axis := range scene.Axes {
					c := node.Curve(prop, axis)
					if idx < c.KeyCount() {
						_ = c.RemoveAt(idx)
					}
				}
			}
		}
		report.KeysDropped += len(drop)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "InjectLoss",
		"rate":         rate,
		"nodes":        report.Nodes,
		"keys_dropped": report.KeysDropped,
	}).Info("Loss injection completed")

	return report, nil
}
