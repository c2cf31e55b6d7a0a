package stream

import (
	"fmt"

	"github.com/opd-ai/keystream/jointmap"
	"github.com/opd-ai/keystream/packet"
	"github.com/opd-ai/keystream/scene"
	"github.com/sirupsen/logrus"
)

// DecodeResult counts what one payload did to the target scene.
type DecodeResult struct {
	Applied int
	Skipped int
}

// Decoder applies received samples to the marker channels of a scene.
// Apply may be called from many goroutines at once: the joint map is read-only
// and every channel write happens under the joint's lock.
type Decoder struct {
	scene  *scene.Scene
	joints *jointmap.Map
	locker JointLocker
}

// NewDecoder creates a decoder writing into sc. A nil locker selects a coarse one.
func NewDecoder(sc *scene.Scene, joints *jointmap.Map, locker JointLocker) *Decoder {
	if locker == nil {
		locker = NewCoarseLocker()
	}
	return &Decoder{scene: sc, joints: joints, locker: locker}
}

// Apply decodes payload and applies each sample. A misaligned payload is rejected
// as a whole. Samples for unknown joints are logged and skipped.
func (d *Decoder) Apply(payload []byte) (DecodeResult, error) {
	samples, err := packet.Decode(payload)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("decode payload: %w", err)
	}

	var res DecodeResult
	for _, s := range samples {
		if d.ApplySample(s) {
			res.Applied++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// ApplySample adds or overwrites the keys of one sample at its timestamp.
// Rotation keys are tagged cubic and translation keys linear. Axes whose curve is
// absent on the target are left alone. It reports false for an unknown joint
// and for a negative timestamp, which no scene key may carry.
func (d *Decoder) ApplySample(s packet.JointSample) bool {
	if s.TimeMs < 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Decoder.ApplySample",
			"joint_id": s.JointID,
			"time_ms":  s.TimeMs,
		}).Warn("Decoding error, negative sample time")
		return false
	}
	id, ok := d.joints.Lookup(s.JointID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Decoder.ApplySample",
			"joint_id": s.JointID,
			"time_ms":  s.TimeMs,
		}).Warn("Decoding error, no marker with this joint id in the scene")
		return false
	}
	node := d.scene.Node(id)

	d.locker.Lock(s.JointID)
	defer d.locker.Unlock(s.JointID)

	for _, prop := range scene.Properties {
		values := s.Rotation()
		if prop == scene.Translation {
			values = s.Translation()
		}
		interp := scene.InterpolationFor(prop)
		for _, axis := range scene.Axes {
			c := node.Curve(prop, axis)
			if c == nil {
				continue
			}
			c.AddOrSet(s.TimeMs, values[axis], interp)
		}
	}
	return true
}
