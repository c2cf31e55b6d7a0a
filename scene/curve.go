package scene

import (
	"fmt"
	"sort"
)

// Interpolation tags how a renderer moves from one key to the next.
type Interpolation string

const (
	// InterpolationConstant holds the key value until the next key.
	InterpolationConstant Interpolation = "constant"
	// InterpolationLinear blends linearly towards the next key.
	InterpolationLinear Interpolation = "linear"
	// InterpolationCubic blends along a Catmull-Rom spline through neighbouring keys.
	InterpolationCubic Interpolation = "cubic"
)

// Valid reports whether i is a known interpolation kind.
func (i Interpolation) Valid() bool {
	switch i {
	case InterpolationConstant, InterpolationLinear, InterpolationCubic:
		return true
	}
	return false
}

// Key is one timestamped value on a curve.
type Key struct {
	TimeMs        int64         `yaml:"t"`
	Value         float64       `yaml:"v"`
	Interpolation Interpolation `yaml:"i,omitempty"`
}

// Curve is an ordered, time-indexed sequence of keys for one axis.
// Keys are kept sorted by TimeMs with no duplicate times.
// A Curve is not safe for concurrent mutation.
type Curve struct {
	keys []Key
}

// NewCurve builds a curve from keys in any order. Later duplicates win.
func NewCurve(keys ...Key) *Curve {
	c := &Curve{}
	for _, k := range keys {
		c.AddOrSet(k.TimeMs, k.Value, k.Interpolation)
	}
	return c
}

// KeyCount returns the number of keys.
func (c *Curve) KeyCount() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Key returns the key at index i.
func (c *Curve) Key(i int) (Key, bool) {
	if c == nil || i < 0 || i >= len(c.keys) {
		return Key{}, false
	}
	return c.keys[i], true
}

// Keys returns a copy of all keys.
func (c *Curve) Keys() []Key {
	if c == nil {
		return nil
	}
	out := make([]Key, len(c.keys))
	copy(out, c.keys)
	return out
}

// AddOrSet inserts a key at timeMs or overwrites the key already there.
// It returns the index of the key.
func (c *Curve) AddOrSet(timeMs int64, value float64, interp Interpolation) int {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i].TimeMs >= timeMs })
	k := Key{TimeMs: timeMs, Value: value, Interpolation: interp}
	if i < len(c.keys) && c.keys[i].TimeMs == timeMs {
		c.keys[i] = k
		return i
	}
	c.keys = append(c.keys, Key{})
	copy(c.keys[i+1:], c.keys[i:])
	c.keys[i] = k
	return i
}

// RemoveAt deletes the key at index i.
func (c *Curve) RemoveAt(i int) error {
	if i < 0 || i >= len(c.keys) {
		return fmt.Errorf("key index %d out of range [0,%d)", i, len(c.keys))
	}
	c.keys = append(c.keys[:i], c.keys[i+1:]...)
	return nil
}

// Truncate keeps the first n keys.
func (c *Curve) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(c.keys) {
		c.keys = c.keys[:n]
	}
}

// Evaluate samples the curve at timeMs. Outside the keyed range the nearest
// key value is held. The second result is false for an empty curve.
func (c *Curve) Evaluate(timeMs int64) (float64, bool) {
	if c.KeyCount() == 0 {
		return 0, false
	}
	n := len(c.keys)
	if timeMs <= c.keys[0].TimeMs {
		return c.keys[0].Value, true
	}
	if timeMs >= c.keys[n-1].TimeMs {
		return c.keys[n-1].Value, true
	}

	// keys[i-1].TimeMs < timeMs <= keys[i].TimeMs
	i := sort.Search(n, func(i int) bool { return c.keys[i].TimeMs >= timeMs })
	if c.keys[i].TimeMs == timeMs {
		return c.keys[i].Value, true
	}
	k0, k1 := c.keys[i-1], c.keys[i]
	u := float64(timeMs-k0.TimeMs) / float64(k1.TimeMs-k0.TimeMs)

	switch k0.Interpolation {
	case InterpolationConstant:
		return k0.Value, true
	case InterpolationCubic:
		prev := k0.Value
		if i-2 >= 0 {
			prev = c.keys[i-2].Value
		}
		next := k1.Value
		if i+1 < n {
			next = c.keys[i+1].Value
		}
		return catmullRom(prev, k0.Value, k1.Value, next, u), true
	default:
		return k0.Value + (k1.Value-k0.Value)*u, true
	}
}

func catmullRom(p0, p1, p2, p3, u float64) float64 {
	u2 := u * u
	u3 := u2 * u
	return 0.5 * ((2 * p1) +
		(-p0+p2)*u +
		(2*p0-5*p1+4*p2-p3)*u2 +
		(-p0+3*p1-3*p2+p3)*u3)
}
