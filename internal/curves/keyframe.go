// Package curves implements keyframe storage and interpolation. The same
// interpolation dispatch drives both property animation curves and
// speed-ramp time remapping, so a given keyframe kind behaves identically
// in both uses.
package curves

import (
	"sort"

	"github.com/mantonx/cutline/internal/timebase"
)

// Interpolation selects how the value between two keyframes is blended.
type Interpolation string

const (
	InterpHold      Interpolation = "hold"
	InterpLinear    Interpolation = "linear"
	InterpEaseIn    Interpolation = "ease_in"
	InterpEaseOut   Interpolation = "ease_out"
	InterpEaseInOut Interpolation = "ease_in_out"
	InterpBezier    Interpolation = "bezier"
)

// BezierHandles holds the outgoing and incoming control-point offsets of
// a bezier keyframe, relative to the keyframe's own (time, value) and to
// the next keyframe's, respectively. Times are in seconds.
type BezierHandles struct {
	OutTime  float64 `json:"out_time"`
	OutValue float64 `json:"out_value"`
	InTime   float64 `json:"in_time"`
	InValue  float64 `json:"in_value"`
}

// Keyframe is one animation point on a track.
type Keyframe struct {
	Time          timebase.Timestamp `json:"time"`
	Value         float64            `json:"value"`
	Interpolation Interpolation      `json:"interpolation"`
	Handles       *BezierHandles     `json:"handles,omitempty"`
}

// KeyframeTrack animates a single named property over time. Keyframes
// are kept sorted by time and are unique by time: setting a keyframe at
// an occupied time replaces the existing one.
type KeyframeTrack struct {
	Property string  `json:"property"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Default  float64 `json:"default"`

	keys []Keyframe
}

// NewKeyframeTrack creates an empty track for the named property.
func NewKeyframeTrack(property string, min, max, def float64) *KeyframeTrack {
	return &KeyframeTrack{
		Property: property,
		Min:      min,
		Max:      max,
		Default:  def,
	}
}

// SetKeyframe inserts k, replacing any existing keyframe at the same
// time.
func (t *KeyframeTrack) SetKeyframe(k Keyframe) {
	i := sort.Search(len(t.keys), func(i int) bool {
		return t.keys[i].Time >= k.Time
	})
	if i < len(t.keys) && t.keys[i].Time == k.Time {
		t.keys[i] = k
		return
	}
	t.keys = append(t.keys, Keyframe{})
	copy(t.keys[i+1:], t.keys[i:])
	t.keys[i] = k
}

// RemoveKeyframe deletes the keyframe at exactly the given time.
func (t *KeyframeTrack) RemoveKeyframe(at timebase.Timestamp) bool {
	for i, k := range t.keys {
		if k.Time == at {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			return true
		}
	}
	return false
}

// Keyframes returns a copy of the track's keyframes in time order.
func (t *KeyframeTrack) Keyframes() []Keyframe {
	out := make([]Keyframe, len(t.keys))
	copy(out, t.keys)
	return out
}

// SetKeyframes replaces the track contents, normalizing order and
// dropping duplicate times (later entries win). Used when rebuilding a
// track from persistence.
func (t *KeyframeTrack) SetKeyframes(keys []Keyframe) {
	t.keys = t.keys[:0]
	for _, k := range keys {
		t.SetKeyframe(k)
	}
}

// Len returns the number of keyframes.
func (t *KeyframeTrack) Len() int { return len(t.keys) }

// ValueAt evaluates the track at the given time. With no keyframes the
// default value is returned; outside the keyframed span the boundary
// keyframe's value is held (no extrapolation).
func (t *KeyframeTrack) ValueAt(at timebase.Timestamp) float64 {
	if len(t.keys) == 0 {
		return t.Default
	}
	if at <= t.keys[0].Time {
		return t.keys[0].Value
	}
	last := t.keys[len(t.keys)-1]
	if at >= last.Time {
		return last.Value
	}
	i := sort.Search(len(t.keys), func(i int) bool {
		return t.keys[i].Time > at
	})
	return interpolate(t.keys[i-1], t.keys[i], at)
}

// Clone returns a deep copy of the track.
func (t *KeyframeTrack) Clone() *KeyframeTrack {
	c := &KeyframeTrack{
		Property: t.Property,
		Min:      t.Min,
		Max:      t.Max,
		Default:  t.Default,
		keys:     make([]Keyframe, len(t.keys)),
	}
	copy(c.keys, t.keys)
	for i, k := range t.keys {
		if k.Handles != nil {
			h := *k.Handles
			c.keys[i].Handles = &h
		}
	}
	return c
}
