package curves

import (
	"encoding/json"
)

// keyframeTrackJSON is the wire form of a KeyframeTrack. Keyframes are
// renormalized through SetKeyframes on decode, so a hand-edited or
// stale document cannot smuggle in unsorted or duplicate times.
type keyframeTrackJSON struct {
	Property  string     `json:"property"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Default   float64    `json:"default"`
	Keyframes []Keyframe `json:"keyframes,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *KeyframeTrack) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyframeTrackJSON{
		Property:  t.Property,
		Min:       t.Min,
		Max:       t.Max,
		Default:   t.Default,
		Keyframes: t.keys,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *KeyframeTrack) UnmarshalJSON(data []byte) error {
	var w keyframeTrackJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Property = w.Property
	t.Min = w.Min
	t.Max = w.Max
	t.Default = w.Default
	t.SetKeyframes(w.Keyframes)
	return nil
}

type speedRampJSON struct {
	Points []SpeedPoint `json:"points,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *SpeedRamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(speedRampJSON{Points: r.points})
}

// UnmarshalJSON implements json.Unmarshaler. Points are replayed
// through SetPoint, so invalid speeds in a persisted document are
// rejected rather than loaded.
func (r *SpeedRamp) UnmarshalJSON(data []byte) error {
	var w speedRampJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.points = r.points[:0]
	for _, p := range w.Points {
		if err := r.SetPoint(p); err != nil {
			return err
		}
	}
	return nil
}
