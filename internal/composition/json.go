package composition

import (
	"encoding/json"

	"github.com/mantonx/cutline/internal/timebase"
)

// trackJSON is the wire form of a Track, with the clip and transition
// lists made explicit.
type trackJSON struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        TrackType     `json:"type"`
	Muted       bool          `json:"muted"`
	Solo        bool          `json:"solo"`
	Enabled     bool          `json:"enabled"`
	Gain        float64       `json:"gain"`
	Pan         float64       `json:"pan"`
	Clips       []*Clip       `json:"clips,omitempty"`
	Transitions []*Transition `json:"transitions,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		ID:          t.ID,
		Name:        t.Name,
		Type:        t.Type,
		Muted:       t.Muted,
		Solo:        t.Solo,
		Enabled:     t.Enabled,
		Gain:        t.Gain,
		Pan:         t.Pan,
		Clips:       t.clips,
		Transitions: t.transitions,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The clip list goes
// through Restore, so a document with overlapping clips is rejected.
func (t *Track) UnmarshalJSON(data []byte) error {
	var w trackJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.ID = w.ID
	t.Name = w.Name
	t.Type = w.Type
	t.Muted = w.Muted
	t.Solo = w.Solo
	t.Enabled = w.Enabled
	t.Gain = w.Gain
	t.Pan = w.Pan
	return t.Restore(w.Clips, w.Transitions)
}

type projectJSON struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Settings Settings            `json:"settings"`
	Tracks   []*Track            `json:"tracks,omitempty"`
	Playhead timebase.Timestamp  `json:"playhead"`
	InPoint  *timebase.Timestamp `json:"in_point,omitempty"`
	OutPoint *timebase.Timestamp `json:"out_point,omitempty"`
}

// MarshalJSON implements json.Marshaler. It takes the read lock, so a
// live project can be serialized concurrently with edits.
func (p *Project) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return json.Marshal(projectJSON{
		ID:       p.ID,
		Name:     p.Name,
		Settings: p.Settings,
		Tracks:   p.tracks,
		Playhead: p.playhead,
		InPoint:  p.inPoint,
		OutPoint: p.outPoint,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Project) UnmarshalJSON(data []byte) error {
	var w projectJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ID = w.ID
	p.Name = w.Name
	p.Settings = w.Settings
	p.tracks = w.Tracks
	p.playhead = w.Playhead
	p.inPoint = w.InPoint
	p.outPoint = w.OutPoint
	if p.selection == nil {
		p.selection = make(map[string]struct{})
	}
	return nil
}
