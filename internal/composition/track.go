package composition

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mantonx/cutline/internal/timebase"
)

// TrackType tags what a track carries.
type TrackType string

const (
	TrackVideo  TrackType = "video"
	TrackAudio  TrackType = "audio"
	TrackText   TrackType = "text"
	TrackEffect TrackType = "effect"
)

// Track is an ordered list of non-overlapping clips plus mix
// attributes. Clips are kept sorted by range start; the non-overlap
// invariant is enforced by the Project mutation operations, never
// merely checked after the fact.
type Track struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    TrackType `json:"type"`
	Muted   bool      `json:"muted"`
	Solo    bool      `json:"solo"`
	Enabled bool      `json:"enabled"`
	Gain    float64   `json:"gain"` // linear, 1.0 = unity
	Pan     float64   `json:"pan"`  // -1 left .. +1 right

	clips       []*Clip
	transitions []*Transition
}

// NewTrack creates an empty track of the given type.
func NewTrack(name string, typ TrackType) *Track {
	return &Track{
		ID:      uuid.New().String(),
		Name:    name,
		Type:    typ,
		Enabled: true,
		Gain:    1.0,
	}
}

// Clips returns the track's clips in start order. The returned slice
// is a copy; the clips themselves are shared.
func (t *Track) Clips() []*Clip {
	out := make([]*Clip, len(t.clips))
	copy(out, t.clips)
	return out
}

// Transitions returns the track's edge transitions.
func (t *Track) Transitions() []*Transition {
	out := make([]*Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// ClipByID returns the clip with the given ID, or nil.
func (t *Track) ClipByID(id string) *Clip {
	for _, c := range t.clips {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ClipAt returns the clip whose range contains the instant, or nil.
// At most one clip can match because of the non-overlap invariant.
func (t *Track) ClipAt(at timebase.Timestamp) *Clip {
	for _, c := range t.clips {
		if c.Range.Contains(at) {
			return c
		}
		if c.Range.Start > at {
			break
		}
	}
	return nil
}

// conflict returns the first clip other than excludeID whose range
// overlaps r, or nil.
func (t *Track) conflict(r timebase.Range, excludeID string) *Clip {
	for _, c := range t.clips {
		if c.ID == excludeID {
			continue
		}
		if c.Range.Overlaps(r) {
			return c
		}
	}
	return nil
}

// insert places the clip, assuming overlap has already been validated.
func (t *Track) insert(c *Clip) {
	i := sort.Search(len(t.clips), func(i int) bool {
		return t.clips[i].Range.Start >= c.Range.Start
	})
	t.clips = append(t.clips, nil)
	copy(t.clips[i+1:], t.clips[i:])
	t.clips[i] = c
}

// remove detaches the clip with the given ID and returns it, also
// dropping any transition anchored to it.
func (t *Track) remove(id string) *Clip {
	for i, c := range t.clips {
		if c.ID == id {
			t.clips = append(t.clips[:i], t.clips[i+1:]...)
			t.dropTransitionsFor(id)
			return c
		}
	}
	return nil
}

func (t *Track) dropTransitionsFor(clipID string) {
	kept := t.transitions[:0]
	for _, tr := range t.transitions {
		if tr.FromClipID != clipID && tr.ToClipID != clipID {
			kept = append(kept, tr)
		}
	}
	t.transitions = kept
}

// dropBrokenTransitions drops transitions whose clips are no longer
// adjacent or no longer long enough to host them.
func (t *Track) dropBrokenTransitions() {
	kept := t.transitions[:0]
	for _, tr := range t.transitions {
		a := t.ClipByID(tr.FromClipID)
		b := t.ClipByID(tr.ToClipID)
		if a != nil && b != nil && a.Range.End == b.Range.Start &&
			a.Range.Duration() >= tr.Duration && b.Range.Duration() >= tr.Duration {
			kept = append(kept, tr)
		}
	}
	t.transitions = kept
}

// Restore repopulates the track from persisted state. The clips are
// sorted and checked against the non-overlap invariant; a violation
// rejects the whole track.
func (t *Track) Restore(clips []*Clip, transitions []*Transition) error {
	sorted := make([]*Clip, len(clips))
	copy(sorted, clips)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start < sorted[j].Range.Start
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Range.Overlaps(sorted[i].Range) {
			return timebase.Violation("persisted clips %s and %s overlap on track %s",
				sorted[i-1].ID, sorted[i].ID, t.ID)
		}
	}
	t.clips = sorted
	t.transitions = append([]*Transition(nil), transitions...)
	return nil
}

// Clone returns a deep copy of the track and its clips.
func (t *Track) Clone() *Track {
	c := &Track{
		ID:      t.ID,
		Name:    t.Name,
		Type:    t.Type,
		Muted:   t.Muted,
		Solo:    t.Solo,
		Enabled: t.Enabled,
		Gain:    t.Gain,
		Pan:     t.Pan,
	}
	for _, cl := range t.clips {
		c.clips = append(c.clips, cl.Clone())
	}
	for _, tr := range t.transitions {
		c.transitions = append(c.transitions, tr.Clone())
	}
	return c
}
