package composition

import (
	"github.com/google/uuid"

	"github.com/mantonx/cutline/internal/curves"
	"github.com/mantonx/cutline/internal/timebase"
)

// ClipKind tags the payload variant of a clip. All variants share the
// same base shape: they occupy a Range on a track and produce a
// processed media stream.
type ClipKind string

const (
	ClipMedia      ClipKind = "media"
	ClipText       ClipKind = "text"
	ClipAdjustment ClipKind = "adjustment"
	ClipNested     ClipKind = "nested"
)

// SourceRef points into an external media asset: which asset, and
// which slice of it this clip plays. Absent for generated clips (text,
// adjustment layers).
type SourceRef struct {
	AssetID string         `json:"asset_id"`
	Range   timebase.Range `json:"range"`
}

// TextPayload is the generated content of a text clip.
type TextPayload struct {
	Text     string  `json:"text"`
	Font     string  `json:"font"`
	Size     float64 `json:"size"`
	Color    string  `json:"color"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	BoxColor string  `json:"box_color,omitempty"`
}

// Payload carries the kind-specific data of a clip variant. Exactly
// one of the pointer fields matches Kind; media and adjustment clips
// carry nothing beyond the base shape.
type Payload struct {
	Kind   ClipKind     `json:"kind"`
	Text   *TextPayload `json:"text,omitempty"`
	Nested *Project     `json:"nested,omitempty"`
}

// Clip is a placement on a track: a timeline Range, an optional source
// slice, and the processing attachments (effects, masks, grade,
// animation, speed ramp) the pipeline compiler turns into stages.
type Clip struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Range   timebase.Range `json:"range"`
	Source  *SourceRef     `json:"source,omitempty"`
	Enabled bool           `json:"enabled"`
	Payload Payload        `json:"payload"`

	Effects   []*Effect               `json:"effects,omitempty"`
	Masks     []*Mask                 `json:"masks,omitempty"`
	Grade     ColorGrade              `json:"grade"`
	Animation []*curves.KeyframeTrack `json:"animation,omitempty"`
	Ramp      *curves.SpeedRamp       `json:"ramp,omitempty"`
}

// NewMediaClip places a slice of an asset on the timeline.
func NewMediaClip(name string, placement timebase.Range, assetID string, source timebase.Range) *Clip {
	return &Clip{
		ID:      uuid.New().String(),
		Name:    name,
		Range:   placement,
		Source:  &SourceRef{AssetID: assetID, Range: source},
		Enabled: true,
		Payload: Payload{Kind: ClipMedia},
		Grade:   NeutralGrade(),
	}
}

// NewTextClip places a generated text clip.
func NewTextClip(name string, placement timebase.Range, text TextPayload) *Clip {
	return &Clip{
		ID:      uuid.New().String(),
		Name:    name,
		Range:   placement,
		Enabled: true,
		Payload: Payload{Kind: ClipText, Text: &text},
		Grade:   NeutralGrade(),
	}
}

// NewAdjustmentClip places an adjustment layer: no media of its own,
// its effects apply to everything composited below it.
func NewAdjustmentClip(name string, placement timebase.Range) *Clip {
	return &Clip{
		ID:      uuid.New().String(),
		Name:    name,
		Range:   placement,
		Enabled: true,
		Payload: Payload{Kind: ClipAdjustment},
		Grade:   NeutralGrade(),
	}
}

// NewNestedClip places a sub-sequence. The child project is an
// independent composition model owned by this clip.
func NewNestedClip(name string, placement timebase.Range, child *Project) *Clip {
	return &Clip{
		ID:      uuid.New().String(),
		Name:    name,
		Range:   placement,
		Enabled: true,
		Payload: Payload{Kind: ClipNested, Nested: child},
		Grade:   NeutralGrade(),
	}
}

// AnimationTrack returns the clip's keyframe track for the named
// property, or nil.
func (c *Clip) AnimationTrack(property string) *curves.KeyframeTrack {
	for _, t := range c.Animation {
		if t.Property == property {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy of the clip, including nested sequences.
func (c *Clip) Clone() *Clip {
	cp := &Clip{
		ID:      c.ID,
		Name:    c.Name,
		Range:   c.Range,
		Enabled: c.Enabled,
		Grade:   c.Grade.Clone(),
	}
	if c.Source != nil {
		s := *c.Source
		cp.Source = &s
	}
	cp.Payload.Kind = c.Payload.Kind
	if c.Payload.Text != nil {
		t := *c.Payload.Text
		cp.Payload.Text = &t
	}
	if c.Payload.Nested != nil {
		cp.Payload.Nested = c.Payload.Nested.Snapshot()
	}
	for _, e := range c.Effects {
		cp.Effects = append(cp.Effects, e.Clone())
	}
	for _, m := range c.Masks {
		cp.Masks = append(cp.Masks, m.Clone())
	}
	for _, a := range c.Animation {
		cp.Animation = append(cp.Animation, a.Clone())
	}
	if c.Ramp != nil {
		cp.Ramp = c.Ramp.Clone()
	}
	return cp
}
