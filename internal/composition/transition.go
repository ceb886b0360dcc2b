package composition

import (
	"github.com/mantonx/cutline/internal/curves"
	"github.com/mantonx/cutline/internal/timebase"
)

// TransitionKind identifies the visual or audible treatment applied
// across two adjacent clip edges.
type TransitionKind string

const (
	TransitionCrossfade  TransitionKind = "crossfade"
	TransitionDipToBlack TransitionKind = "dip_to_black"
	TransitionWipe       TransitionKind = "wipe"
	TransitionSlide      TransitionKind = "slide"
)

// Transition bridges the outgoing edge of one clip and the incoming
// edge of the next clip on the same track. It does not occupy its own
// range; it is an attachment on the shared edge, valid only while the
// two clips stay temporally adjacent and each is at least Duration
// long.
type Transition struct {
	ID         string               `json:"id"`
	Kind       TransitionKind       `json:"kind"`
	FromClipID string               `json:"from_clip_id"`
	ToClipID   string               `json:"to_clip_id"`
	Duration   timebase.Timestamp   `json:"duration"`
	Easing     curves.Interpolation `json:"easing"`
}

// Clone returns a copy of the transition.
func (t *Transition) Clone() *Transition {
	c := *t
	return &c
}
