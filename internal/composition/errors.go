package composition

import (
	"fmt"

	"github.com/mantonx/cutline/internal/timebase"
)

// OverlapError is returned by mutations that would place two clips on
// the same track at overlapping times. It is always recoverable: the
// model is left untouched and the caller may retry with an adjusted
// range.
type OverlapError struct {
	TrackID    string
	Attempted  timebase.Range
	Conflicts  timebase.Range
	ConflictID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("clip range %s overlaps clip %s at %s on track %s",
		e.Attempted, e.ConflictID, e.Conflicts, e.TrackID)
}

// NotFoundError is returned when an operation references a track or
// clip ID that does not exist in the project.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
