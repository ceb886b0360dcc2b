// Package playback keeps an external playback engine in step with the
// timeline. The engine plays source files and knows nothing about the
// composition; the synchronizer maps its media position back onto
// timeline time and hops between clips at their boundaries.
package playback

import (
	"context"
	"fmt"

	"github.com/mantonx/cutline/internal/timebase"
)

// Player is the control surface of the external playback engine.
// Positions are in source-file time, not timeline time.
type Player interface {
	Open(ctx context.Context, path string, at timebase.Timestamp) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, to timebase.Timestamp) error
	Position(ctx context.Context) (timebase.Timestamp, error)
}

// SyncError reports a synchronizer failure tied to a timeline
// position.
type SyncError struct {
	At     timebase.Timestamp
	Reason string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("playback sync failed at %s: %s", e.At, e.Reason)
}
