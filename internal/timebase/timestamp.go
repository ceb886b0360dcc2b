// Package timebase provides the fixed-point time arithmetic used by the
// composition model, the curve engine, and the pipeline compiler. All
// timeline math is done in signed integer microseconds so that repeated
// edits never accumulate floating-point error.
package timebase

import (
	"fmt"
	"math"
)

// MicrosecondsPerSecond is the resolution of the timeline clock.
const MicrosecondsPerSecond = 1_000_000

// Timestamp is a point on the timeline, in microseconds since the
// timeline origin. It is also used for durations (a difference of two
// timestamps).
type Timestamp int64

// FromSeconds converts floating seconds to a Timestamp, rounding to the
// nearest microsecond.
func FromSeconds(sec float64) Timestamp {
	return Timestamp(math.Round(sec * MicrosecondsPerSecond))
}

// Seconds returns the timestamp as floating seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t) / MicrosecondsPerSecond
}

// FromFrames converts a frame count at the given frame rate to a
// Timestamp, rounding to the nearest microsecond.
func FromFrames(frames int64, fps float64) Timestamp {
	if fps <= 0 {
		return 0
	}
	return FromSeconds(float64(frames) / fps)
}

// Frames returns the nearest frame index at the given frame rate,
// computed as round(seconds * fps).
//
// Frame conversion is lossy for timestamps that are not frame-aligned:
// FromFrames(t.Frames(fps), fps) == t holds only when t already sits on
// a frame boundary. This is intentional; snapping is an editing
// operation, not a property of the clock.
func (t Timestamp) Frames(fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Round(t.Seconds() * fps))
}

// Add returns t + d.
func (t Timestamp) Add(d Timestamp) Timestamp { return t + d }

// Sub returns t - d.
func (t Timestamp) Sub(d Timestamp) Timestamp { return t - d }

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool { return t < o }

// After reports whether t is strictly later than o.
func (t Timestamp) After(o Timestamp) bool { return t > o }

func (t Timestamp) String() string {
	return fmt.Sprintf("%.6fs", t.Seconds())
}

// ContractViolationError reports a caller-side misuse of the core API:
// a negative duration, a non-positive speed on an active keyframe,
// malformed handle data. These are rejected immediately and never
// clamped, since clamping would make compiled pipelines irreproducible.
type ContractViolationError struct {
	Reason string
}

func (e *ContractViolationError) Error() string {
	return "contract violation: " + e.Reason
}

// Violation builds a ContractViolationError with a formatted reason.
func Violation(format string, args ...interface{}) error {
	return &ContractViolationError{Reason: fmt.Sprintf(format, args...)}
}
