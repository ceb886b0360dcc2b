package timebase

import "fmt"

// Range is a half-open interval [Start, End) on the timeline. The
// exclusive end means two adjacent ranges never both contain the
// boundary instant.
type Range struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// NewRange builds a Range, rejecting negative durations.
func NewRange(start, end Timestamp) (Range, error) {
	if end < start {
		return Range{}, Violation("range end %s before start %s", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// RangeAt builds a Range from a start point and a duration.
func RangeAt(start, duration Timestamp) (Range, error) {
	return NewRange(start, start+duration)
}

// Duration returns End - Start.
func (r Range) Duration() Timestamp { return r.End - r.Start }

// Empty reports whether the range covers no time at all.
func (r Range) Empty() bool { return r.End == r.Start }

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t Timestamp) bool {
	return t >= r.Start && t < r.End
}

// Overlaps reports whether r and o share at least one instant. Empty
// ranges overlap nothing.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Intersect returns the shared portion of r and o, if any.
func (r Range) Intersect(o Range) (Range, bool) {
	if !r.Overlaps(o) {
		return Range{}, false
	}
	start := r.Start
	if o.Start > start {
		start = o.Start
	}
	end := r.End
	if o.End < end {
		end = o.End
	}
	return Range{Start: start, End: end}, true
}

// Shift returns the range translated by offset.
func (r Range) Shift(offset Timestamp) Range {
	return Range{Start: r.Start + offset, End: r.End + offset}
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}
