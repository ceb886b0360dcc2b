package curves

import (
	"sort"

	"github.com/mantonx/cutline/internal/timebase"
)

// DefaultIntegrationSteps is the step count used by OutputDuration when
// the caller passes 0. It trades integration accuracy against
// evaluation cost and is exposed so callers can raise it for very
// aggressive ramps.
const DefaultIntegrationSteps = 100

// SpeedPoint is one keyframe of a speed ramp. Unlike a property
// keyframe it relates two time axes: a position in the source material
// and the speed multiplier applied there. OutputTime caches where that
// source position lands on the output timeline.
type SpeedPoint struct {
	SourceTime    timebase.Timestamp `json:"source_time"`
	OutputTime    timebase.Timestamp `json:"output_time"`
	Speed         float64            `json:"speed"`
	Interpolation Interpolation      `json:"interpolation"`
	Handles       *BezierHandles     `json:"handles,omitempty"`
}

// SpeedRamp is a variable-speed time remap for one clip. Points are
// sorted by source time and unique by source time.
type SpeedRamp struct {
	points []SpeedPoint
}

// NewSpeedRamp returns an empty ramp. An empty ramp means constant 1x
// speed.
func NewSpeedRamp() *SpeedRamp {
	return &SpeedRamp{}
}

// ConstantRamp builds a ramp that plays the whole clip at one speed.
func ConstantRamp(speed float64) (*SpeedRamp, error) {
	r := NewSpeedRamp()
	if err := r.SetPoint(SpeedPoint{SourceTime: 0, Speed: speed, Interpolation: InterpLinear}); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPoint inserts p, replacing any existing point at the same source
// time. A speed of zero or below on a non-hold point is rejected: the
// duration integral divides by speed, and clamping would silently change
// the compiled output.
func (r *SpeedRamp) SetPoint(p SpeedPoint) error {
	if p.Speed <= 0 && p.Interpolation != InterpHold {
		return timebase.Violation("speed ramp point at %s has non-positive speed %f", p.SourceTime, p.Speed)
	}
	i := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].SourceTime >= p.SourceTime
	})
	if i < len(r.points) && r.points[i].SourceTime == p.SourceTime {
		r.points[i] = p
		return nil
	}
	r.points = append(r.points, SpeedPoint{})
	copy(r.points[i+1:], r.points[i:])
	r.points[i] = p
	return nil
}

// RemovePoint deletes the point at exactly the given source time.
func (r *SpeedRamp) RemovePoint(at timebase.Timestamp) bool {
	for i, p := range r.points {
		if p.SourceTime == at {
			r.points = append(r.points[:i], r.points[i+1:]...)
			return true
		}
	}
	return false
}

// Points returns a copy of the ramp's points in source-time order.
func (r *SpeedRamp) Points() []SpeedPoint {
	out := make([]SpeedPoint, len(r.points))
	copy(out, r.points)
	return out
}

// Len returns the number of points.
func (r *SpeedRamp) Len() int { return len(r.points) }

// SpeedAt evaluates the speed multiplier at a source-material time,
// using the same interpolation dispatch as property curves. Outside the
// keyframed span the boundary speed is held; an empty ramp is 1x.
func (r *SpeedRamp) SpeedAt(src timebase.Timestamp) float64 {
	if len(r.points) == 0 {
		return 1.0
	}
	if src <= r.points[0].SourceTime {
		return r.points[0].Speed
	}
	last := r.points[len(r.points)-1]
	if src >= last.SourceTime {
		return last.Speed
	}
	i := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].SourceTime > src
	})
	k1 := r.points[i-1].asKeyframe()
	k2 := r.points[i].asKeyframe()
	return interpolate(k1, k2, src)
}

func (p SpeedPoint) asKeyframe() Keyframe {
	return Keyframe{
		Time:          p.SourceTime,
		Value:         p.Speed,
		Interpolation: p.Interpolation,
		Handles:       p.Handles,
	}
}

// OutputDuration integrates 1/speed over [0, sourceDuration) with a
// fixed-step sum to compute how long the remapped material takes on the
// output timeline. steps <= 0 selects DefaultIntegrationSteps. The
// result is exact for constant-speed ramps and an approximation
// elsewhere, converging as steps grows.
func (r *SpeedRamp) OutputDuration(sourceDuration timebase.Timestamp, steps int) (timebase.Timestamp, error) {
	if sourceDuration < 0 {
		return 0, timebase.Violation("negative source duration %s", sourceDuration)
	}
	if sourceDuration == 0 {
		return 0, nil
	}
	if steps <= 0 {
		steps = DefaultIntegrationSteps
	}

	stepSize := float64(sourceDuration) / float64(steps)
	var total float64
	for i := 0; i < steps; i++ {
		// sample at the midpoint of each step
		src := timebase.Timestamp(float64(i)*stepSize + stepSize/2)
		speed := r.SpeedAt(src)
		if speed <= 0 {
			return 0, timebase.Violation("speed ramp evaluates to non-positive speed %f at %s", speed, src)
		}
		total += stepSize / speed
	}
	return timebase.Timestamp(total + 0.5), nil
}

// Clone returns a deep copy of the ramp.
func (r *SpeedRamp) Clone() *SpeedRamp {
	c := &SpeedRamp{points: make([]SpeedPoint, len(r.points))}
	copy(c.points, r.points)
	for i, p := range r.points {
		if p.Handles != nil {
			h := *p.Handles
			c.points[i].Handles = &h
		}
	}
	return c
}
