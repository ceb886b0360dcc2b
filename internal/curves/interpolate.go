package curves

import "github.com/mantonx/cutline/internal/timebase"

// interpolate blends between the bracketing keyframes k1 and k2 at time
// at, where k1.Time <= at <= k2.Time. The segment's behavior is chosen
// by k1's interpolation kind.
func interpolate(k1, k2 Keyframe, at timebase.Timestamp) float64 {
	if k1.Interpolation == InterpHold {
		return k1.Value
	}
	span := k2.Time - k1.Time
	if span <= 0 {
		return k1.Value
	}
	progress := float64(at-k1.Time) / float64(span)

	if k1.Interpolation == InterpBezier {
		return bezierValue(k1, k2, progress)
	}
	return k1.Value + (k2.Value-k1.Value)*easeProgress(k1.Interpolation, progress)
}

// easeProgress maps linear progress in [0,1] through the segment's
// easing curve.
func easeProgress(kind Interpolation, p float64) float64 {
	switch kind {
	case InterpLinear:
		return p
	case InterpEaseIn:
		return p * p
	case InterpEaseOut:
		inv := 1 - p
		return 1 - inv*inv
	case InterpEaseInOut:
		return easeInOut(p)
	default:
		return p
	}
}

func easeInOut(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	inv := 1 - p
	return 1 - 2*inv*inv
}

// bezierValue evaluates a bezier segment by cubic interpolation over the
// stored handle value offsets, parameterized by progress. When a segment
// carries no handle data it deliberately falls back to the ease-in-out
// curve; absent handles mean the author never shaped the segment, and
// the fallback keeps old project files rendering the same.
func bezierValue(k1, k2 Keyframe, p float64) float64 {
	if k1.Handles == nil {
		return k1.Value + (k2.Value-k1.Value)*easeInOut(p)
	}
	h := k1.Handles
	p0 := k1.Value
	p1 := k1.Value + h.OutValue
	p2 := k2.Value + h.InValue
	p3 := k2.Value

	inv := 1 - p
	return inv*inv*inv*p0 +
		3*inv*inv*p*p1 +
		3*inv*p*p*p2 +
		p*p*p*p3
}
