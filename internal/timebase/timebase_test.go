package timebase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSecondsRounding(t *testing.T) {
	assert.Equal(t, Timestamp(1_000_000), FromSeconds(1.0))
	assert.Equal(t, Timestamp(1_500_000), FromSeconds(1.5))
	assert.Equal(t, Timestamp(1), FromSeconds(0.0000014))
	assert.Equal(t, Timestamp(2), FromSeconds(0.0000016))
	assert.Equal(t, Timestamp(-2_500_000), FromSeconds(-2.5))
}

func TestFrameConversion(t *testing.T) {
	// 1 second at 25fps is exactly frame 25
	assert.Equal(t, int64(25), FromSeconds(1.0).Frames(25))
	assert.Equal(t, FromSeconds(1.0), FromFrames(25, 25))

	// frame-aligned timestamps round-trip exactly
	aligned := FromFrames(7, 24)
	assert.Equal(t, aligned, FromFrames(aligned.Frames(24), 24))

	// a timestamp between frames snaps to the nearest frame and does
	// not round-trip
	between := FromFrames(7, 24) + 10_000
	assert.NotEqual(t, between, FromFrames(between.Frames(24), 24))
}

func TestRangeContains(t *testing.T) {
	r, err := NewRange(FromSeconds(1), FromSeconds(3))
	require.NoError(t, err)

	assert.True(t, r.Contains(FromSeconds(1)))
	assert.True(t, r.Contains(FromSeconds(2)))
	assert.False(t, r.Contains(FromSeconds(3)), "end is exclusive")
	assert.False(t, r.Contains(FromSeconds(0.5)))
}

func TestRangeOverlapsSymmetric(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{0, 10}, Range{20, 30}, false},
		{"touching", Range{0, 10}, Range{10, 20}, false},
		{"partial", Range{0, 10}, Range{5, 15}, true},
		{"nested", Range{0, 100}, Range{20, 30}, true},
		{"identical", Range{5, 9}, Range{5, 9}, true},
		{"empty", Range{5, 5}, Range{0, 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
		})
	}
}

func TestRangeIntersect(t *testing.T) {
	a := Range{0, 10}
	b := Range{5, 15}

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, Range{5, 10}, got)

	_, ok = a.Intersect(Range{20, 30})
	assert.False(t, ok)
}

func TestNewRangeNegativeDuration(t *testing.T) {
	_, err := NewRange(FromSeconds(5), FromSeconds(2))
	require.Error(t, err)

	var cv *ContractViolationError
	assert.True(t, errors.As(err, &cv))
}

func TestRangeShift(t *testing.T) {
	r := Range{FromSeconds(1), FromSeconds(2)}
	assert.Equal(t, Range{FromSeconds(4), FromSeconds(5)}, r.Shift(FromSeconds(3)))
}
