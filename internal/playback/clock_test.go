package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/cutline/internal/timebase"
)

func TestClockPlayerAdvancesWhilePlaying(t *testing.T) {
	ctx := context.Background()
	p := NewClockPlayer()

	require.NoError(t, p.Open(ctx, "/media/a.mp4", timebase.Timestamp(1_000_000)))

	pos, err := p.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, timebase.Timestamp(1_000_000), pos)

	require.NoError(t, p.Play(ctx))
	time.Sleep(30 * time.Millisecond)

	pos, err = p.Position(ctx)
	require.NoError(t, err)
	assert.Greater(t, pos, timebase.Timestamp(1_000_000))
}

func TestClockPlayerPauseFreezesPosition(t *testing.T) {
	ctx := context.Background()
	p := NewClockPlayer()

	require.NoError(t, p.Open(ctx, "/media/a.mp4", 0))
	require.NoError(t, p.Play(ctx))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Pause(ctx))

	first, err := p.Position(ctx)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := p.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClockPlayerSeekResetsBase(t *testing.T) {
	ctx := context.Background()
	p := NewClockPlayer()

	require.NoError(t, p.Open(ctx, "/media/a.mp4", 0))
	require.NoError(t, p.Seek(ctx, timebase.Timestamp(5_000_000)))

	pos, err := p.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, timebase.Timestamp(5_000_000), pos)
}

func TestClockPlayerRequiresOpen(t *testing.T) {
	ctx := context.Background()
	p := NewClockPlayer()

	assert.Error(t, p.Play(ctx))
	_, err := p.Position(ctx)
	var syncErr *SyncError
	assert.ErrorAs(t, err, &syncErr)
}
