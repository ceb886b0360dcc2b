package playback

import (
	"context"
	"sync"
	"time"

	"github.com/mantonx/cutline/internal/timebase"
)

// ClockPlayer is a media-less Player that advances its position on the
// wall clock. It backs headless deployments where no preview surface
// is attached; the synchronizer's boundary and seek logic still run
// against real time.
type ClockPlayer struct {
	mu      sync.Mutex
	opened  bool
	playing bool
	base    timebase.Timestamp
	mark    time.Time
}

// NewClockPlayer creates a stopped player with nothing open.
func NewClockPlayer() *ClockPlayer {
	return &ClockPlayer{}
}

// Open implements Player. The path is accepted unchecked.
func (p *ClockPlayer) Open(ctx context.Context, path string, at timebase.Timestamp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = true
	p.playing = false
	p.base = at
	p.mark = time.Now()
	return nil
}

// Play implements Player.
func (p *ClockPlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return &SyncError{Reason: "nothing open"}
	}
	if !p.playing {
		p.playing = true
		p.mark = time.Now()
	}
	return nil
}

// Pause implements Player.
func (p *ClockPlayer) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.base = p.positionLocked()
		p.playing = false
	}
	return nil
}

// Seek implements Player.
func (p *ClockPlayer) Seek(ctx context.Context, to timebase.Timestamp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return &SyncError{At: to, Reason: "nothing open"}
	}
	p.base = to
	p.mark = time.Now()
	return nil
}

// Position implements Player.
func (p *ClockPlayer) Position(ctx context.Context) (timebase.Timestamp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return 0, &SyncError{Reason: "nothing open"}
	}
	return p.positionLocked(), nil
}

func (p *ClockPlayer) positionLocked() timebase.Timestamp {
	if !p.playing {
		return p.base
	}
	return p.base.Add(timebase.Timestamp(time.Since(p.mark).Microseconds()))
}
