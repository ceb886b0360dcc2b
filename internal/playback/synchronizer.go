package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/timebase"
)

const eventSource = "playback"

// Config controls the synchronizer's polling cadence.
type Config struct {
	TickRateHz int `yaml:"tick_rate_hz"`
}

// DefaultConfig polls the player 30 times per second.
func DefaultConfig() Config {
	return Config{TickRateHz: 30}
}

// PathResolver maps a clip's asset reference to a playable path.
type PathResolver interface {
	ResolvePath(assetID string) (string, error)
}

// segment is the clip currently loaded in the player, captured from a
// snapshot at open time.
type segment struct {
	clipID      string
	assetID     string
	clipRange   timebase.Range
	sourceStart timebase.Timestamp
}

// toTimeline maps a player position onto timeline time.
func (s *segment) toTimeline(playerPos timebase.Timestamp) timebase.Timestamp {
	return s.clipRange.Start.Add(playerPos.Sub(s.sourceStart))
}

// toSource maps a timeline position onto the segment's source time.
func (s *segment) toSource(timelinePos timebase.Timestamp) timebase.Timestamp {
	return s.sourceStart.Add(timelinePos.Sub(s.clipRange.Start))
}

// Synchronizer drives the player from a tick loop: every tick it polls
// the player position, projects it onto the timeline, moves the
// project playhead, and hops to the next clip when the current one
// runs out.
type Synchronizer struct {
	config  Config
	logger  hclog.Logger
	player  Player
	project *composition.Project
	assets  PathResolver
	bus     *events.Bus

	mu      sync.Mutex
	playing bool
	current *segment
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSynchronizer creates a stopped synchronizer for one project.
func NewSynchronizer(config Config, project *composition.Project, player Player, assets PathResolver, bus *events.Bus, logger hclog.Logger) *Synchronizer {
	if config.TickRateHz <= 0 {
		config.TickRateHz = DefaultConfig().TickRateHz
	}
	return &Synchronizer{
		config:  config,
		logger:  logger.Named("playback"),
		player:  player,
		project: project,
		assets:  assets,
		bus:     bus,
	}
}

// Play starts playback from the current playhead. If no clip is active
// there, playback starts at the next clip boundary; with nothing left
// to play it returns a SyncError.
func (s *Synchronizer) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return nil
	}

	pos := s.project.Playhead()
	snap := s.project.Snapshot()

	seg := resolveAt(snap, pos)
	if seg == nil {
		next, ok := nextStart(snap, pos)
		if !ok {
			return &SyncError{At: pos, Reason: "no clip at or after the playhead"}
		}
		pos = next
		seg = resolveAt(snap, pos)
	}

	if err := s.openLocked(ctx, seg, pos); err != nil {
		return err
	}
	if err := s.player.Play(ctx); err != nil {
		return fmt.Errorf("player play: %w", err)
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.playing = true
	go s.tickLoop(tickCtx)

	s.logger.Info("playback started", "position", pos.String(), "clip_id", seg.clipID)
	s.publish(events.EventPlaybackStarted, pos)
	return nil
}

// Stop halts playback and resets the playhead to the in point.
func (s *Synchronizer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Synchronizer) stopLocked(ctx context.Context) error {
	if !s.playing {
		return nil
	}
	s.cancel()
	done := s.done
	s.playing = false
	s.current = nil

	s.mu.Unlock()
	<-done
	s.mu.Lock()

	if err := s.player.Pause(ctx); err != nil {
		s.logger.Warn("player pause failed on stop", "error", err)
	}

	in := s.project.InPoint()
	s.project.SetPlayhead(in)
	s.logger.Info("playback stopped", "reset_to", in.String())
	s.publish(events.EventPlaybackStopped, in)
	return nil
}

// Pause halts the transport without moving the playhead; Play resumes
// from the paused position.
func (s *Synchronizer) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return nil
	}
	s.cancel()
	done := s.done
	s.playing = false
	s.current = nil

	s.mu.Unlock()
	<-done
	s.mu.Lock()

	if err := s.player.Pause(ctx); err != nil {
		s.logger.Warn("player pause failed", "error", err)
	}
	at := s.project.Playhead()
	s.logger.Debug("playback paused", "at", at.String())
	s.publish(events.EventPlaybackStopped, at)
	return nil
}

// Seek moves playback to a timeline position. The player is reopened
// only when the target lands in a different clip; within the same clip
// it seeks in place.
func (s *Synchronizer) Seek(ctx context.Context, to timebase.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.project.SetPlayhead(to)

	if s.playing {
		snap := s.project.Snapshot()
		seg := resolveAt(snap, to)
		switch {
		case seg == nil:
			// the target falls in a gap; hop the same way a tick
			// does when running off a clip end, so the stale
			// segment cannot re-project the old position
			if !s.advanceLocked(ctx, to) {
				return nil
			}
		case s.current != nil && seg.clipID == s.current.clipID:
			if err := s.player.Seek(ctx, s.current.toSource(to)); err != nil {
				return fmt.Errorf("player seek: %w", err)
			}
		default:
			if err := s.openLocked(ctx, seg, to); err != nil {
				return err
			}
			if err := s.player.Play(ctx); err != nil {
				return fmt.Errorf("player play: %w", err)
			}
		}
	}

	s.publish(events.EventPlaybackSeeked, to)
	return nil
}

// Position returns the current timeline playhead.
func (s *Synchronizer) Position() timebase.Timestamp {
	return s.project.Playhead()
}

// Playing reports whether the tick loop is running.
func (s *Synchronizer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Synchronizer) openLocked(ctx context.Context, seg *segment, at timebase.Timestamp) error {
	path, err := s.assets.ResolvePath(seg.assetID)
	if err != nil {
		return &SyncError{At: at, Reason: err.Error()}
	}
	if err := s.player.Open(ctx, path, seg.toSource(at)); err != nil {
		return fmt.Errorf("player open %s: %w", path, err)
	}
	s.current = seg
	return nil
}

func (s *Synchronizer) tickLoop(ctx context.Context) {
	defer close(s.done)

	interval := time.Second / time.Duration(s.config.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.tick(ctx) {
				return
			}
		}
	}
}

// tick advances one step. Returns false when playback ended and the
// loop should exit.
func (s *Synchronizer) tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || s.current == nil {
		return false
	}

	playerPos, err := s.player.Position(ctx)
	if err != nil {
		s.logger.Warn("player position poll failed", "error", err)
		return true
	}

	timelinePos := s.current.toTimeline(playerPos)

	if timelinePos >= s.current.clipRange.End {
		return s.advanceLocked(ctx, s.current.clipRange.End)
	}

	s.project.SetPlayhead(timelinePos)
	return true
}

// advanceLocked hops to whatever should play at or after boundary:
// the clip active at the boundary itself, else the clip with the
// earliest start strictly greater, else playback ends.
func (s *Synchronizer) advanceLocked(ctx context.Context, boundary timebase.Timestamp) bool {
	snap := s.project.Snapshot()

	pos := boundary
	seg := resolveAt(snap, pos)
	if seg == nil {
		next, ok := nextStart(snap, pos)
		if !ok {
			s.endLocked(ctx)
			return false
		}
		pos = next
		seg = resolveAt(snap, pos)
		if seg == nil {
			s.endLocked(ctx)
			return false
		}
	}

	if err := s.openLocked(ctx, seg, pos); err != nil {
		s.logger.Error("failed to open next clip", "clip_id", seg.clipID, "error", err)
		s.endLocked(ctx)
		return false
	}
	if err := s.player.Play(ctx); err != nil {
		s.logger.Error("player play failed after clip hop", "error", err)
		s.endLocked(ctx)
		return false
	}

	s.project.SetPlayhead(pos)
	s.logger.Debug("advanced to next clip", "clip_id", seg.clipID, "position", pos.String())
	return true
}

// endLocked finishes playback from inside the tick loop.
func (s *Synchronizer) endLocked(ctx context.Context) {
	s.playing = false
	s.current = nil
	s.cancel()

	if err := s.player.Pause(ctx); err != nil {
		s.logger.Warn("player pause failed at end of timeline", "error", err)
	}

	in := s.project.InPoint()
	s.project.SetPlayhead(in)
	s.logger.Info("reached end of timeline", "reset_to", in.String())
	s.publish(events.EventPlaybackStopped, in)
}

func (s *Synchronizer) publish(t events.EventType, at timebase.Timestamp) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:   t,
		Source: eventSource,
		Data: map[string]interface{}{
			"project_id":  s.project.ID,
			"position_us": int64(at),
		},
	})
}

// resolveAt picks the playable clip at a timeline position: the
// topmost enabled media clip on an enabled, unmuted video track.
func resolveAt(snap *composition.Project, at timebase.Timestamp) *segment {
	for _, active := range snap.ClipsActiveAt(at) {
		if active.Track.Type != composition.TrackVideo || !active.Track.Enabled || active.Track.Muted {
			continue
		}
		clip := active.Clip
		if !clip.Enabled || clip.Payload.Kind != composition.ClipMedia || clip.Source == nil {
			continue
		}
		return &segment{
			clipID:      clip.ID,
			assetID:     clip.Source.AssetID,
			clipRange:   clip.Range,
			sourceStart: clip.Source.Range.Start,
		}
	}
	return nil
}

// nextStart finds the earliest clip start strictly greater than after,
// across enabled, unmuted video tracks.
func nextStart(snap *composition.Project, after timebase.Timestamp) (timebase.Timestamp, bool) {
	var best timebase.Timestamp
	found := false
	for _, track := range snap.Tracks() {
		if track.Type != composition.TrackVideo || !track.Enabled || track.Muted {
			continue
		}
		for _, clip := range track.Clips() {
			if !clip.Enabled || clip.Payload.Kind != composition.ClipMedia {
				continue
			}
			if clip.Range.Start > after && (!found || clip.Range.Start < best) {
				best = clip.Range.Start
				found = true
			}
		}
	}
	return best, found
}
