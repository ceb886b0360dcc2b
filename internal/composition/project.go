package composition

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mantonx/cutline/internal/timebase"
)

// Settings holds the project-wide output format.
type Settings struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frame_rate"`
	SampleRate int     `json:"sample_rate"`
}

// DefaultSettings is a 1080p29.97/48k project.
func DefaultSettings() Settings {
	return Settings{Width: 1920, Height: 1080, FrameRate: 30000.0 / 1001.0, SampleRate: 48000}
}

// Project is the root of the composition model. All mutations go
// through its methods, which hold the write lock, re-validate the
// per-track non-overlap invariant, and bump the version; Snapshot
// gives concurrent readers (compilation, playback resolution) an
// isolated deep copy so they never observe a half-applied edit.
type Project struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`

	mu        sync.RWMutex
	tracks    []*Track
	playhead  timebase.Timestamp
	inPoint   *timebase.Timestamp
	outPoint  *timebase.Timestamp
	selection map[string]struct{}
	version   uint64
}

// ActiveClip pairs a clip with the track it sits on, as returned by
// ClipsActiveAt.
type ActiveClip struct {
	Track *Track
	Clip  *Clip
}

// NewProject creates an empty project.
func NewProject(name string, settings Settings) *Project {
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Settings:  settings,
		selection: make(map[string]struct{}),
	}
}

// Version returns the current model version. It increases on every
// committed mutation.
func (p *Project) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// AddTrack appends a track at its type's end of the stack: video
// tracks go on top of existing video tracks, audio tracks below
// everything. Stacking order for video is slice order, bottom first.
func (p *Project) AddTrack(name string, typ TrackType) *Track {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := NewTrack(name, typ)
	if typ == TrackAudio {
		// audio sits at the bottom of the stack
		p.tracks = append([]*Track{t}, p.tracks...)
	} else {
		p.tracks = append(p.tracks, t)
	}
	p.version++
	return t
}

// RestoreTrack appends a prebuilt track during project load. Unlike
// AddTrack it preserves the caller's stacking order, so persisted
// projects round-trip exactly.
func (p *Project) RestoreTrack(t *Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, t)
	p.version++
}

// RemoveTrack deletes a track and cascades to its clips. Selection
// entries for the removed clips are dropped.
func (p *Project) RemoveTrack(trackID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, t := range p.tracks {
		if t.ID == trackID {
			for _, c := range t.clips {
				delete(p.selection, c.ID)
			}
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			p.version++
			return nil
		}
	}
	return &NotFoundError{Kind: "track", ID: trackID}
}

// Tracks returns the tracks in stacking order (bottom first).
func (p *Project) Tracks() []*Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// TrackByID returns the track with the given ID, or nil.
func (p *Project) TrackByID(id string) *Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trackByIDLocked(id)
}

func (p *Project) trackByIDLocked(id string) *Track {
	for _, t := range p.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (p *Project) findClipLocked(clipID string) (*Track, *Clip) {
	for _, t := range p.tracks {
		if c := t.ClipByID(clipID); c != nil {
			return t, c
		}
	}
	return nil, nil
}

// InsertClip places the clip on the track, failing with *OverlapError
// if its range intersects any existing clip there. On failure the
// track is untouched.
func (p *Project) InsertClip(trackID string, c *Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.trackByIDLocked(trackID)
	if t == nil {
		return &NotFoundError{Kind: "track", ID: trackID}
	}
	if conflict := t.conflict(c.Range, ""); conflict != nil {
		return &OverlapError{
			TrackID:    trackID,
			Attempted:  c.Range,
			Conflicts:  conflict.Range,
			ConflictID: conflict.ID,
		}
	}
	t.insert(c)
	p.version++
	return nil
}

// MoveClip relocates a clip to a new start time, possibly on a
// different track. Overlap is re-validated against all other clips on
// the destination before anything is detached, so a failed move leaves
// the model byte-identical. A move breaks any transition anchored to
// the clip's old edges.
func (p *Project) MoveClip(clipID, destTrackID string, newStart timebase.Timestamp) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	srcTrack, clip := p.findClipLocked(clipID)
	if clip == nil {
		return &NotFoundError{Kind: "clip", ID: clipID}
	}
	dest := srcTrack
	if destTrackID != "" && destTrackID != srcTrack.ID {
		dest = p.trackByIDLocked(destTrackID)
		if dest == nil {
			return &NotFoundError{Kind: "track", ID: destTrackID}
		}
	}

	moved, err := timebase.RangeAt(newStart, clip.Range.Duration())
	if err != nil {
		return err
	}
	exclude := ""
	if dest == srcTrack {
		exclude = clip.ID
	}
	if conflict := dest.conflict(moved, exclude); conflict != nil {
		return &OverlapError{
			TrackID:    dest.ID,
			Attempted:  moved,
			Conflicts:  conflict.Range,
			ConflictID: conflict.ID,
		}
	}

	srcTrack.remove(clip.ID)
	clip.Range = moved
	dest.insert(clip)
	dest.dropTransitionsFor(clip.ID)
	p.version++
	return nil
}

// TrimClip changes a clip's placement range in place, re-validating
// overlap against the other clips on its track. The source range is
// trimmed by the same amounts at the matching edge when present.
// Transitions survive when their shared boundary does; only the ones
// the trim breaks are dropped.
func (p *Project) TrimClip(clipID string, newRange timebase.Range) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	track, clip := p.findClipLocked(clipID)
	if clip == nil {
		return &NotFoundError{Kind: "clip", ID: clipID}
	}
	if newRange.End < newRange.Start {
		return timebase.Violation("trim to negative duration %s", newRange)
	}
	if conflict := track.conflict(newRange, clip.ID); conflict != nil {
		return &OverlapError{
			TrackID:    track.ID,
			Attempted:  newRange,
			Conflicts:  conflict.Range,
			ConflictID: conflict.ID,
		}
	}

	if clip.Source != nil {
		headDelta := newRange.Start - clip.Range.Start
		tailDelta := newRange.End - clip.Range.End
		clip.Source.Range.Start += headDelta
		clip.Source.Range.End += tailDelta
	}

	// reposition without cascading transition removal; only the
	// transitions the trim actually broke are dropped
	for i, c := range track.clips {
		if c.ID == clip.ID {
			track.clips = append(track.clips[:i], track.clips[i+1:]...)
			break
		}
	}
	clip.Range = newRange
	track.insert(clip)
	track.dropBrokenTransitions()
	p.version++
	return nil
}

// RemoveClip deletes a clip, cascading its attachments and any
// transition anchored to it.
func (p *Project) RemoveClip(clipID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.tracks {
		if t.remove(clipID) != nil {
			delete(p.selection, clipID)
			p.version++
			return nil
		}
	}
	return &NotFoundError{Kind: "clip", ID: clipID}
}

// ClipsActiveAt returns, per track, the clip whose range contains the
// instant, ordered top of the stack first. For video preview the first
// enabled video entry wins; audio consumers use every entry.
func (p *Project) ClipsActiveAt(at timebase.Timestamp) []ActiveClip {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []ActiveClip
	for i := len(p.tracks) - 1; i >= 0; i-- {
		t := p.tracks[i]
		if c := t.ClipAt(at); c != nil {
			out = append(out, ActiveClip{Track: t, Clip: c})
		}
	}
	return out
}

// AttachTransition bridges two clips on one track. Both clips must sit
// on the same track with A's end touching B's start, and each must be
// at least the transition's duration long.
func (p *Project) AttachTransition(tr *Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tr.Duration <= 0 {
		return timebase.Violation("transition duration must be positive, got %s", tr.Duration)
	}
	trackA, a := p.findClipLocked(tr.FromClipID)
	trackB, b := p.findClipLocked(tr.ToClipID)
	if a == nil {
		return &NotFoundError{Kind: "clip", ID: tr.FromClipID}
	}
	if b == nil {
		return &NotFoundError{Kind: "clip", ID: tr.ToClipID}
	}
	if trackA != trackB {
		return timebase.Violation("transition clips sit on different tracks")
	}
	if a.Range.End != b.Range.Start {
		return timebase.Violation("clips %s and %s are not adjacent", a.ID, b.ID)
	}
	if a.Range.Duration() < tr.Duration || b.Range.Duration() < tr.Duration {
		return timebase.Violation("transition duration %s exceeds a bordering clip", tr.Duration)
	}
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	trackA.transitions = append(trackA.transitions, tr)
	p.version++
	return nil
}

// SelectClip adds an existing clip to the selection.
func (p *Project) SelectClip(clipID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, c := p.findClipLocked(clipID); c == nil {
		return &NotFoundError{Kind: "clip", ID: clipID}
	}
	p.selection[clipID] = struct{}{}
	return nil
}

// ClearSelection empties the selection.
func (p *Project) ClearSelection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = make(map[string]struct{})
}

// SelectedClips returns the selected clip IDs.
func (p *Project) SelectedClips() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.selection))
	for id := range p.selection {
		out = append(out, id)
	}
	return out
}

// SetPlayhead moves the playhead.
func (p *Project) SetPlayhead(at timebase.Timestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playhead = at
}

// Playhead returns the current playhead position.
func (p *Project) Playhead() timebase.Timestamp {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playhead
}

// SetInOut sets the optional in/out markers; nil clears a marker.
func (p *Project) SetInOut(in, out *timebase.Timestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inPoint = in
	p.outPoint = out
}

// InOut returns the optional in/out markers; nil means unset.
func (p *Project) InOut() (in, out *timebase.Timestamp) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.inPoint != nil {
		v := *p.inPoint
		in = &v
	}
	if p.outPoint != nil {
		v := *p.outPoint
		out = &v
	}
	return in, out
}

// InPoint returns the in marker, or 0 when unset.
func (p *Project) InPoint() timebase.Timestamp {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.inPoint != nil {
		return *p.inPoint
	}
	return 0
}

// Extent returns the range from zero to the end of the last clip on
// any track.
func (p *Project) Extent() timebase.Range {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var end timebase.Timestamp
	for _, t := range p.tracks {
		for _, c := range t.clips {
			if c.Range.End > end {
				end = c.Range.End
			}
		}
	}
	return timebase.Range{Start: 0, End: end}
}

// Snapshot returns a deep copy of the project for readers. The copy
// has no shared mutable state with the live model.
func (p *Project) Snapshot() *Project {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := &Project{
		ID:        p.ID,
		Name:      p.Name,
		Settings:  p.Settings,
		playhead:  p.playhead,
		version:   p.version,
		selection: make(map[string]struct{}, len(p.selection)),
	}
	if p.inPoint != nil {
		v := *p.inPoint
		s.inPoint = &v
	}
	if p.outPoint != nil {
		v := *p.outPoint
		s.outPoint = &v
	}
	for id := range p.selection {
		s.selection[id] = struct{}{}
	}
	for _, t := range p.tracks {
		s.tracks = append(s.tracks, t.Clone())
	}
	return s
}

// FlattenNested inlines a nested-sequence clip into its parent. Each
// child track's clips are shifted by the nested clip's start offset
// and inserted into the first parent track of the same type (created
// when missing); the nested clip itself is removed. The whole
// operation is validated up front and either fully applies or leaves
// the model untouched.
func (p *Project) FlattenNested(clipID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hostTrack, host := p.findClipLocked(clipID)
	if host == nil {
		return &NotFoundError{Kind: "clip", ID: clipID}
	}
	if host.Payload.Kind != ClipNested || host.Payload.Nested == nil {
		return timebase.Violation("clip %s is not a nested sequence", clipID)
	}

	offset := host.Range.Start
	child := host.Payload.Nested

	// resolve each child track to a destination, preferring an
	// existing track of the same type
	type placement struct {
		dest *Track
		clip *Clip
	}
	destFor := func(typ TrackType) *Track {
		for _, t := range p.tracks {
			if t.Type == typ {
				return t
			}
		}
		return nil
	}

	var placements []placement
	var newTracks []*Track
	for _, ct := range child.tracks {
		dest := destFor(ct.Type)
		if dest == nil {
			dest = NewTrack(child.Name+"/"+ct.Name, ct.Type)
			newTracks = append(newTracks, dest)
		}
		for _, cc := range ct.clips {
			moved := cc.Clone()
			moved.ID = uuid.New().String()
			moved.Range = cc.Range.Shift(offset)
			placements = append(placements, placement{dest: dest, clip: moved})
		}
	}

	// validate everything before committing; the host clip itself is
	// removed by the flatten, so it does not count as a conflict
	for i, pl := range placements {
		if conflict := pl.dest.conflict(pl.clip.Range, host.ID); conflict != nil {
			return &OverlapError{
				TrackID:    pl.dest.ID,
				Attempted:  pl.clip.Range,
				Conflicts:  conflict.Range,
				ConflictID: conflict.ID,
			}
		}
		// also check against sibling placements landing on the same track
		for j := 0; j < i; j++ {
			if placements[j].dest == pl.dest && placements[j].clip.Range.Overlaps(pl.clip.Range) {
				return &OverlapError{
					TrackID:    pl.dest.ID,
					Attempted:  pl.clip.Range,
					Conflicts:  placements[j].clip.Range,
					ConflictID: placements[j].clip.ID,
				}
			}
		}
	}

	hostTrack.remove(host.ID)
	delete(p.selection, host.ID)
	for _, nt := range newTracks {
		if nt.Type == TrackAudio {
			p.tracks = append([]*Track{nt}, p.tracks...)
		} else {
			p.tracks = append(p.tracks, nt)
		}
	}
	for _, pl := range placements {
		pl.dest.insert(pl.clip)
	}
	p.version++
	return nil
}
