package composition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/cutline/internal/timebase"
)

func sec(s float64) timebase.Timestamp { return timebase.FromSeconds(s) }

func rng(start, end float64) timebase.Range {
	return timebase.Range{Start: sec(start), End: sec(end)}
}

func mediaClip(name string, start, end float64) *Clip {
	return NewMediaClip(name, rng(start, end), "asset-"+name, rng(0, end-start))
}

func TestInsertClipRejectsOverlap(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)

	require.NoError(t, p.InsertClip(track.ID, mediaClip("a", 0, 5)))

	before := p.Snapshot()
	err := p.InsertClip(track.ID, mediaClip("b", 3, 8))
	require.Error(t, err)

	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, track.ID, overlap.TrackID)

	// failed insert leaves the track unchanged
	after := p.Snapshot()
	assert.Equal(t, len(before.Tracks()[0].Clips()), len(after.Tracks()[0].Clips()))
	assert.Equal(t, before.Version(), after.Version())
}

func TestInsertClipDisjointSucceeds(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)

	require.NoError(t, p.InsertClip(track.ID, mediaClip("a", 0, 5)))
	require.NoError(t, p.InsertClip(track.ID, mediaClip("b", 5, 9)), "touching ranges do not overlap")
	require.NoError(t, p.InsertClip(track.ID, mediaClip("c", 20, 30)))

	clips := p.TrackByID(track.ID).Clips()
	require.Len(t, clips, 3)
	assert.Equal(t, "a", clips[0].Name)
	assert.Equal(t, "b", clips[1].Name)
	assert.Equal(t, "c", clips[2].Name)
}

func TestMoveClipAtomic(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	a := mediaClip("a", 0, 5)
	b := mediaClip("b", 10, 15)
	require.NoError(t, p.InsertClip(track.ID, a))
	require.NoError(t, p.InsertClip(track.ID, b))

	// move into the other clip fails and changes nothing
	err := p.MoveClip(a.ID, "", sec(12))
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, rng(0, 5), p.TrackByID(track.ID).ClipByID(a.ID).Range)

	// valid move commits
	require.NoError(t, p.MoveClip(a.ID, "", sec(5)))
	assert.Equal(t, rng(5, 10), p.TrackByID(track.ID).ClipByID(a.ID).Range)
}

func TestMoveClipAcrossTracks(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	v1 := p.AddTrack("V1", TrackVideo)
	v2 := p.AddTrack("V2", TrackVideo)
	a := mediaClip("a", 0, 5)
	require.NoError(t, p.InsertClip(v1.ID, a))
	require.NoError(t, p.InsertClip(v2.ID, mediaClip("blocker", 2, 8)))

	// destination occupied
	err := p.MoveClip(a.ID, v2.ID, sec(4))
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	require.NotNil(t, p.TrackByID(v1.ID).ClipByID(a.ID), "failed move keeps clip on source track")

	// destination free
	require.NoError(t, p.MoveClip(a.ID, v2.ID, sec(10)))
	assert.Nil(t, p.TrackByID(v1.ID).ClipByID(a.ID))
	assert.Equal(t, rng(10, 15), p.TrackByID(v2.ID).ClipByID(a.ID).Range)
}

func TestTrimClipAdjustsSource(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	c := NewMediaClip("a", rng(10, 20), "asset", rng(2, 12))
	require.NoError(t, p.InsertClip(track.ID, c))

	require.NoError(t, p.TrimClip(c.ID, rng(12, 18)))

	got := p.TrackByID(track.ID).ClipByID(c.ID)
	assert.Equal(t, rng(12, 18), got.Range)
	assert.Equal(t, rng(4, 10), got.Source.Range, "source trimmed at matching edges")
}

func TestTrimClipKeepsIntactTransitions(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	a := mediaClip("a", 0, 5)
	b := mediaClip("b", 5, 9)
	require.NoError(t, p.InsertClip(track.ID, a))
	require.NoError(t, p.InsertClip(track.ID, b))
	require.NoError(t, p.AttachTransition(&Transition{
		Kind: TransitionCrossfade, FromClipID: a.ID, ToClipID: b.ID, Duration: sec(1),
	}))

	// trimming a's in point leaves the shared boundary at 5s alone
	require.NoError(t, p.TrimClip(a.ID, rng(2, 5)))
	assert.Len(t, p.TrackByID(track.ID).Transitions(), 1)

	// pulling a's out point away from b breaks adjacency
	require.NoError(t, p.TrimClip(a.ID, rng(2, 4)))
	assert.Empty(t, p.TrackByID(track.ID).Transitions())
}

func TestTrimClipDropsTransitionItCannotHost(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	a := mediaClip("a", 0, 5)
	b := mediaClip("b", 5, 9)
	require.NoError(t, p.InsertClip(track.ID, a))
	require.NoError(t, p.InsertClip(track.ID, b))
	require.NoError(t, p.AttachTransition(&Transition{
		Kind: TransitionCrossfade, FromClipID: a.ID, ToClipID: b.ID, Duration: sec(2),
	}))

	// boundary intact, but b is now shorter than the transition
	require.NoError(t, p.TrimClip(b.ID, rng(5, 6)))
	assert.Empty(t, p.TrackByID(track.ID).Transitions())
}

func TestClipsActiveAtStackingOrder(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	a1 := p.AddTrack("A1", TrackAudio)
	v1 := p.AddTrack("V1", TrackVideo)
	v2 := p.AddTrack("V2", TrackVideo)

	require.NoError(t, p.InsertClip(v1.ID, mediaClip("low", 0, 10)))
	require.NoError(t, p.InsertClip(v2.ID, mediaClip("high", 0, 10)))
	require.NoError(t, p.InsertClip(a1.ID, mediaClip("aud", 0, 10)))

	active := p.ClipsActiveAt(sec(5))
	require.Len(t, active, 3)
	// top of the stack first: V2 over V1, audio last
	assert.Equal(t, "high", active[0].Clip.Name)
	assert.Equal(t, "low", active[1].Clip.Name)
	assert.Equal(t, "aud", active[2].Clip.Name)

	assert.Empty(t, p.ClipsActiveAt(sec(10)), "range end is exclusive")
}

func TestAudioTracksSitAtBottomOfStack(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	p.AddTrack("V1", TrackVideo)
	p.AddTrack("A1", TrackAudio)
	p.AddTrack("V2", TrackVideo)

	tracks := p.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, TrackAudio, tracks[0].Type)
	assert.Equal(t, "V1", tracks[1].Name)
	assert.Equal(t, "V2", tracks[2].Name)
}

func TestSelectionBookkeeping(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	c := mediaClip("a", 0, 5)
	require.NoError(t, p.InsertClip(track.ID, c))

	assert.Error(t, p.SelectClip("nope"))
	require.NoError(t, p.SelectClip(c.ID))
	assert.Equal(t, []string{c.ID}, p.SelectedClips())

	p.ClearSelection()
	assert.Empty(t, p.SelectedClips())

	require.NoError(t, p.SelectClip(c.ID))
	require.NoError(t, p.RemoveClip(c.ID))
	assert.Empty(t, p.SelectedClips(), "removing a clip drops it from the selection")
}

func TestAttachTransitionValidation(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	a := mediaClip("a", 0, 5)
	b := mediaClip("b", 5, 9)
	gap := mediaClip("c", 15, 20)
	require.NoError(t, p.InsertClip(track.ID, a))
	require.NoError(t, p.InsertClip(track.ID, b))
	require.NoError(t, p.InsertClip(track.ID, gap))

	// adjacent pair works
	require.NoError(t, p.AttachTransition(&Transition{
		Kind: TransitionCrossfade, FromClipID: a.ID, ToClipID: b.ID, Duration: sec(1),
	}))
	assert.Len(t, p.TrackByID(track.ID).Transitions(), 1)

	// non-adjacent pair rejected
	assert.Error(t, p.AttachTransition(&Transition{
		Kind: TransitionCrossfade, FromClipID: b.ID, ToClipID: gap.ID, Duration: sec(1),
	}))

	// longer than a bordering clip rejected
	assert.Error(t, p.AttachTransition(&Transition{
		Kind: TransitionCrossfade, FromClipID: a.ID, ToClipID: b.ID, Duration: sec(6),
	}))

	// moving a bordering clip breaks the transition
	require.NoError(t, p.MoveClip(b.ID, "", sec(30)))
	assert.Empty(t, p.TrackByID(track.ID).Transitions())
}

func TestSnapshotIsolation(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	require.NoError(t, p.InsertClip(track.ID, mediaClip("a", 0, 5)))

	snap := p.Snapshot()
	require.NoError(t, p.InsertClip(track.ID, mediaClip("b", 5, 9)))

	assert.Len(t, snap.Tracks()[0].Clips(), 1, "snapshot does not see later edits")
	assert.Len(t, p.Tracks()[0].Clips(), 2)
}

func TestFlattenNested(t *testing.T) {
	child := NewProject("child", DefaultSettings())
	cv := child.AddTrack("inner V", TrackVideo)
	require.NoError(t, child.InsertClip(cv.ID, mediaClip("x", 0, 2)))
	require.NoError(t, child.InsertClip(cv.ID, mediaClip("y", 2, 4)))

	p := NewProject("parent", DefaultSettings())
	v1 := p.AddTrack("V1", TrackVideo)
	nested := NewNestedClip("seq", rng(10, 14), child)
	require.NoError(t, p.InsertClip(v1.ID, nested))

	require.NoError(t, p.FlattenNested(nested.ID))

	clips := p.TrackByID(v1.ID).Clips()
	require.Len(t, clips, 2)
	assert.Equal(t, rng(10, 12), clips[0].Range, "inner clips shifted by the nested clip's offset")
	assert.Equal(t, rng(12, 14), clips[1].Range)
}

func TestFlattenNestedRejectsOverlap(t *testing.T) {
	// the conflict has to come from a second destination track: on
	// the host track itself any blocker would collide with the
	// nested clip before the flatten even starts
	child := NewProject("child", DefaultSettings())
	cv := child.AddTrack("inner V", TrackVideo)
	require.NoError(t, child.InsertClip(cv.ID, mediaClip("x", 0, 4)))
	ca := child.AddTrack("inner A", TrackAudio)
	require.NoError(t, child.InsertClip(ca.ID, mediaClip("ax", 0, 4)))

	p := NewProject("parent", DefaultSettings())
	v1 := p.AddTrack("V1", TrackVideo)
	a1 := p.AddTrack("A1", TrackAudio)
	nested := NewNestedClip("seq", rng(10, 14), child)
	require.NoError(t, p.InsertClip(v1.ID, nested))
	blocker := mediaClip("blocker", 12, 16)
	require.NoError(t, p.InsertClip(a1.ID, blocker))

	err := p.FlattenNested(nested.ID)
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))

	// nothing applied: nested clip still present, audio untouched
	assert.NotNil(t, p.TrackByID(v1.ID).ClipByID(nested.ID))
	assert.Len(t, p.TrackByID(v1.ID).Clips(), 1)
	assert.Len(t, p.TrackByID(a1.ID).Clips(), 1)
}

func TestColorGradeHasChanges(t *testing.T) {
	g := NeutralGrade()
	assert.False(t, g.HasChanges())

	g.Saturation = 1.2
	assert.True(t, g.HasChanges())

	g = NeutralGrade()
	g.Gain.R = 1.1
	assert.True(t, g.HasChanges())

	g = NeutralGrade()
	g.LUTPath = "/luts/teal.cube"
	assert.True(t, g.HasChanges())

	g = NeutralGrade()
	g.Curves = &ChannelCurves{}
	assert.False(t, g.HasChanges(), "empty curves are neutral")
	g.Curves.Red = []CurvePoint{{In: 0.5, Out: 0.6}}
	assert.True(t, g.HasChanges())
}

func TestEffectOrderPreserved(t *testing.T) {
	p := NewProject("test", DefaultSettings())
	track := p.AddTrack("V1", TrackVideo)
	c := mediaClip("a", 0, 5)
	c.Effects = []*Effect{
		{ID: "e1", Kind: "blur", Enabled: true, Params: []Param{{Name: "radius", Value: 4}}},
		{ID: "e2", Kind: "sharpen", Enabled: true},
	}
	require.NoError(t, p.InsertClip(track.ID, c))

	snap := p.Snapshot()
	got := snap.Tracks()[0].Clips()[0].Effects
	require.Len(t, got, 2)
	assert.Equal(t, "blur", got[0].Kind)
	assert.Equal(t, "sharpen", got[1].Kind)
	assert.Equal(t, 4.0, got[0].Param("radius", 0))
}
