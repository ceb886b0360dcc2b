package database

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/curves"
	"github.com/mantonx/cutline/internal/renderqueue"
	"github.com/mantonx/cutline/internal/timebase"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}
	db, err := Connect(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	return db
}

func sec(s float64) timebase.Timestamp {
	return timebase.Timestamp(s * 1e6)
}

func rng(start, end float64) timebase.Range {
	return timebase.Range{Start: sec(start), End: sec(end)}
}

// fullProject builds a project that exercises every persisted shape:
// effects, masks, a non-neutral grade, animation, a speed ramp, a text
// clip, a nested sequence, and a transition.
func fullProject(t *testing.T) *composition.Project {
	t.Helper()

	p := composition.NewProject("feature cut", composition.DefaultSettings())

	video := p.AddTrack("V1", composition.TrackVideo)
	audio := p.AddTrack("A1", composition.TrackAudio)
	audio.Gain = 0.8
	audio.Pan = -0.25

	a := composition.NewMediaClip("intro", rng(0, 5), "asset-1", rng(10, 15))
	a.Effects = append(a.Effects, &composition.Effect{
		ID:      "fx-1",
		Kind:    "gaussian_blur",
		Enabled: true,
		Params:  []composition.Param{{Name: "sigma", Value: 3.5}},
	})
	a.Masks = append(a.Masks, &composition.Mask{
		ID:      "mask-1",
		Shape:   composition.MaskEllipse,
		Bounds:  composition.Rect{X: 0.1, Y: 0.1, W: 0.5, H: 0.5},
		Feather: 12,
		Enabled: true,
	})
	a.Grade.Saturation = 1.2
	a.Grade.Exposure = 0.3
	anim := curves.NewKeyframeTrack("opacity", 0, 1, 1)
	anim.SetKeyframe(curves.Keyframe{Time: 0, Value: 0, Interpolation: curves.InterpLinear})
	anim.SetKeyframe(curves.Keyframe{Time: sec(1), Value: 1, Interpolation: curves.InterpEaseInOut})
	a.Animation = append(a.Animation, anim)
	ramp, err := curves.ConstantRamp(2.0)
	require.NoError(t, err)
	a.Ramp = ramp
	require.NoError(t, p.InsertClip(video.ID, a))

	b := composition.NewMediaClip("main", rng(5, 12), "asset-2", rng(0, 7))
	require.NoError(t, p.InsertClip(video.ID, b))

	require.NoError(t, p.AttachTransition(&composition.Transition{
		Kind:       composition.TransitionCrossfade,
		FromClipID: a.ID,
		ToClipID:   b.ID,
		Duration:   sec(1),
		Easing:     curves.InterpEaseInOut,
	}))

	title := composition.NewTextClip("title", rng(1, 4), composition.TextPayload{
		Text: "Cutline", Font: "sans", Size: 72, Color: "white", X: 0.5, Y: 0.2,
	})
	overlayTrack := p.AddTrack("V2", composition.TrackVideo)
	require.NoError(t, p.InsertClip(overlayTrack.ID, title))

	child := composition.NewProject("insert", composition.DefaultSettings())
	cv := child.AddTrack("V1", composition.TrackVideo)
	require.NoError(t, child.InsertClip(cv.ID, composition.NewMediaClip("b-roll", rng(0, 3), "asset-3", rng(2, 5))))
	nested := composition.NewNestedClip("insert", rng(6, 9), child)
	require.NoError(t, p.InsertClip(overlayTrack.ID, nested))

	music := composition.NewMediaClip("music", rng(0, 12), "asset-4", rng(0, 12))
	require.NoError(t, p.InsertClip(audio.ID, music))

	p.SetPlayhead(sec(3))
	in, out := sec(1), sec(10)
	p.SetInOut(&in, &out)
	return p
}

func TestProjectRoundTrip(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	original := fullProject(t)
	require.NoError(t, store.Save(original))

	loaded, err := store.Load(original.ID)
	require.NoError(t, err)

	want, err := json.Marshal(original)
	require.NoError(t, err)
	got, err := json.Marshal(loaded)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestLoadPreservesStackingOrder(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	p := composition.NewProject("order", composition.DefaultSettings())
	p.AddTrack("V1", composition.TrackVideo)
	p.AddTrack("V2", composition.TrackVideo)
	// AddTrack puts audio at the bottom of the stack
	p.AddTrack("A1", composition.TrackAudio)
	require.NoError(t, store.Save(p))

	loaded, err := store.Load(p.ID)
	require.NoError(t, err)

	var names []string
	for _, tr := range loaded.Tracks() {
		names = append(names, tr.Name)
	}
	assert.Equal(t, []string{"A1", "V1", "V2"}, names)
}

func TestSaveReplacesExistingRows(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	p := fullProject(t)
	require.NoError(t, store.Save(p))
	require.NoError(t, store.Save(p))

	var trackCount, clipCount int64
	require.NoError(t, db.Model(&TrackRecord{}).Count(&trackCount).Error)
	require.NoError(t, db.Model(&ClipRecord{}).Count(&clipCount).Error)
	assert.Equal(t, int64(len(p.Tracks())), trackCount)
	assert.Equal(t, int64(5), clipCount)
}

func TestListOrdersByRecency(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	first := composition.NewProject("first", composition.DefaultSettings())
	require.NoError(t, store.Save(first))
	time.Sleep(10 * time.Millisecond)
	second := composition.NewProject("second", composition.DefaultSettings())
	require.NoError(t, store.Save(second))

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID)
}

func TestDeleteCascades(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	p := fullProject(t)
	require.NoError(t, store.Save(p))
	require.NoError(t, store.Delete(p.ID))

	_, err := store.Load(p.ID)
	assert.Error(t, err)

	var clipCount, transitionCount int64
	require.NoError(t, db.Model(&ClipRecord{}).Count(&clipCount).Error)
	require.NoError(t, db.Model(&TransitionRecord{}).Count(&transitionCount).Error)
	assert.Zero(t, clipCount)
	assert.Zero(t, transitionCount)
}

func TestLoadRejectsOverlappingRows(t *testing.T) {
	db := testDB(t)
	store := NewProjectStore(db, hclog.NewNullLogger())

	p := composition.NewProject("corrupt", composition.DefaultSettings())
	track := p.AddTrack("V1", composition.TrackVideo)
	require.NoError(t, p.InsertClip(track.ID, composition.NewMediaClip("a", rng(0, 5), "asset-1", rng(0, 5))))
	require.NoError(t, store.Save(p))

	// widen the stored clip behind the model's back
	require.NoError(t, db.Model(&ClipRecord{}).Where("track_id = ?", track.ID).
		Update("end_us", int64(sec(20))).Error)
	require.NoError(t, db.Create(&ClipRecord{
		ID: "intruder", TrackID: track.ID, Name: "b",
		StartUS: int64(sec(4)), EndUS: int64(sec(8)),
		Enabled: true, Kind: string(composition.ClipMedia),
		Payload: composition.Payload{Kind: composition.ClipMedia},
		Grade:   composition.NeutralGrade(),
	}).Error)

	_, err := store.Load(p.ID)
	require.Error(t, err)
	var violation *timebase.ContractViolationError
	assert.ErrorAs(t, err, &violation)
}

func TestAssetStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	store := NewAssetStore(db)

	a := &assets.Asset{
		ID:         "asset-1",
		Path:       "/media/intro.mp4",
		Kind:       assets.KindVideo,
		Size:       1024,
		ModTime:    time.Now().Truncate(time.Second),
		Registered: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Save(a))

	song := &assets.Asset{
		ID:         "asset-2",
		Path:       "/media/song.mp3",
		Kind:       assets.KindAudio,
		Tags:       assets.AudioTags{Title: "Theme", Artist: "Nobody"},
		Registered: time.Now().Truncate(time.Second).Add(time.Second),
	}
	require.NoError(t, store.Save(song))

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "asset-1", all[0].ID)
	assert.Equal(t, assets.KindVideo, all[0].Kind)
	assert.Equal(t, "Theme", all[1].Tags.Title)

	require.NoError(t, store.Delete("asset-1"))
	all, err = store.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "asset-2", all[0].ID)
}

func TestRenderJobStoreRecordAndHistory(t *testing.T) {
	db := testDB(t)
	store := NewRenderJobStore(db, hclog.NewNullLogger())

	st := renderqueue.Status{
		ID:         "job-1",
		ProjectID:  "proj-1",
		OutputPath: "/renders/job-1.mp4",
		State:      renderqueue.StateRendering,
		Progress:   renderqueue.Progress{Fraction: 0.4},
		Submitted:  time.Now().Add(-time.Minute),
		Started:    time.Now(),
	}
	require.NoError(t, store.Record(st))

	st.State = renderqueue.StateCompleted
	st.Progress.Fraction = 1.0
	st.Finished = time.Now()
	require.NoError(t, store.Record(st))

	recs, err := store.History("proj-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(renderqueue.StateCompleted), recs[0].State)
	assert.Equal(t, 1.0, recs[0].Fraction)
	require.NotNil(t, recs[0].Finished)

	recs, err = store.History("someone-else", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPruneStaleFailsInterruptedJobs(t *testing.T) {
	db := testDB(t)
	store := NewRenderJobStore(db, hclog.NewNullLogger())

	require.NoError(t, store.Record(renderqueue.Status{
		ID: "stuck", ProjectID: "p", State: renderqueue.StateRendering, Submitted: time.Now(),
	}))
	require.NoError(t, store.Record(renderqueue.Status{
		ID: "done", ProjectID: "p", State: renderqueue.StateCompleted, Submitted: time.Now(),
	}))

	n, err := store.PruneStale()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := store.History("p", 0)
	require.NoError(t, err)
	states := map[string]string{}
	for _, r := range recs {
		states[r.ID] = r.State
	}
	assert.Equal(t, string(renderqueue.StateFailed), states["stuck"])
	assert.Equal(t, string(renderqueue.StateCompleted), states["done"])
}
