package database

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/curves"
	"github.com/mantonx/cutline/internal/renderqueue"
	"github.com/mantonx/cutline/internal/timebase"
)

// ProjectStore persists composition models. Save replaces the stored
// rows wholesale inside one transaction; partial writes never become
// visible.
type ProjectStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewProjectStore creates a store on an already connected database.
func NewProjectStore(db *gorm.DB, logger hclog.Logger) *ProjectStore {
	return &ProjectStore{db: db, logger: logger.Named("projects")}
}

// Save writes the project and everything under it. An existing project
// with the same ID is replaced.
func (s *ProjectStore) Save(p *composition.Project) error {
	snap := p.Snapshot()
	rec := projectToRecord(snap)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteProjectRows(tx, rec.ID); err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", rec.ID, err)
	}
	s.logger.Debug("project saved", "id", rec.ID, "tracks", len(rec.Tracks))
	return nil
}

// Load reads a project back into a live composition model. Stored rows
// go through the same validation as editor operations, so a corrupted
// document (overlapping clips, bad transitions) is rejected here
// rather than surfacing mid-edit.
func (s *ProjectStore) Load(id string) (*composition.Project, error) {
	var rec ProjectRecord
	err := s.db.
		Preload("Tracks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tracks.Clips", func(db *gorm.DB) *gorm.DB { return db.Order("start_us ASC") }).
		Preload("Tracks.Transitions").
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	return recordToProject(&rec)
}

// List returns the stored projects, most recently updated first. Track
// and clip rows are not loaded.
func (s *ProjectStore) List() ([]ProjectRecord, error) {
	var recs []ProjectRecord
	if err := s.db.Order("updated_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return recs, nil
}

// Delete removes a project and all rows under it.
func (s *ProjectStore) Delete(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return deleteProjectRows(tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

func deleteProjectRows(tx *gorm.DB, projectID string) error {
	var trackIDs []string
	if err := tx.Model(&TrackRecord{}).Where("project_id = ?", projectID).
		Pluck("id", &trackIDs).Error; err != nil {
		return err
	}
	if len(trackIDs) > 0 {
		if err := tx.Where("track_id IN ?", trackIDs).Delete(&ClipRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id IN ?", trackIDs).Delete(&TransitionRecord{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&TrackRecord{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", projectID).Delete(&ProjectRecord{}).Error
}

func projectToRecord(p *composition.Project) *ProjectRecord {
	in, out := p.InOut()
	rec := &ProjectRecord{
		ID:         p.ID,
		Name:       p.Name,
		Width:      p.Settings.Width,
		Height:     p.Settings.Height,
		FrameRate:  p.Settings.FrameRate,
		SampleRate: p.Settings.SampleRate,
		PlayheadUS: int64(p.Playhead()),
	}
	if in != nil {
		v := int64(*in)
		rec.InPointUS = &v
	}
	if out != nil {
		v := int64(*out)
		rec.OutPointUS = &v
	}
	for pos, t := range p.Tracks() {
		rec.Tracks = append(rec.Tracks, trackToRecord(t, p.ID, pos))
	}
	return rec
}

func trackToRecord(t *composition.Track, projectID string, position int) TrackRecord {
	rec := TrackRecord{
		ID:        t.ID,
		ProjectID: projectID,
		Position:  position,
		Name:      t.Name,
		Type:      string(t.Type),
		Muted:     t.Muted,
		Solo:      t.Solo,
		Enabled:   t.Enabled,
		Gain:      t.Gain,
		Pan:       t.Pan,
	}
	for _, c := range t.Clips() {
		cr := ClipRecord{
			ID:        c.ID,
			TrackID:   t.ID,
			Name:      c.Name,
			StartUS:   int64(c.Range.Start),
			EndUS:     int64(c.Range.End),
			Enabled:   c.Enabled,
			Kind:      string(c.Payload.Kind),
			Payload:   c.Payload,
			Effects:   c.Effects,
			Masks:     c.Masks,
			Grade:     c.Grade,
			Animation: c.Animation,
			Ramp:      c.Ramp,
		}
		if c.Source != nil {
			cr.AssetID = c.Source.AssetID
			cr.SourceStartUS = int64(c.Source.Range.Start)
			cr.SourceEndUS = int64(c.Source.Range.End)
		}
		rec.Clips = append(rec.Clips, cr)
	}
	for _, tr := range t.Transitions() {
		rec.Transitions = append(rec.Transitions, TransitionRecord{
			ID:         tr.ID,
			TrackID:    t.ID,
			Kind:       string(tr.Kind),
			FromClipID: tr.FromClipID,
			ToClipID:   tr.ToClipID,
			DurationUS: int64(tr.Duration),
			Easing:     string(tr.Easing),
		})
	}
	return rec
}

func recordToProject(rec *ProjectRecord) (*composition.Project, error) {
	p := composition.NewProject(rec.Name, composition.Settings{
		Width:      rec.Width,
		Height:     rec.Height,
		FrameRate:  rec.FrameRate,
		SampleRate: rec.SampleRate,
	})
	p.ID = rec.ID

	for i := range rec.Tracks {
		t, err := recordToTrack(&rec.Tracks[i])
		if err != nil {
			return nil, fmt.Errorf("failed to restore track %s: %w", rec.Tracks[i].ID, err)
		}
		p.RestoreTrack(t)
	}

	p.SetPlayhead(timebase.Timestamp(rec.PlayheadUS))
	var in, out *timebase.Timestamp
	if rec.InPointUS != nil {
		v := timebase.Timestamp(*rec.InPointUS)
		in = &v
	}
	if rec.OutPointUS != nil {
		v := timebase.Timestamp(*rec.OutPointUS)
		out = &v
	}
	p.SetInOut(in, out)
	return p, nil
}

func recordToTrack(rec *TrackRecord) (*composition.Track, error) {
	t := composition.NewTrack(rec.Name, composition.TrackType(rec.Type))
	t.ID = rec.ID
	t.Muted = rec.Muted
	t.Solo = rec.Solo
	t.Enabled = rec.Enabled
	t.Gain = rec.Gain
	t.Pan = rec.Pan

	clips := make([]*composition.Clip, 0, len(rec.Clips))
	for i := range rec.Clips {
		clips = append(clips, recordToClip(&rec.Clips[i]))
	}
	transitions := make([]*composition.Transition, 0, len(rec.Transitions))
	for _, tr := range rec.Transitions {
		transitions = append(transitions, &composition.Transition{
			ID:         tr.ID,
			Kind:       composition.TransitionKind(tr.Kind),
			FromClipID: tr.FromClipID,
			ToClipID:   tr.ToClipID,
			Duration:   timebase.Timestamp(tr.DurationUS),
			Easing:     curves.Interpolation(tr.Easing),
		})
	}
	if err := t.Restore(clips, transitions); err != nil {
		return nil, err
	}
	return t, nil
}

func recordToClip(rec *ClipRecord) *composition.Clip {
	c := &composition.Clip{
		ID:        rec.ID,
		Name:      rec.Name,
		Range:     timebase.Range{Start: timebase.Timestamp(rec.StartUS), End: timebase.Timestamp(rec.EndUS)},
		Enabled:   rec.Enabled,
		Payload:   rec.Payload,
		Effects:   rec.Effects,
		Masks:     rec.Masks,
		Grade:     rec.Grade,
		Animation: rec.Animation,
		Ramp:      rec.Ramp,
	}
	if rec.AssetID != "" {
		c.Source = &composition.SourceRef{
			AssetID: rec.AssetID,
			Range: timebase.Range{
				Start: timebase.Timestamp(rec.SourceStartUS),
				End:   timebase.Timestamp(rec.SourceEndUS),
			},
		}
	}
	return c
}

// RenderJobStore keeps a durable history of render jobs. The queue
// holds live state in memory; rows here survive restarts.
type RenderJobStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewRenderJobStore creates a store on an already connected database.
func NewRenderJobStore(db *gorm.DB, logger hclog.Logger) *RenderJobStore {
	return &RenderJobStore{db: db, logger: logger.Named("renderjobs")}
}

// Record upserts the job's current status.
func (s *RenderJobStore) Record(st renderqueue.Status) error {
	rec := RenderJobRecord{
		ID:         st.ID,
		ProjectID:  st.ProjectID,
		State:      string(st.State),
		OutputPath: st.OutputPath,
		Fraction:   st.Progress.Fraction,
		Error:      st.Error,
		StderrTail: st.StderrTail,
		Submitted:  st.Submitted,
	}
	if !st.Started.IsZero() {
		v := st.Started
		rec.Started = &v
	}
	if !st.Finished.IsZero() {
		v := st.Finished
		rec.Finished = &v
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to record render job %s: %w", st.ID, err)
	}
	return nil
}

// History returns stored jobs, newest first. A zero limit means all.
func (s *RenderJobStore) History(projectID string, limit int) ([]RenderJobRecord, error) {
	q := s.db.Order("submitted DESC")
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []RenderJobRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}
	return recs, nil
}

// AssetStore persists asset registrations.
type AssetStore struct {
	db *gorm.DB
}

// NewAssetStore creates a store on an already connected database.
func NewAssetStore(db *gorm.DB) *AssetStore {
	return &AssetStore{db: db}
}

// Save upserts one asset registration.
func (s *AssetStore) Save(a *assets.Asset) error {
	rec := AssetRecord{
		ID:         a.ID,
		Path:       a.Path,
		Kind:       string(a.Kind),
		Size:       a.Size,
		ModTime:    a.ModTime,
		Tags:       a.Tags,
		Info:       a.Info,
		Registered: a.Registered,
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save asset %s: %w", a.ID, err)
	}
	return nil
}

// Delete removes one asset registration.
func (s *AssetStore) Delete(assetID string) error {
	if err := s.db.Delete(&AssetRecord{}, "id = ?", assetID).Error; err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", assetID, err)
	}
	return nil
}

// All returns every stored registration in registration order.
func (s *AssetStore) All() ([]assets.Asset, error) {
	var recs []AssetRecord
	if err := s.db.Order("registered ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	out := make([]assets.Asset, 0, len(recs))
	for _, r := range recs {
		out = append(out, assets.Asset{
			ID:         r.ID,
			Path:       r.Path,
			Kind:       assets.Kind(r.Kind),
			Size:       r.Size,
			ModTime:    r.ModTime,
			Tags:       r.Tags,
			Info:       r.Info,
			Registered: r.Registered,
		})
	}
	return out, nil
}

// PruneStale marks jobs left in a non-terminal state by an unclean
// shutdown as failed. Called once at startup.
func (s *RenderJobStore) PruneStale() (int64, error) {
	now := time.Now()
	res := s.db.Model(&RenderJobRecord{}).
		Where("state IN ?", []string{
			string(renderqueue.StateQueued),
			string(renderqueue.StatePreparing),
			string(renderqueue.StateRendering),
			string(renderqueue.StateEncoding),
		}).
		Updates(map[string]any{
			"state":    string(renderqueue.StateFailed),
			"error":    "interrupted by shutdown",
			"finished": &now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune stale render jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Warn("marked interrupted render jobs as failed", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
