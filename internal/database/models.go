package database

import (
	"time"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/curves"
)

// ProjectRecord is the root row of a persisted composition.
type ProjectRecord struct {
	ID         string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name       string  `gorm:"not null" json:"name"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frame_rate"`
	SampleRate int     `json:"sample_rate"`
	PlayheadUS int64   `json:"playhead_us"`
	InPointUS  *int64  `json:"in_point_us,omitempty"`
	OutPointUS *int64  `json:"out_point_us,omitempty"`

	Tracks []TrackRecord `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tracks,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProjectRecord) TableName() string { return "projects" }

// TrackRecord is one row per track. Position preserves the stacking
// order, bottom first.
type TrackRecord struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string  `gorm:"index;type:varchar(64);not null" json:"project_id"`
	Position  int     `gorm:"not null" json:"position"`
	Name      string  `json:"name"`
	Type      string  `gorm:"type:varchar(16);not null" json:"type"`
	Muted     bool    `json:"muted"`
	Solo      bool    `json:"solo"`
	Enabled   bool    `json:"enabled"`
	Gain      float64 `json:"gain"`
	Pan       float64 `json:"pan"`

	Clips       []ClipRecord       `gorm:"foreignKey:TrackID;constraint:OnDelete:CASCADE" json:"clips,omitempty"`
	Transitions []TransitionRecord `gorm:"foreignKey:TrackID;constraint:OnDelete:CASCADE" json:"transitions,omitempty"`
}

func (TrackRecord) TableName() string { return "tracks" }

// ClipRecord is one row per clip. Structured attachments (effects,
// masks, grade, animation, ramp, payload) are stored as JSON columns;
// their shapes evolve faster than the relational core.
type ClipRecord struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TrackID       string `gorm:"index;type:varchar(64);not null" json:"track_id"`
	Name          string `json:"name"`
	StartUS       int64  `gorm:"not null;index" json:"start_us"`
	EndUS         int64  `gorm:"not null" json:"end_us"`
	Enabled       bool   `json:"enabled"`
	Kind          string `gorm:"type:varchar(16);not null" json:"kind"`
	AssetID       string `gorm:"index;type:varchar(64)" json:"asset_id,omitempty"`
	SourceStartUS int64  `json:"source_start_us"`
	SourceEndUS   int64  `json:"source_end_us"`

	Payload   composition.Payload     `gorm:"serializer:json" json:"payload"`
	Effects   []*composition.Effect   `gorm:"serializer:json" json:"effects,omitempty"`
	Masks     []*composition.Mask     `gorm:"serializer:json" json:"masks,omitempty"`
	Grade     composition.ColorGrade  `gorm:"serializer:json" json:"grade"`
	Animation []*curves.KeyframeTrack `gorm:"serializer:json" json:"animation,omitempty"`
	Ramp      *curves.SpeedRamp       `gorm:"serializer:json" json:"ramp,omitempty"`
}

func (ClipRecord) TableName() string { return "clips" }

// TransitionRecord is one row per clip-edge transition.
type TransitionRecord struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TrackID    string `gorm:"index;type:varchar(64);not null" json:"track_id"`
	Kind       string `gorm:"type:varchar(32);not null" json:"kind"`
	FromClipID string `gorm:"type:varchar(64);not null" json:"from_clip_id"`
	ToClipID   string `gorm:"type:varchar(64);not null" json:"to_clip_id"`
	DurationUS int64  `gorm:"not null" json:"duration_us"`
	Easing     string `gorm:"type:varchar(32)" json:"easing"`
}

func (TransitionRecord) TableName() string { return "transitions" }

// RenderJobRecord persists the outcome of render jobs across restarts.
type RenderJobRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID  string     `gorm:"index;type:varchar(64);not null" json:"project_id"`
	State      string     `gorm:"type:varchar(16);not null;index" json:"state"`
	OutputPath string     `gorm:"type:varchar(512)" json:"output_path"`
	Fraction   float64    `json:"fraction"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StderrTail string     `gorm:"type:text" json:"stderr_tail,omitempty"`
	Submitted  time.Time  `gorm:"not null;index" json:"submitted"`
	Started    *time.Time `json:"started,omitempty"`
	Finished   *time.Time `json:"finished,omitempty"`
}

func (RenderJobRecord) TableName() string { return "render_jobs" }

// AssetRecord persists the asset registry so a restart does not lose
// registrations. Online state is re-probed on load, not stored.
type AssetRecord struct {
	ID         string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Path       string            `gorm:"uniqueIndex;type:varchar(512);not null" json:"path"`
	Kind       string            `gorm:"type:varchar(16)" json:"kind"`
	Size       int64             `json:"size"`
	ModTime    time.Time         `json:"mod_time"`
	Tags       assets.AudioTags  `gorm:"serializer:json" json:"tags,omitempty"`
	Info       *assets.MediaInfo `gorm:"serializer:json" json:"info,omitempty"`
	Registered time.Time         `json:"registered"`
}

func (AssetRecord) TableName() string { return "assets" }
