package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, filepath.Join("./data", "cutline.db"), cfg.Database.Path)
	assert.Equal(t, 1, cfg.Render.MaxConcurrent)
	assert.Equal(t, "ffmpeg", cfg.Render.FFmpegPath)
	assert.Equal(t, 30, cfg.Playback.TickRateHz)
	assert.Equal(t, 1000, cfg.Events.BufferSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CUTLINE_PORT", "9090")
	t.Setenv("CUTLINE_RENDER_CONCURRENCY", "3")
	t.Setenv("CUTLINE_LOG_LEVEL", "debug")

	m := NewManager()
	require.NoError(t, m.Load(""))

	cfg := m.Get()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Render.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutline.yaml")
	doc := `
server:
  port: 9000
render:
  output_dir: /tmp/renders
  crf: 18
playback:
  tick_rate_hz: 60
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(path))

	cfg := m.Get()
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/tmp/renders", cfg.Render.OutputDir)
	assert.Equal(t, 18, cfg.Render.CRF)
	assert.Equal(t, 60, cfg.Playback.TickRateHz)
	// untouched fields keep their defaults
	assert.Equal(t, "medium", cfg.Render.Preset)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))
	t.Setenv("CUTLINE_PORT", "9999")

	m := NewManager()
	require.NoError(t, m.Load(path))
	assert.Equal(t, 9999, m.Get().Server.Port)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, 8080, m.Get().Server.Port)
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		env   string
		value string
	}{
		{"bad port", "CUTLINE_PORT", "70000"},
		{"bad database type", "DATABASE_TYPE", "oracle"},
		{"bad concurrency", "CUTLINE_RENDER_CONCURRENCY", "0"},
		{"bad tick rate", "CUTLINE_TICK_RATE", "0"},
		{"bad log level", "CUTLINE_LOG_LEVEL", "verbose"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			m := NewManager()
			assert.Error(t, m.Load(""))
		})
	}
}

func TestSectionConversions(t *testing.T) {
	cfg := Default()

	q := cfg.Render.Queue()
	assert.Equal(t, cfg.Render.MaxConcurrent, q.MaxConcurrent)
	assert.Equal(t, cfg.Render.OutputDir, q.OutputDir)

	e := cfg.Render.Encoding()
	assert.Equal(t, "libx264", e.VideoCodec)
	assert.Equal(t, 23, e.CRF)

	db := cfg.Database.Connection()
	assert.Equal(t, "sqlite", db.Type)
	assert.Equal(t, cfg.Database.Path, db.Path)

	assert.Equal(t, 30, cfg.Playback.Sync().TickRateHz)
	assert.Equal(t, 1000, cfg.Events.Bus().BufferSize)
}
