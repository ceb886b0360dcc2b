// Package config loads application configuration from an optional yaml
// file with environment-variable overrides. Field defaults live in
// struct tags next to the env names that override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mantonx/cutline/internal/database"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/playback"
	"github.com/mantonx/cutline/internal/renderqueue"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Render   RenderConfig   `yaml:"render"`
	Playback PlaybackConfig `yaml:"playback"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" env:"CUTLINE_HOST" default:"0.0.0.0"`
	Port           int           `yaml:"port" env:"CUTLINE_PORT" default:"8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"CUTLINE_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"CUTLINE_WRITE_TIMEOUT" default:"30s"`
	EnableCORS     bool          `yaml:"enable_cors" env:"CUTLINE_ENABLE_CORS" default:"true"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"CUTLINE_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds the persistence settings.
type DatabaseConfig struct {
	Type     string `yaml:"type" env:"DATABASE_TYPE" default:"sqlite"`
	DataDir  string `yaml:"data_dir" env:"CUTLINE_DATA_DIR" default:"./data"`
	Path     string `yaml:"path" env:"CUTLINE_DATABASE_PATH"`
	Host     string `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" default:"cutline"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Name     string `yaml:"name" env:"POSTGRES_DB" default:"cutline"`
}

// Connection returns the driver-level config.
func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Type:     c.Type,
		Path:     c.Path,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
	}
}

// RenderConfig holds the render queue and encoder settings.
type RenderConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent" env:"CUTLINE_RENDER_CONCURRENCY" default:"1"`
	QueueSize     int    `yaml:"queue_size" env:"CUTLINE_RENDER_QUEUE_SIZE" default:"64"`
	OutputDir     string `yaml:"output_dir" env:"CUTLINE_RENDER_OUTPUT_DIR" default:"./renders"`
	Container     string `yaml:"container" env:"CUTLINE_RENDER_CONTAINER" default:".mp4"`

	FFmpegPath   string `yaml:"ffmpeg_path" env:"CUTLINE_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath  string `yaml:"ffprobe_path" env:"CUTLINE_FFPROBE_PATH" default:"ffprobe"`
	VideoCodec   string `yaml:"video_codec" env:"CUTLINE_VIDEO_CODEC" default:"libx264"`
	Preset       string `yaml:"preset" env:"CUTLINE_ENCODE_PRESET" default:"medium"`
	CRF          int    `yaml:"crf" env:"CUTLINE_ENCODE_CRF" default:"23"`
	AudioCodec   string `yaml:"audio_codec" env:"CUTLINE_AUDIO_CODEC" default:"aac"`
	AudioBitrate string `yaml:"audio_bitrate" env:"CUTLINE_AUDIO_BITRATE" default:"192k"`
}

// Queue returns the queue-level config.
func (c RenderConfig) Queue() renderqueue.Config {
	return renderqueue.Config{
		MaxConcurrent: c.MaxConcurrent,
		QueueSize:     c.QueueSize,
		OutputDir:     c.OutputDir,
		Container:     c.Container,
	}
}

// Encoding returns the encoder-level config.
func (c RenderConfig) Encoding() renderqueue.EncodingConfig {
	return renderqueue.EncodingConfig{
		FFmpegPath:   c.FFmpegPath,
		VideoCodec:   c.VideoCodec,
		Preset:       c.Preset,
		CRF:          c.CRF,
		AudioCodec:   c.AudioCodec,
		AudioBitrate: c.AudioBitrate,
	}
}

// PlaybackConfig holds the playback synchronizer settings.
type PlaybackConfig struct {
	TickRateHz int `yaml:"tick_rate_hz" env:"CUTLINE_TICK_RATE" default:"30"`
}

// Sync returns the synchronizer-level config.
func (c PlaybackConfig) Sync() playback.Config {
	return playback.Config{TickRateHz: c.TickRateHz}
}

// EventsConfig holds the event bus settings.
type EventsConfig struct {
	BufferSize   int `yaml:"buffer_size" env:"CUTLINE_EVENT_BUFFER" default:"1000"`
	RecentEvents int `yaml:"recent_events" env:"CUTLINE_EVENT_HISTORY" default:"100"`
}

// Bus returns the bus-level config.
func (c EventsConfig) Bus() events.Config {
	return events.Config{BufferSize: c.BufferSize, RecentEvents: c.RecentEvents}
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level        string `yaml:"level" env:"CUTLINE_LOG_LEVEL" default:"info"`
	Format       string `yaml:"format" env:"CUTLINE_LOG_FORMAT" default:"console"`
	EnableColors bool   `yaml:"enable_colors" env:"CUTLINE_LOG_COLORS" default:"true"`
}

// Manager holds the live configuration and notifies watchers when it
// is reloaded.
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	watchers   []Watcher
}

// Watcher is called after a successful reload.
type Watcher func(oldConfig, newConfig *Config)

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global configuration manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager()
	})
	return globalManager
}

// NewManager creates a manager holding the defaults.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Default returns the built-in configuration: every field set to its
// default tag, with no file or environment applied.
func Default() *Config {
	cfg := &Config{}
	// defaults are picked up by the env loader when no variable is set
	if err := applyEnv(cfg); err != nil {
		panic(fmt.Sprintf("invalid default tag: %v", err))
	}
	applyDerived(cfg)
	return cfg
}

// Load reads the file at configPath (yaml, optional), applies
// environment overrides, validates, and swaps the live config.
func (m *Manager) Load(configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.configPath = configPath

	cfg := &Config{}
	if err := applyEnv(cfg); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
			// file values lose to explicit environment variables
			if err := applyEnvOnly(cfg); err != nil {
				return fmt.Errorf("failed to apply environment: %w", err)
			}
		case os.IsNotExist(err):
			// defaults plus environment
		default:
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	applyDerived(cfg)

	m.config = cfg
	for _, w := range m.watchers {
		go w(oldConfig, cfg)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.config
	return &cp
}

// AddWatcher registers a reload callback.
func (m *Manager) AddWatcher(w Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, w)
}

// Save writes the current configuration back to its file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0o644)
}

// Get returns the current global configuration.
func Get() *Config {
	return GetManager().Get()
}

// Load loads the global configuration from the given path.
func Load(configPath string) error {
	return GetManager().Load(configPath)
}

// applyEnv walks the struct, filling each tagged field from its
// environment variable, falling back to its default tag.
func applyEnv(cfg *Config) error {
	return walkFields(reflect.ValueOf(cfg).Elem(), true)
}

// applyEnvOnly applies only set environment variables, leaving other
// fields untouched.
func applyEnvOnly(cfg *Config) error {
	return walkFields(reflect.ValueOf(cfg).Elem(), false)
}

func walkFields(v reflect.Value, useDefaults bool) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := walkFields(field, useDefaults); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		value := os.Getenv(envTag)
		if value == "" && useDefaults {
			value = fieldType.Tag.Get("default")
		}
		if value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", fieldType.Name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
	if cfg.Render.MaxConcurrent < 1 {
		return fmt.Errorf("invalid render concurrency: %d", cfg.Render.MaxConcurrent)
	}
	if cfg.Render.QueueSize < 1 {
		return fmt.Errorf("invalid render queue size: %d", cfg.Render.QueueSize)
	}
	if cfg.Playback.TickRateHz < 1 {
		return fmt.Errorf("invalid playback tick rate: %d", cfg.Playback.TickRateHz)
	}
	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	return nil
}

func applyDerived(cfg *Config) {
	if cfg.Database.Path == "" && cfg.Database.Type == "sqlite" {
		cfg.Database.Path = filepath.Join(cfg.Database.DataDir, "cutline.db")
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
}
