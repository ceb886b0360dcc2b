// Package database persists projects and render jobs through gorm,
// with sqlite as the default driver and postgres as the alternative.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects the driver and its connection parameters.
type Config struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DefaultConfig stores a sqlite database under ./data.
func DefaultConfig() Config {
	return Config{
		Type: "sqlite",
		Path: "./data/cutline.db",
	}
}

// Connect opens the configured database and migrates the schema.
func Connect(cfg Config, logger hclog.Logger) (*gorm.DB, error) {
	if cfg.Type == "" {
		cfg.Type = "sqlite"
	}

	var db *gorm.DB
	var err error
	switch cfg.Type {
	case "postgres":
		db, err = connectPostgres(cfg)
	case "sqlite":
		db, err = connectSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Type, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Named("database").Info("database initialized", "type", cfg.Type)
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ProjectRecord{},
		&TrackRecord{},
		&ClipRecord{},
		&TransitionRecord{},
		&RenderJobRecord{},
		&AssetRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func connectPostgres(cfg Config) (*gorm.DB, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, cfg.User, cfg.Password, cfg.Name, port)
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

func connectSQLite(cfg Config) (*gorm.DB, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultConfig().Path
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(path), gormConfig())
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
}
