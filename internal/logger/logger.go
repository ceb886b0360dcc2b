// Package logger builds the application's hclog root logger. Every
// component receives a Named() child of this logger.
package logger

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options selects the output format and verbosity.
type Options struct {
	Level        string
	Format       string // "console" or "json"
	EnableColors bool
}

// New creates the root logger.
func New(opts Options) hclog.Logger {
	color := hclog.ColorOff
	if opts.EnableColors && opts.Format != "json" {
		color = hclog.AutoColor
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "cutline",
		Level:      hclog.LevelFromString(opts.Level),
		Output:     os.Stderr,
		JSONFormat: opts.Format == "json",
		Color:      color,
	})
}
