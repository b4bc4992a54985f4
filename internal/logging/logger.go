// Package logging builds the zerolog loggers used across conductor.
// It supports console output, optional rotating file output and per-component
// child loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

// Config configures the root logger.
type Config struct {
	Level      string // debug, info, warn, error
	File       string // Optional path for rotated file logs
	Console    bool   // Write human-readable output to Output
	NoColor    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output receives console logs. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns console logging at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Console:    true,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// VerboseConfig returns a configuration for troubleshooting sessions.
func VerboseConfig() *Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// ParseLevel maps a config string to a zerolog level. Unknown strings map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ═══════════════════════════════════════════════════════════════════════════════

// Logger wraps the root zerolog.Logger together with the file sink it owns.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New creates a root logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var writers []io.Writer

	if cfg.Console {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		})
	}

	l := &Logger{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, l.file)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	l.Logger = zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return l, nil
}

// Close flushes and closes the rotating file sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Component returns a child logger tagged with the component name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything. Handy as a default in
// constructors and tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
