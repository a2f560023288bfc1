package config

import (
	"log/slog"
	"strings"
)

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"RAPO_LOG_LEVEL" envDefault:"info"`

	// Format is "text" or "json".
	Format string `env:"RAPO_LOG_FORMAT" envDefault:"text"`

	// File is an optional log file path. Empty writes to stderr.
	File string `env:"RAPO_LOG_FILE"`
}

// Sanitize normalises logging configuration values.
func (l *LoggingConfig) Sanitize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		l.Level = "info"
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format != "json" {
		l.Format = "text"
	}
	l.File = strings.TrimSpace(l.File)
}

// SlogLevel maps the configured level onto slog.
func (l *LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
