// Package logging provides slog constructors shared by the CLI and the
// engine packages.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a structured logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a JSON logger writing to w at the given level.
func NewJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewStderr creates a text logger writing to stderr.
func NewStderr(level slog.Level) *slog.Logger {
	return New(os.Stderr, level)
}

// Discard creates a logger that drops all output. Used in tests and by
// library callers that pass no logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// LevelFromString converts a string to a slog.Level. Supports debug, info,
// warn, error (case-insensitive); unrecognized strings map to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
