// Package logger provides structured logging for Medusa, built on
// log/slog with a level parsed from the configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a text-handler logger writing to stderr at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func New(level string) *slog.Logger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput creates a logger writing to the given writer. Used by
// tests to capture output.
func NewWithOutput(level string, out io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
