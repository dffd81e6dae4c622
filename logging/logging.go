// Package logging builds the structured loggers used across the crawler,
// backed by the standard library's log/slog.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger with JSON output to stderr. The log
// level is controlled via the LOG_LEVEL environment variable (debug, info,
// warn, error); default is info.
func NewLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler)
}

// NewTextLogger creates a structured logger with human-readable text output
// to stderr, useful for local development.
func NewTextLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
