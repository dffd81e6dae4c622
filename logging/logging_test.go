package logging

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

func TestNewLoggerDefaultLevelInfo(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	logger := NewLogger()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled by default")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be enabled by default")
	}
}

func TestNewLoggerDebugLevelFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")
	logger := NewLogger()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be enabled with LOG_LEVEL=debug")
	}
}

func TestNewLoggerErrorLevelFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "error")
	defer os.Unsetenv("LOG_LEVEL")
	logger := NewLogger()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn to be disabled with LOG_LEVEL=error")
	}
}
