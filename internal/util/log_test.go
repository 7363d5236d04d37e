package util

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}
}

func TestNewFileLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewFileLogger("info", dir)
	if err != nil {
		t.Fatalf("NewFileLogger returned error: %v", err)
	}
	if closer == nil {
		t.Fatalf("expected file handle")
	}
	logger.Info().Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}
}
