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

func TestRound4(t *testing.T) {
	if got := Round4(0.123456); got != 0.1235 {
		t.Fatalf("expected 0.1235, got %v", got)
	}
	if got := Round4(98.5); got != 98.5 {
		t.Fatalf("expected 98.5, got %v", got)
	}
	if got := Round4(-1.00005); got != -1.0001 {
		t.Fatalf("expected -1.0001, got %v", got)
	}
}
