package util

import "testing"

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := NewLogger(level, "json"); logger == nil {
			t.Errorf("NewLogger(%q, json) returned nil", level)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text", "TEXT", "unknown"} {
		if logger := NewLogger("info", format); logger == nil {
			t.Errorf("NewLogger(info, %q) returned nil", format)
		}
	}
}
