package logger

import (
	"bytes"
	"strings"
	"testing"
)

// TestLogLevelFiltering verifies that messages are filtered based on log level
func TestLogLevelFiltering(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error"}

	for ci, configured := range levels {
		for mi, message := range levels {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, configured)

			switch message {
			case "trace":
				logger.LogTrace("msg")
			case "debug":
				logger.LogDebug("msg")
			case "info":
				logger.LogInfo("msg")
			case "warn":
				logger.LogWarn("msg")
			case "error":
				logger.LogError("msg")
			}

			shouldAppear := mi >= ci
			appeared := strings.Contains(buf.String(), "["+strings.ToUpper(message)+"] msg")
			if appeared != shouldAppear {
				t.Errorf("level %s, message %s: appeared = %v, want %v", configured, message, appeared, shouldAppear)
			}
		}
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "info"},
		{"DEBUG", "debug"},
		{"  warn ", "warn"},
		{"verbose", "info"},
		{"trace", "trace"},
	}

	for _, tt := range tests {
		if got := normalizeLogLevel(tt.input); got != tt.want {
			t.Errorf("normalizeLogLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsValidLevel(t *testing.T) {
	if !IsValidLevel("Error") {
		t.Error("IsValidLevel(\"Error\") = false, want true")
	}
	if IsValidLevel("fatal") {
		t.Error("IsValidLevel(\"fatal\") = true, want false")
	}
}
