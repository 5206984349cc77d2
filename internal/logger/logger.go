// Package logger provides logging implementations for far runs.
//
// Every logger renders leveled messages, the start of a run, one line per
// file outcome and the final summary. Implementations are safe for concurrent
// use so they can be handed to the fan-out executor as its reporter.
package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/far/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is implemented by every output destination.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRunStart(run models.Run)
	Report(outcome models.Outcome)
	LogSummary(summary models.Summary)
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if IsValidLevel(normalized) {
		return normalized
	}
	return "info"
}

// IsValidLevel reports whether level names one of the supported levels.
func IsValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// outcomeLevel returns the level an outcome is logged at.
func outcomeLevel(o models.Outcome) string {
	switch o.Status {
	case models.StatusReplaced, models.StatusDuplicate:
		return "debug"
	case models.StatusTooBig, models.StatusNotPrintable:
		return "warn"
	default:
		return "error"
	}
}

// formatOutcome renders an outcome as "<path>: <cause>".
func formatOutcome(o models.Outcome) string {
	if o.Status == models.StatusReplaced {
		return fmt.Sprintf("%s: replaced in %s", o.Path, formatDuration(o.Duration))
	}
	if o.Err == nil {
		return fmt.Sprintf("%s: %s", o.Path, strings.ToLower(o.Status))
	}
	msg := o.Err.Error()
	// Traversal errors already carry their path.
	if strings.HasPrefix(msg, o.Path+": ") {
		return msg
	}
	return fmt.Sprintf("%s: %s", o.Path, msg)
}

// formatRunStart renders the one-line run banner.
func formatRunStart(run models.Run) string {
	return fmt.Sprintf("Replacing %q with %q in %s (mode %s, %d workers)",
		run.Pattern, run.Replacement, strings.Join(run.Roots, ", "), run.Mode, run.Workers)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// MultiLogger forwards every call to each of its loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger; nil entries are dropped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogRunStart(run models.Run) {
	for _, l := range m.loggers {
		l.LogRunStart(run)
	}
}

func (m *MultiLogger) Report(outcome models.Outcome) {
	for _, l := range m.loggers {
		l.Report(outcome)
	}
}

func (m *MultiLogger) LogSummary(summary models.Summary) {
	for _, l := range m.loggers {
		l.LogSummary(summary)
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string) {}
func (n *NoOpLogger) LogDebug(string) {}
func (n *NoOpLogger) LogInfo(string) {}
func (n *NoOpLogger) LogWarn(string) {}
func (n *NoOpLogger) LogError(string) {}
func (n *NoOpLogger) LogRunStart(models.Run) {}
func (n *NoOpLogger) Report(models.Outcome) {}
func (n *NoOpLogger) LogSummary(models.Summary) {}
