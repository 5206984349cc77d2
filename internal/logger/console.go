package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/far/internal/models"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		scheme:      newColorScheme(),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs and NO_COLOR
// is not set.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || (f != os.Stdout && f != os.Stderr) {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColor forces color output on or off.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogRunStart logs the run banner at INFO level.
func (cl *ConsoleLogger) LogRunStart(run models.Run) {
	cl.LogInfo(formatRunStart(run))
}

// Report logs one file outcome. Replacements and duplicates are logged at
// DEBUG, gate rejections at WARN and failures at ERROR.
// Format: "[HH:MM:SS] [LEVEL] <path>: <cause>"
func (cl *ConsoleLogger) Report(outcome models.Outcome) {
	level := outcomeLevel(outcome)
	message := formatOutcome(outcome)
	if cl.colorOutput {
		message = cl.scheme.forStatus(outcome.Status).Sprint(message)
	}
	cl.logWithLevel(strings.ToUpper(level), message)
}

// LogSummary logs the run summary with per-status counters at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.Summary) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var sb strings.Builder

	header := "=== Summary ==="
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)

	for _, line := range summaryLines(summary) {
		text := fmt.Sprintf("%s: %d", line.label, line.value)
		if cl.colorOutput && line.value > 0 {
			text = cl.scheme.forStatus(line.status).Sprint(text)
		}
		fmt.Fprintf(&sb, "[%s] %s\n", ts, text)
	}
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(summary.Duration))

	cl.writer.Write([]byte(sb.String()))
}

type summaryLine struct {
	label  string
	value  int64
	status string
}

// summaryLines lists the counters shown in a summary, in display order.
func summaryLines(s models.Summary) []summaryLine {
	return []summaryLine{
		{"Total files", s.Total(), ""},
		{"Replaced", s.Replaced, models.StatusReplaced},
		{"Skipped (too big)", s.TooBig, models.StatusTooBig},
		{"Skipped (not printable)", s.NotPrintable, models.StatusNotPrintable},
		{"Duplicates", s.Duplicates, models.StatusDuplicate},
		{"Failed", s.Failed, models.StatusFailed},
		{"Traversal errors", s.WalkErrors, models.StatusWalkError},
	}
}
