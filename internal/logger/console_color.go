package logger

import (
	"github.com/fatih/color"

	"github.com/harrison/far/internal/models"
)

// colorScheme defines consistent colors for outcome statuses.
// Green: replaced
// Yellow: skipped by a gate
// Red: failures
// Cyan: duplicates
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// forStatus returns the color used for an outcome status.
func (s *colorScheme) forStatus(status string) *color.Color {
	switch status {
	case models.StatusReplaced:
		return s.success
	case models.StatusTooBig, models.StatusNotPrintable:
		return s.warn
	case models.StatusFailed, models.StatusWalkError:
		return s.fail
	case models.StatusDuplicate:
		return s.label
	default:
		return s.value
	}
}
