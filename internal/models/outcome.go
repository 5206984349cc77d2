package models

import "time"

// Outcome status constants
const (
	StatusReplaced     = "REPLACED"      // File rewritten and published
	StatusTooBig       = "TOO_BIG"       // Skipped by the size gate
	StatusNotPrintable = "NOT_PRINTABLE" // Skipped by the printable gate
	StatusFailed       = "FAILED"        // I/O or substitution failure
	StatusWalkError    = "WALK_ERROR"    // Entry could not be read during traversal
	StatusDuplicate    = "DUPLICATE"     // Path already dispatched via another root
)

// Outcome is the result of processing one traversal item. Outcomes are
// reported as they happen and then discarded.
type Outcome struct {
	Path     string        // Absolute path of the file or entry
	Status   string        // One of the Status* constants
	Err      error         // Cause for every status except StatusReplaced
	Duration time.Duration // Time spent on the file
}

// IsFailure reports whether the outcome should fail the run. Gate rejections
// and duplicates are expected in any real tree and do not count.
func (o Outcome) IsFailure() bool {
	return o.Status == StatusFailed || o.Status == StatusWalkError
}

// Run describes one invocation.
type Run struct {
	ID          string    // Unique run identifier
	Pattern     string    // Source pattern as typed
	Replacement string    // Replacement text
	Mode        string    // "all" or "lines"
	Roots       []string  // Roots in argument order
	Workers     int       // Concurrency limit
	StartedAt   time.Time // When traversal began
}

// Summary holds the counters of a finished run.
type Summary struct {
	Replaced     int64
	TooBig       int64
	NotPrintable int64
	Failed       int64
	WalkErrors   int64
	Duplicates   int64
	Duration     time.Duration
}

// Total returns the number of traversal items seen.
func (s Summary) Total() int64 {
	return s.Replaced + s.TooBig + s.NotPrintable + s.Failed + s.WalkErrors + s.Duplicates
}

// Failures returns the number of outcomes that fail the run.
func (s Summary) Failures() int64 {
	return s.Failed + s.WalkErrors
}
