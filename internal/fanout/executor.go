// Package fanout dispatches traversal items to a bounded pool of workers.
//
// Items are pulled from the traversal on the calling goroutine, one at a
// time, so the traversal itself never needs to be safe for concurrent use.
// Each file is then handed to its own goroutine, limited to Options.Workers
// in flight. Completion order is unspecified, and a failure on one file never
// affects another.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/harrison/far/internal/models"
	"github.com/harrison/far/internal/replace"
	"github.com/harrison/far/internal/seq"
	"github.com/harrison/far/internal/walk"
)

// Handler processes one file. A non-nil error is classified into an outcome
// status and reported; it never stops the run.
type Handler func(path string) error

// Reporter receives every outcome as it happens. Implementations must be
// safe for concurrent use.
type Reporter interface {
	Report(outcome models.Outcome)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(models.Outcome)

// Report calls f.
func (f ReporterFunc) Report(o models.Outcome) { f(o) }

// Tee returns a Reporter that forwards every outcome to each non-nil
// reporter in order.
func Tee(reporters ...Reporter) Reporter {
	var list []Reporter
	for _, r := range reporters {
		if r != nil {
			list = append(list, r)
		}
	}
	return ReporterFunc(func(o models.Outcome) {
		for _, r := range list {
			r.Report(o)
		}
	})
}

// Classifier maps a handler error to an outcome status.
type Classifier func(err error) string

// Options configures an Executor.
type Options struct {
	// Workers bounds the number of files processed at once; zero means
	// runtime.NumCPU().
	Workers int
	// Classify maps handler errors to statuses; nil means ClassifyReplaceError.
	Classify Classifier
	// KeepDuplicates disables canonical path deduplication.
	KeepDuplicates bool
}

// Executor runs a Handler over a stream of traversal results.
type Executor struct {
	handler  Handler
	reporter Reporter
	workers  int
	classify Classifier
	dedup    bool

	replaced     atomic.Int64
	tooBig       atomic.Int64
	notPrintable atomic.Int64
	failed       atomic.Int64
	walkErrors   atomic.Int64
	duplicates   atomic.Int64
}

// New creates an Executor. A nil reporter discards outcomes.
func New(handler Handler, reporter Reporter, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	classify := opts.Classify
	if classify == nil {
		classify = ClassifyReplaceError
	}
	if reporter == nil {
		reporter = ReporterFunc(func(models.Outcome) {})
	}
	return &Executor{
		handler:  handler,
		reporter: reporter,
		workers:  workers,
		classify: classify,
		dedup:    !opts.KeepDuplicates,
	}
}

// Workers returns the effective concurrency limit.
func (e *Executor) Workers() int {
	return e.workers
}

// Run drains items, dispatching every file path to the handler, and returns
// once all dispatched work has finished. Cancelling ctx stops pulling new
// items; files already dispatched run to completion.
func (e *Executor) Run(ctx context.Context, items seq.Iterator[walk.Result]) models.Summary {
	start := time.Now()
	seen := make(map[string]struct{})

	var g errgroup.Group
	g.SetLimit(e.workers)

	for ctx.Err() == nil {
		item, ok := items.Next()
		if !ok {
			break
		}

		if item.Err != nil {
			e.record(models.Outcome{Path: errorPath(item), Status: models.StatusWalkError, Err: item.Err})
			continue
		}

		if e.dedup {
			key := canonical(item.Path)
			if _, dup := seen[key]; dup {
				e.record(models.Outcome{
					Path:   item.Path,
					Status: models.StatusDuplicate,
					Err:    fmt.Errorf("already processed as %s", key),
				})
				continue
			}
			seen[key] = struct{}{}
		}

		path := item.Path
		g.Go(func() error {
			e.record(e.process(path))
			return nil
		})
	}

	// Handlers never return errors to the group.
	_ = g.Wait()

	s := e.Summary()
	s.Duration = time.Since(start)
	return s
}

// process runs the handler for one file, converting a panic into a failure
// so one bad file cannot take down the run.
func (e *Executor) process(path string) (outcome models.Outcome) {
	start := time.Now()
	outcome.Path = path
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = models.StatusFailed
			outcome.Err = fmt.Errorf("panic: %v", r)
		}
		outcome.Duration = time.Since(start)
	}()

	if err := e.handler(path); err != nil {
		outcome.Status = e.classify(err)
		outcome.Err = err
		return outcome
	}
	outcome.Status = models.StatusReplaced
	return outcome
}

func (e *Executor) record(o models.Outcome) {
	switch o.Status {
	case models.StatusReplaced:
		e.replaced.Inc()
	case models.StatusTooBig:
		e.tooBig.Inc()
	case models.StatusNotPrintable:
		e.notPrintable.Inc()
	case models.StatusWalkError:
		e.walkErrors.Inc()
	case models.StatusDuplicate:
		e.duplicates.Inc()
	default:
		e.failed.Inc()
	}
	e.reporter.Report(o)
}

// Summary returns a snapshot of the counters so far.
func (e *Executor) Summary() models.Summary {
	return models.Summary{
		Replaced:     e.replaced.Load(),
		TooBig:       e.tooBig.Load(),
		NotPrintable: e.notPrintable.Load(),
		Failed:       e.failed.Load(),
		WalkErrors:   e.walkErrors.Load(),
		Duplicates:   e.duplicates.Load(),
	}
}

// ClassifyReplaceError maps errors from the replace package to statuses.
func ClassifyReplaceError(err error) string {
	switch replace.KindOf(err) {
	case replace.KindTooBig:
		return models.StatusTooBig
	case replace.KindNotPrintable:
		return models.StatusNotPrintable
	default:
		return models.StatusFailed
	}
}

// errorPath returns the path of a traversal error item, taking it from the
// *walk.Error when the item itself carries none.
func errorPath(item walk.Result) string {
	if item.Path != "" {
		return item.Path
	}
	var we *walk.Error
	if errors.As(item.Err, &we) {
		return we.Path
	}
	return ""
}

// canonical resolves path to the file it names so the same file reached
// through two roots is processed once.
func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
