// Package journal records far runs and their per-file outcomes in SQLite.
//
// The journal is optional. When enabled, every run gets a row in runs and
// every reported outcome a row in outcomes, so "far history" can show what a
// past run touched and what it skipped.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/far/internal/models"
)

// RunRecord is a stored run with its final counters.
type RunRecord struct {
	models.Run
	FinishedAt *time.Time
	Summary    models.Summary
}

// Finished reports whether the run recorded its summary.
func (r RunRecord) Finished() bool {
	return r.FinishedAt != nil
}

// OutcomeRecord is a stored per-file outcome.
type OutcomeRecord struct {
	ID           int64
	RunID        string
	Path         string
	Status       string
	ErrorMessage string
	Duration     time.Duration
}

// Store manages the SQLite run journal
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewRunID returns a fresh unique run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Open creates a Store at dbPath, creating parent directories and applying
// migrations. ":memory:" opens a private in-memory journal.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Foreign keys are per connection, so they go in the DSN.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Workers report concurrently; a single connection serializes writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun records the start of a run. run.ID must be set.
func (s *Store) BeginRun(ctx context.Context, run models.Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	roots, err := json.Marshal(run.Roots)
	if err != nil {
		return fmt.Errorf("marshal roots: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO runs
		(id, pattern, replacement, mode, roots, workers, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pattern, run.Replacement, run.Mode, string(roots), run.Workers, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordOutcome stores one per-file outcome of a run.
func (s *Store) RecordOutcome(ctx context.Context, runID string, o models.Outcome) error {
	var errMsg sql.NullString
	if o.Err != nil {
		errMsg = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO outcomes
		(run_id, path, status, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?)`,
		runID, o.Path, o.Status, errMsg, o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, summary models.Summary) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET
		finished_at = ?, duration_ms = ?,
		replaced = ?, too_big = ?, not_printable = ?,
		failed = ?, walk_errors = ?, duplicates = ?
		WHERE id = ?`,
		time.Now().UTC(), summary.Duration.Milliseconds(),
		summary.Replaced, summary.TooBig, summary.NotPrintable,
		summary.Failed, summary.WalkErrors, summary.Duplicates,
		runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: unknown run %s", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, pattern, replacement, mode, roots, workers, started_at, finished_at,
		COALESCE(duration_ms, 0), replaced, too_big, not_printable, failed, walk_errors, duplicates
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			roots      string
			finishedAt sql.NullTime
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Pattern, &rec.Replacement, &rec.Mode, &roots, &rec.Workers,
			&rec.StartedAt, &finishedAt, &durationMS,
			&rec.Summary.Replaced, &rec.Summary.TooBig, &rec.Summary.NotPrintable,
			&rec.Summary.Failed, &rec.Summary.WalkErrors, &rec.Summary.Duplicates,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(roots), &rec.Roots); err != nil {
			return nil, fmt.Errorf("unmarshal roots of run %s: %w", rec.ID, err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			rec.FinishedAt = &t
		}
		rec.Summary.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the outcomes of a run in the order they were recorded.
// When statuses is non-empty only those statuses are returned.
func (s *Store) Outcomes(ctx context.Context, runID string, statuses ...string) ([]OutcomeRecord, error) {
	query := `SELECT id, run_id, path, status, COALESCE(error_message, ''), COALESCE(duration_ms, 0)
		FROM outcomes WHERE run_id = ?`
	args := []any{runID}
	if len(statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(statuses)-1) + ")"
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var (
			rec        OutcomeRecord
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Path, &rec.Status, &rec.ErrorMessage, &durationMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// Reporter records outcomes of one run as they are reported. A failed write
// is remembered and further outcomes are dropped, so a broken journal never
// stalls the run.
type Reporter struct {
	store *Store
	runID string
	ctx   context.Context

	mu  sync.Mutex
	err error
}

// Reporter returns a Reporter writing outcomes for runID.
func (s *Store) Reporter(ctx context.Context, runID string) *Reporter {
	return &Reporter{store: s, runID: runID, ctx: ctx}
}

// Report records o. It is safe for concurrent use.
func (r *Reporter) Report(o models.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.err = r.store.RecordOutcome(r.ctx, r.runID, o)
}

// Err returns the first write failure, if any.
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
