// Package journal records run and stage history in a SQLite database under
// the data directory. The journal is observational only: stage idempotence
// rests entirely on the output files, so a lost or deleted journal never
// changes what a re-run does. It exists to answer "what happened on recent
// runs" without trawling logs.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"aulagrab/internal/stagecache"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	shard TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status TEXT NOT NULL DEFAULT 'running',
	error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS stage_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	stage TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_stage_runs_run ON stage_runs(run_id);
`

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Shard      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string
}

// StageRun is one stage execution within a run.
type StageRun struct {
	RunID    string
	Stage    string
	Stats    stagecache.Stats
	Duration time.Duration
	Error    string
}

// Open initializes or connects to the journal database under dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records the start of a run and returns its id.
func (s *Store) Begin(ctx context.Context, shard string) (string, error) {
	id := uuid.NewString()
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, shard, started_at, status) VALUES (?, ?, ?, 'running')`,
		id, shard, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// Finish records a run's terminal status.
func (s *Store) Finish(ctx context.Context, runID, status, errMsg string) error {
	err := s.execWithRetry(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RecordStage appends one stage execution to a run.
func (s *Store) RecordStage(ctx context.Context, sr StageRun) error {
	err := s.execWithRetry(ctx,
		`INSERT INTO stage_runs (run_id, stage, processed, skipped, failed, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sr.RunID, sr.Stage, sr.Stats.Processed, sr.Stats.Skipped, sr.Stats.Failed,
		sr.Duration.Milliseconds(), sr.Error)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shard, started_at, finished_at, status, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Shard, &r.StartedAt, &finished, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StagesForRun returns a run's stage executions in insertion order.
func (s *Store) StagesForRun(ctx context.Context, runID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, processed, skipped, failed, duration_ms, error
		 FROM stage_runs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []StageRun
	for rows.Next() {
		var sr StageRun
		var durationMS int64
		if err := rows.Scan(&sr.RunID, &sr.Stage, &sr.Stats.Processed, &sr.Stats.Skipped,
			&sr.Stats.Failed, &durationMS, &sr.Error); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		sr.Duration = time.Duration(durationMS) * time.Millisecond
		stages = append(stages, sr)
	}
	return stages, rows.Err()
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
