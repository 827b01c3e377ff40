// File: internal/state/ledger.go
// Brief: SQLite apply-run ledger.

// Package state records apply and delete runs in a local SQLite ledger so
// `sqswatch runs` can answer what touched which stack, and when.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const ledgerRelPath = ".sqswatch/state.sqlite"

// Run is one recorded apply or delete invocation.
type Run struct {
	ID         string
	Command    string
	Region     string
	Status     string
	Stacks     int
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Event is one per-stack step inside a run.
type Event struct {
	RunID  string
	TS     time.Time
	Stack  string
	Type   string
	Detail string
}

// Store is the open ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and on first use creates) the ledger under root. Read-only
// opens fail when the ledger does not exist yet instead of creating an
// empty one.
func Open(root string, readOnly bool) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, ledgerRelPath)
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("no run ledger at %s (nothing applied yet?): %w", path, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := path
	if readOnly {
		u := url.URL{Scheme: "file", Path: path}
		q := u.Query()
		q.Set("mode", "ro")
		q.Set("_busy_timeout", "5000")
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path}
	if !readOnly {
		if err := s.initSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS sqswatch_runs (
  run_id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  region TEXT NOT NULL,
  status TEXT NOT NULL,
  stacks INTEGER NOT NULL,
  succeeded INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  started_at_ns INTEGER NOT NULL,
  finished_at_ns INTEGER NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS sqswatch_run_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  ts_ns INTEGER NOT NULL,
  stack TEXT NOT NULL,
  type TEXT NOT NULL,
  detail TEXT NOT NULL,
  FOREIGN KEY (run_id) REFERENCES sqswatch_runs(run_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_sqswatch_run_events_run_id_id ON sqswatch_run_events(run_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a new running row and returns its id.
func (s *Store) BeginRun(ctx context.Context, command, region string, stacks int) (string, error) {
	runID := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sqswatch_runs (run_id, command, region, status, stacks, succeeded, failed, started_at_ns, finished_at_ns)
VALUES (?, ?, ?, ?, ?, 0, 0, ?, 0)
`, runID, command, region, "running", stacks, now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return runID, nil
}

// RecordEvent appends one per-stack event to a run.
func (s *Store) RecordEvent(ctx context.Context, runID, stack, eventType, detail string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sqswatch_run_events (run_id, ts_ns, stack, type, detail)
VALUES (?, ?, ?, ?, ?)
`, runID, time.Now().UTC().UnixNano(), stack, eventType, detail)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// FinishRun marks a run terminal and stores its totals.
func (s *Store) FinishRun(ctx context.Context, runID, status string, succeeded, failed int) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE sqswatch_runs SET status = ?, succeeded = ?, failed = ?, finished_at_ns = ?
WHERE run_id = ?
`, status, succeeded, failed, time.Now().UTC().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run id %s", runID)
	}
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, command, region, status, stacks, succeeded, failed, started_at_ns, finished_at_ns
FROM sqswatch_runs
ORDER BY started_at_ns DESC, run_id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var startedNS, finishedNS int64
		if err := rows.Scan(&r.ID, &r.Command, &r.Region, &r.Status, &r.Stacks, &r.Succeeded, &r.Failed, &startedNS, &finishedNS); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, startedNS).UTC()
		if finishedNS > 0 {
			r.FinishedAt = time.Unix(0, finishedNS).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunEvents returns the events of one run in insertion order.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, ts_ns, stack, type, detail
FROM sqswatch_run_events
WHERE run_id = ?
ORDER BY id ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("run events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var tsNS int64
		if err := rows.Scan(&ev.RunID, &tsNS, &ev.Stack, &ev.Type, &ev.Detail); err != nil {
			return nil, err
		}
		ev.TS = time.Unix(0, tsNS).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
