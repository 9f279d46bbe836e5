// Package history records generation runs in a local SQLite database so
// past exports can be inspected with `codepack history`.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Run modes recorded for a generation.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
	ModeWatch       = "watch"
)

// Run is a single recorded generation.
type Run struct {
	ID         string
	Root       string
	Mode       string // full, incremental, watch
	Output     string
	TotalFiles int
	Processed  int
	Skipped    int
	Deleted    int
	Duration   time.Duration
	CreatedAt  time.Time
}

// Store manages the SQLite database holding run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the database at dbPath and applies the
// schema. ":memory:" yields an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so subsequent pragmas wait on locks
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
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

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun inserts a run. A missing ID or timestamp is filled in.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Mode == "" {
		run.Mode = ModeFull
	}

	query := `INSERT INTO runs
		(id, root, mode, output, total_files, processed, skipped, deleted, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Root,
		run.Mode,
		run.Output,
		run.TotalFiles,
		run.Processed,
		run.Skipped,
		run.Deleted,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A root narrows the
// result to one directory; limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, root string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, root, mode, output, total_files, processed, skipped, deleted, duration_ms, created_at
		FROM runs`
	args := []interface{}{}
	if root != "" {
		query += ` WHERE root = ?`
		args = append(args, root)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var durationMs int64
		if err := rows.Scan(
			&run.ID,
			&run.Root,
			&run.Mode,
			&run.Output,
			&run.TotalFiles,
			&run.Processed,
			&run.Skipped,
			&run.Deleted,
			&durationMs,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastRun returns the newest run for root, or nil when none exists.
func (s *Store) LastRun(ctx context.Context, root string) (*Run, error) {
	runs, err := s.ListRuns(ctx, root, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// Prune deletes runs older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return result.RowsAffected()
}
