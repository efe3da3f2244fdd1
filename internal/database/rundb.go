package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/example/threadharvest/internal/model"
)

// RunDB provides SQLite-based storage for crawl-run history. One row is
// recorded per month crawl, successful or failed, which the report
// command uses to show how coverage evolved across re-runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// RunStatus is the terminal state of a recorded crawl run.
type RunStatus string

// Run terminal states.
const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded month crawl. The json tags keep the report
// command's output schema in snake_case like every other persisted type.
type Run struct {
	ID                     int64     `json:"id"`
	Month                  string    `json:"month"`
	StartedAt              time.Time `json:"started_at"`
	FinishedAt             time.Time `json:"finished_at"`
	Status                 RunStatus `json:"status"`
	ThreadCount            int       `json:"thread_count"`
	CommentCount           int       `json:"comment_count"`
	NewThreads             int       `json:"new_threads"`
	NewComments            int       `json:"new_comments"`
	MissingDays            []string  `json:"missing_days,omitempty"`
	ThreadsMissingComments []string  `json:"threads_missing_comments,omitempty"`
	SkippedUnits           int       `json:"skipped_units"`
	Error                  string    `json:"error,omitempty"`
}

// Open opens or creates a RunDB at the specified directory.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, "threadharvest.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to prevent creating new files and
	// mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per month crawl, completed or failed
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		month TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		thread_count INTEGER DEFAULT 0,
		comment_count INTEGER DEFAULT 0,
		new_threads INTEGER DEFAULT 0,
		new_comments INTEGER DEFAULT 0,
		missing_days TEXT DEFAULT '',
		threads_missing_comments TEXT DEFAULT '',
		skipped_units INTEGER DEFAULT 0,
		error TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_month ON crawl_runs(month);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RecordRun inserts one crawl run and returns its row ID.
func (rdb *RunDB) RecordRun(ctx context.Context, run Run) (int64, error) {
	result, err := rdb.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (
			month, started_at, finished_at, status,
			thread_count, comment_count, new_threads, new_comments,
			missing_days, threads_missing_comments, skipped_units, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Month,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		string(run.Status),
		run.ThreadCount,
		run.CommentCount,
		run.NewThreads,
		run.NewComments,
		strings.Join(run.MissingDays, ","),
		strings.Join(run.ThreadsMissingComments, ","),
		run.SkippedUnits,
		run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return result.LastInsertId()
}

// RunsForMonth returns all recorded runs for a month, newest first.
func (rdb *RunDB) RunsForMonth(ctx context.Context, month model.Month) ([]Run, error) {
	return rdb.queryRuns(ctx, `
		SELECT id, month, started_at, finished_at, status,
		       thread_count, comment_count, new_threads, new_comments,
		       missing_days, threads_missing_comments, skipped_units, error
		FROM crawl_runs
		WHERE month = ?
		ORDER BY started_at DESC`, month.String())
}

// RecentRuns returns the most recent runs across all months.
func (rdb *RunDB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return rdb.queryRuns(ctx, `
		SELECT id, month, started_at, finished_at, status,
		       thread_count, comment_count, new_threads, new_comments,
		       missing_days, threads_missing_comments, skipped_units, error
		FROM crawl_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
}

// queryRuns executes a run query and scans the rows.
func (rdb *RunDB) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			status  string
			missing string
			noComm  string
		)
		if err := rows.Scan(
			&r.ID, &r.Month, &r.StartedAt, &r.FinishedAt, &status,
			&r.ThreadCount, &r.CommentCount, &r.NewThreads, &r.NewComments,
			&missing, &noComm, &r.SkippedUnits, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = RunStatus(status)
		r.MissingDays = splitList(missing)
		r.ThreadsMissingComments = splitList(noComm)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// splitList splits a comma-joined column, returning nil for empty.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
