// Package history persists batch run outcomes to SQLite. The completion
// ledger answers "which books are done"; history answers "what happened on
// each run", which the status and history commands report.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bookforge/internal/config"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE schema_version (version INTEGER NOT NULL);

CREATE TABLE runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    trigger TEXT NOT NULL,
    books_attempted INTEGER NOT NULL DEFAULT 0,
    books_published INTEGER NOT NULL DEFAULT 0,
    books_failed INTEGER NOT NULL DEFAULT 0,
    aborted INTEGER NOT NULL DEFAULT 0,
    note TEXT
);

CREATE TABLE books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    directory TEXT NOT NULL,
    title TEXT NOT NULL,
    stage TEXT NOT NULL,
    succeeded INTEGER NOT NULL,
    confirmed INTEGER NOT NULL,
    warnings INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    finished_at TEXT NOT NULL
);

CREATE INDEX idx_books_run_id ON books(run_id);
`

// Run triggers recorded in history.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// RunRecord is one batch run.
type RunRecord struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	Trigger        string
	BooksAttempted int
	BooksPublished int
	BooksFailed    int
	Aborted        bool
	Note           string
}

// BookRecord is the outcome of one book within a run.
type BookRecord struct {
	ID           int64
	RunID        int64
	Directory    string
	Title        string
	Stage        string
	Succeeded    bool
	Confirmed    bool
	Warnings     int
	ErrorMessage string
	FinishedAt   time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("history database has schema version %d, expected %d (delete %s to reset)",
			version, schemaVersion, s.path)
	}
	return nil
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(ctx context.Context, trigger string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (started_at, trigger) VALUES (?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano), trigger)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishRun records the final tallies for a run.
func (s *Store) FinishRun(ctx context.Context, id int64, attempted, published, failed int, aborted bool, note string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, books_attempted = ?, books_published = ?,
            books_failed = ?, aborted = ?, note = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		attempted, published, failed, boolToInt(aborted), nullableString(note), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordBook appends one book outcome to a run.
func (s *Store) RecordBook(ctx context.Context, runID int64, record BookRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (run_id, directory, title, stage, succeeded, confirmed,
            warnings, error_message, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		record.Directory,
		record.Title,
		record.Stage,
		boolToInt(record.Succeeded),
		boolToInt(record.Confirmed),
		record.Warnings,
		nullableString(record.ErrorMessage),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert book record: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, trigger, books_attempted,
            books_published, books_failed, aborted, note
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			record           RunRecord
			startedAt        string
			finishedAt, note sql.NullString
			aborted          int
		)
		if err := rows.Scan(&record.ID, &startedAt, &finishedAt, &record.Trigger,
			&record.BooksAttempted, &record.BooksPublished, &record.BooksFailed,
			&aborted, &note); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			record.FinishedAt = parseTimestamp(finishedAt.String)
		}
		record.Aborted = aborted != 0
		record.Note = note.String
		records = append(records, record)
	}
	return records, rows.Err()
}

// BooksForRun returns the book outcomes recorded for a run, oldest first.
func (s *Store) BooksForRun(ctx context.Context, runID int64) ([]BookRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, directory, title, stage, succeeded, confirmed,
            warnings, error_message, finished_at
         FROM books WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var records []BookRecord
	for rows.Next() {
		var (
			record               BookRecord
			succeeded, confirmed int
			errorMessage         sql.NullString
			finishedAt           string
		)
		if err := rows.Scan(&record.ID, &record.RunID, &record.Directory, &record.Title,
			&record.Stage, &succeeded, &confirmed, &record.Warnings,
			&errorMessage, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		record.Succeeded = succeeded != 0
		record.Confirmed = confirmed != 0
		record.ErrorMessage = errorMessage.String
		record.FinishedAt = parseTimestamp(finishedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
