// Package storage persists job and device metadata in SQLite. The core
// queue and directory never require it; wiring is callback-driven from the
// main package.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"allpress/directory"
	"allpress/queue"
)

// Logger interface for storage operations
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

// SQLiteStore holds job history and the last-seen device list.
type SQLiteStore struct {
	db  *sql.DB
	log Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath. Empty path
// means in-memory.
func NewSQLiteStore(dbPath string, log Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma failed: %w", err)
		}
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY,
			printer TEXT NOT NULL,
			file_path TEXT NOT NULL,
			original_filename TEXT,
			status TEXT NOT NULL,
			media_size TEXT,
			color_mode TEXT,
			copies INTEGER,
			quality INTEGER,
			created_at TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			spool_id INTEGER DEFAULT 0,
			error_message TEXT,
			progress REAL DEFAULT 0,
			file_size INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_printer ON jobs(printer)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE TABLE IF NOT EXISTS devices (
			uri TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			make_model TEXT,
			location TEXT,
			status INTEGER,
			is_online INTEGER,
			last_updated TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveJob upserts the full job record. Used from the queue's status
// callback, so it receives immutable snapshots.
func (s *SQLiteStore) SaveJob(ctx context.Context, j queue.PrintJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, printer, file_path, original_filename, status,
			media_size, color_mode, copies, quality,
			created_at, started_at, completed_at,
			spool_id, error_message, progress, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			printer = excluded.printer,
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			spool_id = excluded.spool_id,
			error_message = excluded.error_message,
			progress = excluded.progress`,
		j.ID, j.Printer, j.FilePath, j.OriginalFilename, j.Status.String(),
		j.Options.MediaSize, j.Options.ColorMode, j.Options.Copies, j.Options.Quality,
		nullTime(j.CreatedAt), nullTime(j.StartedAt), nullTime(j.CompletedAt),
		j.SpoolID, j.ErrorMessage, j.Progress, j.FileSize)
	if err != nil {
		return fmt.Errorf("save job %d: %w", j.ID, err)
	}
	return nil
}

// UpdateJobStatus updates the mutable fields of one job row. Every
// placeholder in the statement is bound.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id int, status string, spoolID int, errorMessage string, progress float64, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, spool_id = ?, error_message = ?, progress = ?, completed_at = ?
		WHERE id = ?`,
		status, spoolID, errorMessage, progress, nullTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update job %d: no such job", id)
	}
	return nil
}

// Job loads one job row.
func (s *SQLiteStore) Job(ctx context.Context, id int) (JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, printer, file_path, original_filename, status,
			media_size, color_mode, copies, quality,
			created_at, started_at, completed_at,
			spool_id, error_message, progress, file_size
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// Jobs lists the most recent limit job rows, newest first.
func (s *SQLiteStore) Jobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, printer, file_path, original_filename, status,
			media_size, color_mode, copies, quality,
			created_at, started_at, completed_at,
			spool_id, error_message, progress, file_size
		FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StoreDevice upserts one discovered device.
func (s *SQLiteStore) StoreDevice(ctx context.Context, p directory.PrinterInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (uri, name, make_model, location, status, is_online, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			name = excluded.name,
			make_model = excluded.make_model,
			location = excluded.location,
			status = excluded.status,
			is_online = excluded.is_online,
			last_updated = excluded.last_updated`,
		p.URI, p.Name, p.MakeModel, p.Location, p.Status, boolInt(p.IsOnline), p.LastUpdated)
	if err != nil {
		return fmt.Errorf("store device %s: %w", p.URI, err)
	}
	return nil
}

// Devices lists the stored device records.
func (s *SQLiteStore) Devices(ctx context.Context) ([]directory.PrinterInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, name, make_model, location, status, is_online, last_updated
		FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []directory.PrinterInfo
	for rows.Next() {
		var p directory.PrinterInfo
		var online int
		var updated sql.NullTime
		if err := rows.Scan(&p.URI, &p.Name, &p.MakeModel, &p.Location, &p.Status, &online, &updated); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		p.IsOnline = online != 0
		if updated.Valid {
			p.LastUpdated = updated.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveDevice deletes an administratively evicted device.
func (s *SQLiteStore) RemoveDevice(ctx context.Context, uri string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE uri = ?`, uri)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// JobRecord is the stored shape of a job.
type JobRecord struct {
	ID               int
	Printer          string
	FilePath         string
	OriginalFilename string
	Status           string
	MediaSize        string
	ColorMode        string
	Copies           int
	Quality          int
	CreatedAt        time.Time
	StartedAt        time.Time
	CompletedAt      time.Time
	SpoolID          int
	ErrorMessage     string
	Progress         float64
	FileSize         int64
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (JobRecord, error) {
	var rec JobRecord
	var created, started, completed sql.NullTime
	var origName, media, color, errMsg sql.NullString
	err := row.Scan(&rec.ID, &rec.Printer, &rec.FilePath, &origName, &rec.Status,
		&media, &color, &rec.Copies, &rec.Quality,
		&created, &started, &completed,
		&rec.SpoolID, &errMsg, &rec.Progress, &rec.FileSize)
	if err != nil {
		return JobRecord{}, fmt.Errorf("scan job: %w", err)
	}
	rec.OriginalFilename = origName.String
	rec.MediaSize = media.String
	rec.ColorMode = color.String
	rec.ErrorMessage = errMsg.String
	if created.Valid {
		rec.CreatedAt = created.Time
	}
	if started.Valid {
		rec.StartedAt = started.Time
	}
	if completed.Valid {
		rec.CompletedAt = completed.Time
	}
	return rec, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
