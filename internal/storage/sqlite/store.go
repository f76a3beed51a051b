// Package sqlite implements scanner.ScanStore on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
)

const schemaVersion = 1

// Config controls the SQLite store.
type Config struct {
	Path      string
	Retention scanner.RetentionPolicy
}

// Store persists scan summaries in a single SQLite file. SQLite allows one
// writer, so the pool is capped at one connection.
type Store struct {
	db        *sql.DB
	retention scanner.RetentionPolicy
	clock     scanner.Clock
}

// Open creates or opens the database at cfg.Path and applies migrations.
func Open(ctx context.Context, cfg Config, clock scanner.Clock) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.sqlite.path is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, retention: cfg.Retention, clock: clock}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			job_title TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			time_range TEXT NOT NULL,
			total_jobs INTEGER NOT NULL,
			jobs_with_descriptions INTEGER NOT NULL,
			cert_data TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);`,
		fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate scans: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Save inserts rec and prunes by age and row count in the same transaction.
func (s *Store) Save(ctx context.Context, rec scanner.ScanRecord) (scanner.SaveResult, error) {
	now := s.clock.Now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	certs, err := storage.EncodeCerts(rec.Certs)
	if err != nil {
		return scanner.SaveResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scanner.SaveResult{}, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO scans (timestamp, job_title, location, time_range, total_jobs, jobs_with_descriptions, cert_data)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		storage.FormatTimestamp(rec.Timestamp),
		rec.JobTitle,
		rec.Location,
		rec.TimeRange,
		rec.TotalJobs,
		rec.JobsWithDescriptions,
		string(certs),
	)
	if err != nil {
		return scanner.SaveResult{}, fmt.Errorf("insert scan: %w", err)
	}
	var out scanner.SaveResult
	if out.ID, err = res.LastInsertId(); err != nil {
		return scanner.SaveResult{}, fmt.Errorf("read scan id: %w", err)
	}

	if cutoff, ok := storage.AgeCutoff(s.retention, now); ok {
		pruned, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE timestamp < ?`, storage.FormatTimestamp(cutoff))
		if err != nil {
			return scanner.SaveResult{}, fmt.Errorf("prune scans by age: %w", err)
		}
		out.PrunedByAge, _ = pruned.RowsAffected()
	}
	if s.retention.MaxRows > 0 {
		pruned, err := tx.ExecContext(ctx, `
DELETE FROM scans WHERE id NOT IN (
	SELECT id FROM scans ORDER BY timestamp DESC, id DESC LIMIT ?
)`, s.retention.MaxRows)
		if err != nil {
			return scanner.SaveResult{}, fmt.Errorf("prune scans by count: %w", err)
		}
		out.PrunedByCount, _ = pruned.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return scanner.SaveResult{}, fmt.Errorf("commit save: %w", err)
	}
	return out, nil
}

// History returns scans newest first. limit <= 0 returns all rows.
func (s *Store) History(ctx context.Context, limit int) ([]scanner.ScanRecord, error) {
	query := `
SELECT id, timestamp, job_title, location, time_range, total_jobs, jobs_with_descriptions, cert_data
FROM scans ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	out := []scanner.ScanRecord{}
	for rows.Next() {
		var (
			rec   scanner.ScanRecord
			ts    string
			certs string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.JobTitle, &rec.Location, &rec.TimeRange,
			&rec.TotalJobs, &rec.JobsWithDescriptions, &certs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if rec.Timestamp, err = storage.ParseTimestamp(ts); err != nil {
			return nil, err
		}
		if rec.Certs, err = storage.DecodeCerts([]byte(certs)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
