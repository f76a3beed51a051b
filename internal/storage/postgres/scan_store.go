// Package postgres provides a Postgres-backed scan history store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for scan rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Retention       scanner.RetentionPolicy
}

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// ScanStore writes scan summaries into Postgres.
type ScanStore struct {
	pool      pool
	table     string
	retention scanner.RetentionPolicy
	clock     scanner.Clock
}

// NewScanStore connects to Postgres and ensures the scan table exists.
func NewScanStore(ctx context.Context, cfg Config, clock scanner.Clock) (*ScanStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewScanStoreWithPool(p, cfg.Table, cfg.Retention, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewScanStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewScanStoreWithPool(p pool, table string, retention scanner.RetentionPolicy, clock scanner.Clock) (*ScanStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = "scans"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ScanStore{pool: p, table: table, retention: retention, clock: clock}, nil
}

// EnsureSchema creates the scan table and its timestamp index.
func (s *ScanStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	job_title TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	time_range TEXT NOT NULL,
	total_jobs INTEGER NOT NULL,
	jobs_with_descriptions INTEGER NOT NULL,
	cert_data JSONB NOT NULL DEFAULT '[]'::jsonb
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_timestamp_idx ON %s (timestamp)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", s.table, err)
		}
	}
	return nil
}

// Save inserts rec and applies retention in one transaction.
func (s *ScanStore) Save(ctx context.Context, rec scanner.ScanRecord) (scanner.SaveResult, error) {
	now := s.clock.Now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	certs, err := storage.EncodeCerts(rec.Certs)
	if err != nil {
		return scanner.SaveResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return scanner.SaveResult{}, fmt.Errorf("begin save: %w", err)
	}
	var out scanner.SaveResult
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	insert := fmt.Sprintf(`
INSERT INTO %s (timestamp, job_title, location, time_range, total_jobs, jobs_with_descriptions, cert_data)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`, s.table)
	err = tx.QueryRow(ctx, insert,
		rec.Timestamp.UTC(),
		rec.JobTitle,
		rec.Location,
		rec.TimeRange,
		rec.TotalJobs,
		rec.JobsWithDescriptions,
		certs,
	).Scan(&out.ID)
	if err != nil {
		return scanner.SaveResult{}, fmt.Errorf("insert scan: %w", err)
	}

	if cutoff, ok := storage.AgeCutoff(s.retention, now); ok {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, s.table), cutoff)
		if err != nil {
			return scanner.SaveResult{}, fmt.Errorf("prune scans by age: %w", err)
		}
		out.PrunedByAge = tag.RowsAffected()
	}
	if s.retention.MaxRows > 0 {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`
DELETE FROM %[1]s WHERE id NOT IN (
	SELECT id FROM %[1]s ORDER BY timestamp DESC, id DESC LIMIT $1
)`, s.table), s.retention.MaxRows)
		if err != nil {
			return scanner.SaveResult{}, fmt.Errorf("prune scans by count: %w", err)
		}
		out.PrunedByCount = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return scanner.SaveResult{}, fmt.Errorf("commit save: %w", err)
	}
	committed = true
	return out, nil
}

// History returns scans newest first. limit <= 0 returns all rows.
func (s *ScanStore) History(ctx context.Context, limit int) ([]scanner.ScanRecord, error) {
	query := fmt.Sprintf(`
SELECT id, timestamp, job_title, location, time_range, total_jobs, jobs_with_descriptions, cert_data
FROM %s ORDER BY timestamp DESC, id DESC`, s.table)
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	out := []scanner.ScanRecord{}
	for rows.Next() {
		var (
			rec   scanner.ScanRecord
			certs []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.JobTitle, &rec.Location, &rec.TimeRange,
			&rec.TotalJobs, &rec.JobsWithDescriptions, &certs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		if rec.Certs, err = storage.DecodeCerts(certs); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

// Ping checks pool connectivity.
func (s *ScanStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ScanStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
