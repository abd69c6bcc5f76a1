// Package db provides optional PostgreSQL archival for harvest runs.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the harvest tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS harvest_runs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			wiki_url TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			pages_found INTEGER NOT NULL DEFAULT 0,
			pages_scraped INTEGER NOT NULL DEFAULT 0,
			pages_failed INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS wiki_pages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			run_id UUID REFERENCES harvest_runs(id),
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			raw_text TEXT,
			text TEXT,
			content_hash TEXT,
			word_count INTEGER NOT NULL DEFAULT 0,
			http_status INTEGER,
			fetch_status TEXT NOT NULL DEFAULT 'success',
			error_message TEXT,
			is_permanent_failure BOOLEAN NOT NULL DEFAULT FALSE,
			retry_count INTEGER NOT NULL DEFAULT 0,
			fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS wiki_pages_run_id_idx ON wiki_pages (run_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateRun creates a new harvest run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, wikiURL, mode string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO harvest_runs (wiki_url, mode, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id`,
		wikiURL, mode,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a harvest run as completed and records final counters
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, found, scraped, failed int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE harvest_runs
		 SET status = $1, pages_found = $2, pages_scraped = $3, pages_failed = $4, completed_at = NOW()
		 WHERE id = $5`,
		status, found, scraped, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}
