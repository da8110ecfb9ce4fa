package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS run_logs (
		id             TEXT PRIMARY KEY,
		region         TEXT NOT NULL,
		status         TEXT NOT NULL,
		started_at     TIMESTAMPTZ NOT NULL,
		ended_at       TIMESTAMPTZ,
		articles_count INTEGER NOT NULL DEFAULT 0,
		log_message    TEXT NOT NULL DEFAULT '',
		metadata       JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS run_logs_region_started_idx ON run_logs (region, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'draft',
		ai_processed BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMPTZ,
		view_count   INTEGER NOT NULL DEFAULT 0,
		review_note  TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS articles_status_published_idx ON articles (status, published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS site_settings (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS test_sweep_history (
		id             TEXT PRIMARY KEY,
		trigger        TEXT NOT NULL DEFAULT '',
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ NOT NULL,
		total          INTEGER NOT NULL,
		success_count  INTEGER NOT NULL,
		failed_regions TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS promotion_boosts (
		id       TEXT PRIMARY KEY,
		kind     TEXT NOT NULL,
		target   TEXT NOT NULL,
		priority DOUBLE PRECISION NOT NULL DEFAULT 1,
		start_at TIMESTAMPTZ NOT NULL,
		end_at   TIMESTAMPTZ NOT NULL,
		active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// Migrate creates the tables the pipeline owns when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
