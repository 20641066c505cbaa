// Package store persists filings and derived reports in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = errors.New("store: not found")

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OpenPool parses databaseURL and opens a connection pool, failing early
// when the server cannot be reached.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS filings (
	id              BIGSERIAL PRIMARY KEY,
	symbol          TEXT NOT NULL,
	type            TEXT NOT NULL,
	report_date     TEXT NOT NULL DEFAULT '',
	period_end_date TEXT NOT NULL,
	accession       TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (symbol, period_end_date)
);

CREATE TABLE IF NOT EXISTS filing_facts (
	filing_id BIGINT NOT NULL REFERENCES filings(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	tag       TEXT NOT NULL,
	end_date  TEXT NOT NULL,
	members   TEXT NOT NULL,
	unit      TEXT NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	quarters  INTEGER NOT NULL,
	PRIMARY KEY (filing_id, tag, end_date, members)
);

CREATE TABLE IF NOT EXISTS reports (
	id              UUID PRIMARY KEY,
	symbol          TEXT NOT NULL,
	period_end_date TEXT NOT NULL,
	report_json     JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (symbol, period_end_date)
);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
