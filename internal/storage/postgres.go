package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
	amount      NUMERIC(18,4) NOT NULL CHECK (amount >= 0),
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_occurred
	ON transactions (account_id, occurred_at);
`

// PostgresOptions tunes connection retries.
type PostgresOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NormalizeDatabaseURL maps postgresql:// to postgres:// and defaults sslmode.
func NormalizeDatabaseURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		sep := "?"
		if strings.Contains(databaseURL, "?") {
			sep = "&"
		}
		databaseURL += sep + "sslmode=disable"
	}
	return databaseURL
}

// NewPostgresRepository connects through pgx's database/sql driver, waiting
// for the server to accept connections, and ensures the schema exists.
func NewPostgresRepository(ctx context.Context, databaseURL string, opts PostgresOptions) (*Repository, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	config, err := pgx.ParseConfig(NormalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config)
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt >= opts.MaxRetries {
			db.Close()
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		slog.WarnContext(ctx, "Database not ready, retrying",
			"component", "storage",
			"attempt", attempt,
			"max_attempts", opts.MaxRetries,
			"retry_in", opts.RetryDelay,
			"error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	repo := &Repository{db: db, dialect: dialectPostgres}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "Postgres repository ready", "component", "storage", "host", config.Host, "database", config.Database)
	return repo, nil
}

// EnsureSchema creates the transactions table if missing. It is idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.dialect != dialectPostgres {
		return fmt.Errorf("EnsureSchema: unsupported dialect %s, use RunMigrations", r.dialect)
	}
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
