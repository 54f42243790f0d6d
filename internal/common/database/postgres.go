package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solar-funnel/internal/common/config"

	_ "github.com/lib/pq"
)

// answersSchema backs the postgres answer store: one row per session key, raw JSON text.
const answersSchema = `
CREATE TABLE IF NOT EXISTS session_answers (
	session_id  TEXT        NOT NULL,
	answer_key  TEXT        NOT NULL,
	value       TEXT        NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, answer_key)
)`

// PostgresClient holds the pool behind the postgres answer store.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the session_answers table when missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, answersSchema); err != nil {
		return fmt.Errorf("create session_answers: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
