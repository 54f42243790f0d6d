package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	selectAnswerSQL = `SELECT value FROM session_answers WHERE session_id = $1 AND answer_key = $2`
	lockKeySQL      = `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`
	lockAnswerSQL   = `SELECT value FROM session_answers WHERE session_id = $1 AND answer_key = $2 FOR UPDATE`
	upsertAnswerSQL = `INSERT INTO session_answers (session_id, answer_key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id, answer_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteAnswerSQL  = `DELETE FROM session_answers WHERE session_id = $1 AND answer_key = ANY($2)`
	deleteSessionSQL = `DELETE FROM session_answers WHERE session_id = $1`
)

// PostgresBackend stores answers in the session_answers table created by
// database.PostgresClient.EnsureSchema.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Load(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, selectAnswerSQL, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres load %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (b *PostgresBackend) Save(ctx context.Context, namespace, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx, upsertAnswerSQL, namespace, key, string(value)); err != nil {
		return fmt.Errorf("postgres save %s: %w", key, err)
	}
	return nil
}

// Update serialises writers of one key with a transaction-scoped advisory
// lock, so first writers of a missing row are ordered too.
func (b *PostgresBackend) Update(ctx context.Context, namespace, key string, fn UpdateFunc) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockKeySQL, namespace, key); err != nil {
		return fmt.Errorf("postgres lock key %s: %w", key, err)
	}

	var current string
	found := true
	err = tx.QueryRowContext(ctx, lockAnswerSQL, namespace, key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return fmt.Errorf("postgres lock %s: %w", key, err)
	}

	var raw []byte
	if found {
		raw = []byte(current)
	}
	next, err := fn(raw, found)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, upsertAnswerSQL, namespace, key, string(next)); err != nil {
		return fmt.Errorf("postgres upsert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, deleteAnswerSQL, namespace, pq.Array(keys)); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (b *PostgresBackend) DeleteAll(ctx context.Context, namespace string) error {
	if _, err := b.db.ExecContext(ctx, deleteSessionSQL, namespace); err != nil {
		return fmt.Errorf("postgres delete session: %w", err)
	}
	return nil
}
