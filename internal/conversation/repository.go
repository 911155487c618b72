package conversation

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository abstracts persistence for conversation records.
//
// Contract:
//   - Get returns ErrNotFound when no record exists for the identity.
//   - Upsert succeeds whether or not a row already exists (insert-or-update).
//   - Delete is idempotent.
//   - Sweep bulk-deletes records idle longer than the cutoff and returns the count.
type Repository interface {
	Get(ctx context.Context, identity string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, identity string) error
	Sweep(ctx context.Context, olderThan time.Time) (int64, error)
}

// PostgresRepo stores records in a single conversation_records table.
//
// Schema:
//
//	CREATE TABLE conversation_records (
//	    identity         TEXT PRIMARY KEY,
//	    conversation_ref TEXT NOT NULL,
//	    last_agent       TEXT NOT NULL DEFAULT '',
//	    last_activity    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, identity string) (Record, error) {
	if identity == "" {
		return Record{}, ErrInvalidArgument
	}

	const q = `
		SELECT identity, conversation_ref, last_agent, last_activity
		FROM conversation_records
		WHERE identity = $1`

	var rec Record
	err := r.db.QueryRowContext(ctx, q, identity).Scan(
		&rec.Identity, &rec.ConversationRef, &rec.LastAgent, &rec.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, rec Record) error {
	if rec.Identity == "" || rec.ConversationRef == "" {
		return ErrInvalidArgument
	}

	const q = `
		INSERT INTO conversation_records (identity, conversation_ref, last_agent, last_activity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
			conversation_ref = EXCLUDED.conversation_ref,
			last_agent       = EXCLUDED.last_agent,
			last_activity    = EXCLUDED.last_activity`

	_, err := r.db.ExecContext(ctx, q, rec.Identity, rec.ConversationRef, rec.LastAgent, rec.LastActivity.UTC())
	return err
}

func (r *PostgresRepo) Delete(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrInvalidArgument
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversation_records WHERE identity = $1`, identity)
	return err
}

func (r *PostgresRepo) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_records WHERE last_activity < $1`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
