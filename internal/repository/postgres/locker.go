package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"signet/internal/port"
)

type advisoryLocker struct {
	db *sqlx.DB
}

// NewDocumentLocker creates a DocumentLocker backed by transaction-scoped
// advisory locks, keyed by a hash of the document id. Repository calls made
// with the context passed to fn run on the lock's transaction, so a lock
// holder never needs a second pooled connection.
func NewDocumentLocker(db *sqlx.DB) port.DocumentLocker {
	return &advisoryLocker{db: db}
}

func (l *advisoryLocker) WithDocumentLock(ctx context.Context, docID uuid.UUID, fn func(ctx context.Context) error) error {
	if tx, ok := lockTx(ctx); ok {
		// Nested: take the second lock on the same transaction.
		if _, err := tx.ExecContext(ctx, advisoryLockQuery, docID.String()); err != nil {
			return fmt.Errorf("advisoryLocker.WithDocumentLock acquire: %w", err)
		}
		return fn(ctx)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("advisoryLocker.WithDocumentLock begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, advisoryLockQuery, docID.String()); err != nil {
		return fmt.Errorf("advisoryLocker.WithDocumentLock acquire: %w", err)
	}
	if err := fn(withLockTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("advisoryLocker.WithDocumentLock release: %w", err)
	}
	return nil
}

const advisoryLockQuery = "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"
