package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"signet/internal/config"
)

const connectTimeout = 10 * time.Second

// NewDB opens the pgx-backed pool shared by the repositories and the
// advisory-lock locker, and verifies it with a ping.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

// querier is the part of sqlx.DB and sqlx.Tx the repositories run statements on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type lockTxKey struct{}

func withLockTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, lockTxKey{}, tx)
}

func lockTx(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(lockTxKey{}).(*sqlx.Tx)
	return tx, ok
}

// conn returns the transaction holding the document lock on ctx, or db.
// Statements under the lock must reuse its connection: a second pooled
// connection per lock holder starves the pool at MaxOpen.
func conn(ctx context.Context, db *sqlx.DB) querier {
	if tx, ok := lockTx(ctx); ok {
		return tx
	}
	return db
}

// inTx runs fn inside the lock transaction on ctx, or in a new one.
func inTx(ctx context.Context, db *sqlx.DB, op string, fn func(q querier) error) error {
	if tx, ok := lockTx(ctx); ok {
		return fn(tx)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", op, err)
	}
	return nil
}
