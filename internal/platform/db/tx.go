package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// WithTx begins a transaction and returns a context carrying it. Repositories
// pick the transaction up via ConnFromContext so multi-step operations commit
// or roll back atomically.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, txKey, tx), tx, nil
}

// ConnFromContext returns the transaction bound to the context, or nil when
// the caller is not inside WithTx.
func ConnFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// TxRunner runs a function inside a single transaction. Services depend on
// this rather than on the pool directly so tests can substitute a
// pass-through implementation.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx begins a transaction, runs fn with the transaction on the context, and
// commits on success. Any error from fn rolls the transaction back.
func (r *TxRunner) InTx(ctx context.Context, fn func(context.Context) error) error {
	txCtx, tx, err := WithTx(ctx, r.pool)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
