package database

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// TxBeginner is satisfied by *pgxpool.Pool and pgxmock pools.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxFunc is a unit of work executed inside a transaction. It must be safe to
// re-run: the executor retries the whole unit on transient failures.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// TxExecutor runs a unit of work transactionally, retrying transient
// data-store failures with exponential backoff. Isolation is selected per
// call; the executor only guarantees the atomic boundary.
type TxExecutor struct {
	db         TxBeginner
	maxRetries int
	baseDelay  time.Duration
}

func NewTxExecutor(db TxBeginner) *TxExecutor {
	return &TxExecutor{
		db:         db,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultRetryDelay,
	}
}

// Run executes fn inside a transaction with the given options. Serialization
// failures, deadlocks and connection drops are retried up to the budget; the
// last error is re-raised once retries exhaust.
func (e *TxExecutor) Run(ctx context.Context, opts pgx.TxOptions, fn TxFunc) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)) * e.baseDelay
			log.Printf("transaction retry %d/%d after %v: %v", attempt, e.maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = e.runOnce(ctx, opts, fn)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (e *TxExecutor) runOnce(ctx context.Context, opts pgx.TxOptions, fn TxFunc) error {
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// IsTransient classifies data-store errors worth retrying: serialization
// failures (40001), deadlocks (40P01) and connection-class errors (08xxx).
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return true
		}
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "08" {
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}
