package service

import (
	"context"
	"errors"

	"github.com/bengkel-pos/api/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const maxSerializationRetries = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withRetry runs fn, which owns a whole transaction, again while it fails with
// a serialization failure or deadlock. The last failure is returned once the
// attempts are used up.
func withRetry[T any](ctx context.Context, log *logger.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxSerializationRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isSerializationFailure(err) {
			return zero, err
		}
		log.Warnw("retrying transaction", "op", op, "attempt", attempt+1, "error", err)
		lastErr = err
	}
	return zero, lastErr
}

// isSerializationFailure checks for a serialization failure or deadlock
// (pgconn error codes 40001 and 40P01).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func pgErrorCode(err error) (string, *pgconn.PgError) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr
	}
	return "", nil
}
