package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/talx-hub/gopher-billpay/internal/model"
)

type connectionPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type DB struct {
	pool connectionPool
	log  *slog.Logger
}

// txFunc is the body of a transaction; tx is only valid inside it.
type txFunc[T any] func(ctx context.Context, tx connectionPool) (T, error)

// retryBase scales the pause between database attempts.
var retryBase = model.DefaultDBRetryBase

// retryPause is the wait before retry n, counting from 1: 1x, 3x, 5x the base.
func retryPause(n int) time.Duration {
	return time.Duration(2*n-1) * retryBase
}

// withRetry runs query up to model.DefaultDBAttemptCount times while it
// fails with a connection-class error. Other errors are returned at once.
func withRetry[T any](ctx context.Context, query func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		res, err := query()
		switch {
		case err == nil:
			return res, nil
		case !isRetryableError(err):
			return zero, err
		case attempt == model.DefaultDBAttemptCount:
			return zero, fmt.Errorf("database unavailable after %d attempts: %w", attempt, err)
		}

		pause := time.NewTimer(retryPause(attempt))
		select {
		case <-pause.C:
		case <-ctx.Done():
			pause.Stop()
			return zero, errors.Join(ctx.Err(), err)
		}
	}
}

// inTx commits when f succeeds and rolls back otherwise.
func inTx[T any](ctx context.Context, d DB, f txFunc[T]) (res T, err error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin TX: %w", err)
	}
	defer func() {
		rbErr := tx.Rollback(ctx)
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			d.log.LogAttrs(ctx, slog.LevelError, "failed to rollback TX",
				slog.Any(model.KeyLoggerError, rbErr))
		}
	}()

	if res, err = f(ctx, tx); err != nil {
		var zero T
		return zero, err
	}
	if err = tx.Commit(ctx); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to commit TX: %w", err)
	}
	return res, nil
}

// retryTx is inTx under withRetry: a dropped connection replays the whole TX.
func retryTx[T any](ctx context.Context, d DB, f txFunc[T]) (T, error) {
	return withRetry(ctx, func() (T, error) {
		return inTx(ctx, d, f)
	})
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection,
		pgerrcode.TransactionResolutionUnknown:
		return true
	}
	return false
}
