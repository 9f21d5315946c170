package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/richxcame/taxi-demand/pkg/resilience"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func retryConfig() resilience.RetryConfig {
	config := resilience.DefaultRetryConfig()
	config.InitialBackoff = 100 * time.Millisecond
	config.MaxBackoff = 2 * time.Second
	config.RetryableChecker = isPostgresRetryable
	return config
}

// RetryableExec executes a statement with retry logic for transient failures
func RetryableExec(ctx context.Context, db Execer, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := resilience.Retry(ctx, retryConfig(), "database.exec", func(ctx context.Context) error {
		var err error
		result, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// RetryableQueryRow runs a single-row query and scans it, retrying transient failures.
func RetryableQueryRow(ctx context.Context, db Querier, query string, args []interface{}, dest ...interface{}) error {
	return resilience.Retry(ctx, retryConfig(), "database.query_row", func(ctx context.Context) error {
		return db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
}

// isPostgresRetryable determines if a PostgreSQL error should be retried
func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	code := ""
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	}

	if code != "" {
		switch code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"53000", // insufficient_resources
			"53300", // too_many_connections
			"08000", "08003", "08006", // connection_exception
			"57P01", "57P02", "57P03": // shutdown / cannot_connect_now
			return true
		default:
			return false
		}
	}

	errMsg := strings.ToLower(err.Error())
	for _, msg := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"server closed",
		"unexpected eof",
		"bad connection",
	} {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	return false
}
