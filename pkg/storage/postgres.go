package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/richxcame/taxi-demand/pkg/database"
	"github.com/richxcame/taxi-demand/pkg/tracing"
)

// DefaultTable is the table blobs live in unless configured otherwise.
const DefaultTable = "demand_blobs"

// PostgresStore keeps blobs as jsonb rows keyed by text.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the blob table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table)

	return tracing.TraceDBQuery(ctx, "storage", "create_table", query, func(ctx context.Context) error {
		_, err := database.RetryableExec(ctx, p.db, query)
		return err
	})
}

// Load selects the row for key. No row yields ErrNotFound.
func (p *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table)

	var value []byte
	err := tracing.TraceDBQuery(ctx, "storage", "select", query, func(ctx context.Context) error {
		return database.RetryableQueryRow(ctx, p.db, query, []interface{}{key}, &value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

// Save upserts value under key.
func (p *PostgresStore) Save(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, p.table)

	err := tracing.TraceDBQuery(ctx, "storage", "upsert", query, func(ctx context.Context) error {
		_, err := database.RetryableExec(ctx, p.db, query, key, string(value))
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Ping pings the underlying database.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
