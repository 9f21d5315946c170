package storage

import (
	"context"
	"fmt"

	redisclient "github.com/richxcame/taxi-demand/pkg/redis"
	"github.com/richxcame/taxi-demand/pkg/tracing"
)

// DefaultRedisPrefix namespaces every key the service writes.
const DefaultRedisPrefix = "taxi-demand:"

// RedisStore keeps blobs as plain Redis strings without expiry.
type RedisStore struct {
	client redisclient.ClientInterface
	prefix string
}

// NewRedisStore wraps client; keys are stored as prefix+key.
func NewRedisStore(client redisclient.ClientInterface, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Load GETs prefix+key. A nil reply yields ErrNotFound.
func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := tracing.TraceRedisCommand(ctx, "storage", "get", r.prefix+key, func(ctx context.Context) error {
		var err error
		value, err = r.client.RetryableGet(ctx, r.prefix+key)
		return err
	})
	if redisclient.IsNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return []byte(value), nil
}

// Save SETs prefix+key with no expiry.
func (r *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	err := tracing.TraceRedisCommand(ctx, "storage", "set", r.prefix+key, func(ctx context.Context) error {
		return r.client.RetryableSet(ctx, r.prefix+key, string(value), 0)
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping sends PING to the Redis server.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
