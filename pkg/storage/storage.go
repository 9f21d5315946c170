package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/richxcame/taxi-demand/pkg/config"
	"github.com/richxcame/taxi-demand/pkg/database"
	redisclient "github.com/richxcame/taxi-demand/pkg/redis"
)

// ErrNotFound is returned by Load when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore persists opaque byte blobs under string keys.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// Open builds the backend selected by cfg.Storage.Backend. The returned
// cleanup releases any connection the backend holds.
func Open(ctx context.Context, cfg *config.Config) (BlobStore, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return NewMemoryStore(), noop, nil

	case config.StorageFile, "":
		store, err := NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case config.StorageRedis:
		client, err := redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisStore(client, DefaultRedisPrefix), func() { _ = client.Close() }, nil

	case config.StoragePostgres:
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store := NewPostgresStore(db, cfg.Storage.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			database.Close(db)
			return nil, noop, err
		}
		return store, func() { database.Close(db) }, nil

	case config.StorageS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
