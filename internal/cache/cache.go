package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when a key is absent or its TTL elapsed.
// Callers branch on it with errors.Is; any other error means the backing
// store could not be reached.
var ErrKeyNotFound = errors.New("key not found")

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
	Ping(ctx context.Context) error
}
