// Package cache defines the byte cache port used for workspace file reads.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value byte cache. Implementations may evict at will; a miss
// is never an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
