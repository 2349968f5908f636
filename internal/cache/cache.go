// Package cache is the best-effort read accelerator in front of the note
// store. It is never authoritative: a miss falls back to the repository, a
// failed set or invalidation is logged and swallowed, and TTL expiry bounds
// how long any stale entry can survive.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key with the given prefix; used for the
	// per-user search result keyspace, which is unbounded.
	DeletePrefix(ctx context.Context, prefix string) error
}
