// Package cache defines the optional read-through cache seam for the
// registries' "as-of" query hot path (spec.md §6 persistence/cache seam
// note). It is narrow on purpose: a Store interface any backing store can
// satisfy, a generic ReadThrough wrapper that marshals values as JSON, and
// a concrete Redis-backed Store. None of this is wired into the default
// in-memory engines — it exists as an independently testable adapter, the
// same "pluggable persistence seam, not wired by default" posture as
// internal/persistence.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the minimal byte-oriented contract a cache backend must
// satisfy. Get reports ok=false on a miss, not an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReadThrough wraps a Store with JSON (de)serialization and a loader
// fallback: Get returns the cached value if present, otherwise calls
// loader, stores its result, and returns it.
type ReadThrough[T any] struct {
	store Store
	ttl   time.Duration
}

// NewReadThrough creates a ReadThrough cache over store with the given
// per-entry TTL.
func NewReadThrough[T any](store Store, ttl time.Duration) *ReadThrough[T] {
	return &ReadThrough[T]{store: store, ttl: ttl}
}

// Get returns the cached value for key, populating it via loader on a
// miss. A loader error is returned unchanged and nothing is cached.
func (c *ReadThrough[T]) Get(ctx context.Context, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, ok, err := c.store.Get(ctx, key)
	if err == nil && ok {
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return zero, err
	}

	if encoded, marshalErr := json.Marshal(value); marshalErr == nil {
		_ = c.store.Set(ctx, key, encoded, c.ttl)
	}
	return value, nil
}

// Invalidate removes key from the underlying store, for callers that
// mutate the source of truth and need the next Get to bypass the cache.
func (c *ReadThrough[T]) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
