package cache

import (
	"context"
	"log/slog"
	"time"
)

// ResilientCache wraps a Cache and logs its failures instead of returning
// them: a failed Get is a miss, a failed Set or Invalidate is skipped.
type ResilientCache[T any] struct {
	inner  Cache[T]
	logger *slog.Logger
	onFail func(op string)
}

// NewResilient creates a new ResilientCache wrapper logging through l, or
// through slog.Default when l is nil.
func NewResilient[T any](inner Cache[T], l *slog.Logger) *ResilientCache[T] {
	if l == nil {
		l = slog.Default()
	}
	return &ResilientCache[T]{inner: inner, logger: l}
}

func (r *ResilientCache[T]) failed(ctx context.Context, op, key string, err error) {
	r.logger.WarnContext(ctx, "toolkit: cache "+op+" failed, continuing without cache", "key", key, "error", err)
	if r.onFail != nil {
		r.onFail(op)
	}
}

// Get implements Cache.Get.
func (r *ResilientCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	val, ok, err := r.inner.Get(ctx, key)
	if err != nil {
		r.failed(ctx, "get", key, err)
		var zero T
		return zero, false, nil
	}
	return val, ok, nil
}

// Set implements Cache.Set.
func (r *ResilientCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if err := r.inner.Set(ctx, key, value, ttl); err != nil {
		r.failed(ctx, "set", key, err)
	}
	return nil
}

// Invalidate implements Cache.Invalidate.
func (r *ResilientCache[T]) Invalidate(ctx context.Context, key string) error {
	if err := r.inner.Invalidate(ctx, key); err != nil {
		r.failed(ctx, "invalidate", key, err)
	}
	return nil
}
