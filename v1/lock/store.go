package lock

import (
	"context"
	"time"
)

// Store is the arbitration point shared by every process competing for a
// lock. Implementations must make both operations atomic.
type Store interface {
	// SetNX writes token under key with the given TTL only if key is absent.
	// It reports whether the write happened.
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only if its current value equals token.
	// It reports whether a deletion happened.
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
}
