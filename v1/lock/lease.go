package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mirkobrombin/go-toolkit/v1/metrics"
)

// Lease is a time-bounded claim on a key obtained through Locker.Acquire.
type Lease struct {
	Key        string
	Token      string
	TTL        time.Duration
	AcquiredAt time.Time

	store Store

	mu       sync.Mutex
	done     bool
	released bool
}

// Release deletes the key if this lease still owns it. It reports whether a
// deletion happened: false means the lease had already expired and the key
// was either gone or taken over by another holder. Once the store answers,
// later calls return that answer; a store error is not kept, so the call can
// be repeated.
func (l *Lease) Release(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.released, nil
	}
	released, err := l.store.CompareAndDelete(ctx, l.Key, l.Token)
	if err != nil {
		metrics.LockReleaseCounter.WithLabelValues("error").Inc()
		return false, fmt.Errorf("lock: release %s: %w", l.Key, err)
	}
	l.done, l.released = true, released
	if released {
		metrics.LockReleaseCounter.WithLabelValues("released").Inc()
	} else {
		metrics.LockReleaseCounter.WithLabelValues("lost").Inc()
	}
	return released, nil
}

// Deadline returns the time at which the store drops the lease on its own.
func (l *Lease) Deadline() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}
