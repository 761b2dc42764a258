// Package backoff provides delay generators used to pace retries.
//
// A Func maps a 1-based attempt number to the delay to wait before the next
// attempt. Generators hold no cursor, so the same Func can be shared by any
// number of concurrent retry loops and restarts from attempt 1 on every call
// site. Retry and Within turn a Func into a go-retry Backoff for retry.Do.
package backoff

import (
	"math"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Func returns the delay to apply after the given attempt (1-based).
type Func func(attempt int) time.Duration

// Default is the delay sequence used when none is configured: 100ms, 200ms, 400ms, ...
var Default = Exponential(100*time.Millisecond, 2)

// Plain returns a generator that always yields d.
func Plain(d time.Duration) Func {
	return func(int) time.Duration { return d }
}

// Additive returns base + (attempt-1)*increment.
func Additive(base, increment time.Duration) Func {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base + time.Duration(attempt-1)*increment
	}
}

// Exponential returns base * factor^(attempt-1).
func Exponential(base time.Duration, factor float64) Func {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := float64(base) * math.Pow(factor, float64(attempt-1))
		if d >= math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)
	}
}

// Capped clamps every delay produced by f to max.
func Capped(f Func, max time.Duration) Func {
	return func(attempt int) time.Duration {
		if d := f(attempt); d < max {
			return d
		}
		return max
	}
}

// Retry returns a retry.Backoff yielding f(1), f(2), ... on successive calls.
// Every call to Retry starts a new sequence. Non-positive delays are reported
// as one nanosecond, since retry.WithMaxDuration reads zero as "wait for the
// rest of the budget".
func (f Func) Retry() retry.Backoff {
	var (
		mu      sync.Mutex
		attempt int
	)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		attempt++
		n := attempt
		mu.Unlock()
		if d := f(n); d > 0 {
			return d, false
		}
		return time.Nanosecond, false
	})
}

// Within returns a retry.Backoff following f that stops once timeout has
// elapsed since the call. Each delay is clamped to the time left.
func Within(f Func, timeout time.Duration) retry.Backoff {
	return retry.WithMaxDuration(timeout, f.Retry())
}
