package lock

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContention reports that the key was held by someone else.
	ErrContention = errors.New("lock already acquired")
	// ErrWaitTimeout reports that the wait phase ran out of time.
	ErrWaitTimeout = errors.New("lock wait timed out")
	// ErrStore wraps failures of the underlying store.
	ErrStore = errors.New("lock store failure")
	// ErrInvalidTTL is returned when a non-positive TTL is requested.
	ErrInvalidTTL = errors.New("lock: ttl must be positive")
)

// Error is returned when a lock could not be obtained.
//
// CanRetry is true when the failure came from contention, meaning the whole
// acquisition can safely be attempted again later. Store failures and
// cancellations are not retryable signals.
type Error struct {
	Key      string
	Msg      string
	Args     []any
	CanRetry bool
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	for _, a := range e.Args {
		b.WriteString("; ")
		fmt.Fprint(&b, a)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrContention) && !errors.Is(e.Err, ErrWaitTimeout) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorFunc builds the error returned to the caller from the default one.
// It lets callers map lock failures onto their own error types.
type ErrorFunc func(e *Error) error

// IsRetryable reports whether err is a lock Error flagged as retryable.
func IsRetryable(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.CanRetry
}
