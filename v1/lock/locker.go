package lock

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-toolkit/v1/backoff"
	"github.com/mirkobrombin/go-toolkit/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-toolkit/v1/lock")

const defaultWaitTimeout = 60 * time.Second

// Locker is an immutable acquisition policy bound to a Store.
//
// The zero value is not usable; build one with New.
type Locker struct {
	store Store

	wait        bool
	waitBackoff backoff.Func
	waitTimeout time.Duration
	spin        int

	retryIfTaken bool
	signal       bool
	excArgs      []any
	errFunc      ErrorFunc

	now func() time.Time
}

// New returns a Locker that makes a single acquisition attempt, fails with a
// retryable Error when the key is taken and waits with backoff.Default once
// Wait is enabled.
func New(store Store) Locker {
	return Locker{
		store:        store,
		waitBackoff:  backoff.Default,
		waitTimeout:  defaultWaitTimeout,
		retryIfTaken: true,
		now:          time.Now,
	}
}

// NoWait disables the wait phase.
func (l Locker) NoWait() Locker {
	l.wait = false
	return l
}

// Wait enables the wait phase: attempts are repeated with delays from b until
// the lock is obtained or timeout elapses. A nil b selects backoff.Default.
func (l Locker) Wait(b backoff.Func, timeout time.Duration) Locker {
	if b == nil {
		b = backoff.Default
	}
	l.wait = true
	l.waitBackoff = b
	l.waitTimeout = timeout
	return l
}

// Spin sets the number of immediate attempts made before any other phase.
func (l Locker) Spin(attempts int) Locker {
	if attempts < 0 {
		attempts = 0
	}
	l.spin = attempts
	return l
}

// IfTaken sets the CanRetry flag reported when the key is held by another owner.
func (l Locker) IfTaken(retry bool) Locker {
	l.retryIfTaken = retry
	return l
}

// Signal makes contention and wait timeouts report non-acquisition with a nil
// Lease and a nil error instead of failing. Store failures still fail.
func (l Locker) Signal() Locker {
	l.signal = true
	return l
}

// Raise restores the default behaviour of failing when the lock is not obtained.
func (l Locker) Raise() Locker {
	l.signal = false
	return l
}

// Exc attaches extra arguments to every Error produced by this policy.
func (l Locker) Exc(args ...any) Locker {
	l.excArgs = slices.Clone(args)
	return l
}

// ErrorFunc sets the strategy used to build returned errors.
func (l Locker) ErrorFunc(fn ErrorFunc) Locker {
	l.errFunc = fn
	return l
}

// Acquire obtains a lease on key valid for ttl.
//
// Phases run in order: the spin phase when Spin was set, then the wait phase
// when Wait was set. With neither configured a single attempt is made.
//
// When the policy uses Signal, a nil Lease with a nil error means the key was
// taken.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	ctx, span := tracer.Start(ctx, "Locker.Acquire", trace.WithAttributes(
		attribute.String("toolkit.lock.key", key),
		attribute.Int("toolkit.lock.spin", l.spin),
		attribute.Bool("toolkit.lock.wait", l.wait),
	))
	defer span.End()

	token := uuid.NewString()
	err := l.acquire(ctx, key, token, ttl)
	if err == nil {
		metrics.LockAcquireCounter.WithLabelValues("acquired").Inc()
		span.SetAttributes(attribute.String("toolkit.lock.result", "acquired"))
		return &Lease{
			Key:        key,
			Token:      token,
			TTL:        ttl,
			AcquiredAt: l.now(),
			store:      l.store,
		}, nil
	}

	lerr := &Error{Key: key, Args: slices.Clone(l.excArgs), Err: err}
	switch {
	case errors.Is(err, ErrContention):
		metrics.LockAcquireCounter.WithLabelValues("taken").Inc()
		lerr.Msg = fmt.Sprintf("%s lock already acquired", key)
		lerr.CanRetry = l.retryIfTaken
	case errors.Is(err, ErrWaitTimeout):
		metrics.LockAcquireCounter.WithLabelValues("timeout").Inc()
		lerr.Msg = fmt.Sprintf("%s lock already acquired, timeout after %s", key, l.waitTimeout)
		lerr.CanRetry = true
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.LockAcquireCounter.WithLabelValues("error").Inc()
		lerr.Msg = fmt.Sprintf("%s lock acquisition cancelled", key)
	default:
		metrics.LockAcquireCounter.WithLabelValues("error").Inc()
		lerr.Msg = fmt.Sprintf("%s lock could not be acquired", key)
		lerr.Err = fmt.Errorf("%w: %w", ErrStore, err)
	}
	span.SetAttributes(attribute.String("toolkit.lock.result", lerr.Msg))

	if l.signal && (errors.Is(err, ErrContention) || errors.Is(err, ErrWaitTimeout)) {
		return nil, nil
	}
	span.SetStatus(codes.Error, lerr.Error())
	if l.errFunc != nil {
		return nil, l.errFunc(lerr)
	}
	return nil, lerr
}

// Do runs fn while holding a lease on key. The lease is released on every exit
// path of fn, including panics and cancellation of ctx.
//
// The boolean reports whether fn ran. It is false with a nil error only when
// the policy uses Signal and the key was taken.
func (l Locker) Do(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (ran bool, err error) {
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil || lease == nil {
		return false, err
	}
	defer func() {
		if _, rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return true, fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	if l.spin > 0 {
		ok, err := l.spinAcquire(ctx, key, token, ttl)
		if err != nil || ok {
			return err
		}
		if !l.wait {
			return ErrContention
		}
	}
	if l.wait {
		return l.waitAcquire(ctx, key, token, ttl)
	}
	ok, err := l.store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrContention
	}
	return nil
}

func (l Locker) spinAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	for i := 0; i < l.spin; i++ {
		ok, err := l.store.SetNX(ctx, key, token, ttl)
		if err != nil || ok {
			return ok, err
		}
		// yield so goroutines sharing this P are not starved
		runtime.Gosched()
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (l Locker) waitAcquire(ctx context.Context, key, token string, ttl time.Duration) error {
	err := retry.Do(ctx, backoff.Within(l.waitBackoff, l.waitTimeout), func(ctx context.Context) error {
		ok, err := l.store.SetNX(ctx, key, token, ttl)
		switch {
		case err != nil:
			return err
		case !ok:
			return retry.RetryableError(ErrContention)
		}
		return nil
	})
	if errors.Is(err, ErrContention) {
		return ErrWaitTimeout
	}
	return err
}

// Key joins parts with ":" to build a lock key. Values implementing
// fmt.Stringer are rendered through String.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}
