package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"syscall"
	"time"

	"github.com/mirkobrombin/go-toolkit/v1/backoff"
)

// Policy decides what happens to an outcome no table mentions.
type Policy int

const (
	// Retry treats the outcome as transient.
	Retry Policy = iota
	// Raise fails the call immediately.
	Raise
)

func (p Policy) String() string {
	if p == Raise {
		return "raise"
	}
	return "retry"
}

// StatusSet is a set of HTTP status codes.
type StatusSet map[int]struct{}

// Statuses builds a StatusSet from codes.
func Statuses(codes ...int) StatusSet {
	s := make(StatusSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether code is in the set.
func (s StatusSet) Has(code int) bool {
	_, ok := s[code]
	return ok
}

// Matcher reports whether an error belongs to a class.
type Matcher func(err error) bool

// Is matches errors wrapping target.
func Is(target error) Matcher {
	return func(err error) bool { return errors.Is(err, target) }
}

// As matches errors whose chain contains a T.
func As[T error]() Matcher {
	return func(err error) bool {
		var t T
		return errors.As(err, &t)
	}
}

// Timeout matches network errors reporting a timeout.
func Timeout() Matcher {
	return func(err error) bool {
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	}
}

func matchAny(ms []Matcher, err error) bool {
	for _, m := range ms {
		if m(err) {
			return true
		}
	}
	return false
}

// ArgumentFunc builds the error returned when a classification table decides
// to fail. It receives the context of the failing call.
type ArgumentFunc func(rc *RequestContext) error

// StatusSettings classifies response status codes.
type StatusSettings struct {
	ToRaise       StatusSet
	ToRetry       StatusSet
	NotFoundAsNil bool
	Unspecified   Policy
	// ErrorFunc replaces the default *StatusError when set.
	ErrorFunc ArgumentFunc
}

// DefaultStatusSettings retries 403 and 429 and maps 404 to an absent value.
// 403 is also listed in ToRaise so that dropping it from ToRetry makes it fatal.
func DefaultStatusSettings() StatusSettings {
	return StatusSettings{
		ToRaise:       Statuses(http.StatusForbidden),
		ToRetry:       Statuses(http.StatusTooManyRequests, http.StatusForbidden),
		NotFoundAsNil: true,
		Unspecified:   Retry,
	}
}

// Clone returns a deep copy of s.
func (s StatusSettings) Clone() StatusSettings {
	s.ToRaise = maps.Clone(s.ToRaise)
	s.ToRetry = maps.Clone(s.ToRetry)
	return s
}

// WithRaise returns a copy raising on exactly codes.
func (s StatusSettings) WithRaise(codes ...int) StatusSettings {
	s = s.Clone()
	s.ToRaise = Statuses(codes...)
	return s
}

// WithRetry returns a copy retrying exactly codes.
func (s StatusSettings) WithRetry(codes ...int) StatusSettings {
	s = s.Clone()
	s.ToRetry = Statuses(codes...)
	return s
}

// WithNotFoundAsNil returns a copy with the 404 mapping toggled.
func (s StatusSettings) WithNotFoundAsNil(v bool) StatusSettings {
	s = s.Clone()
	s.NotFoundAsNil = v
	return s
}

// WithUnspecified returns a copy using p for unlisted error statuses.
func (s StatusSettings) WithUnspecified(p Policy) StatusSettings {
	s = s.Clone()
	s.Unspecified = p
	return s
}

// WithErrorFunc returns a copy building raised errors with fn.
func (s StatusSettings) WithErrorFunc(fn ArgumentFunc) StatusSettings {
	s = s.Clone()
	s.ErrorFunc = fn
	return s
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeRaise
	outcomeAbsent
)

func (o outcome) String() string {
	switch o {
	case outcomeRetry:
		return "retry"
	case outcomeRaise:
		return "raise"
	case outcomeAbsent:
		return "absent"
	default:
		return "success"
	}
}

// classify applies, in order: ToRetry, ToRaise, the 404 mapping, then
// Unspecified for any remaining status >= 400.
func (s StatusSettings) classify(code int) outcome {
	switch {
	case s.ToRetry.Has(code):
		return outcomeRetry
	case s.ToRaise.Has(code):
		return outcomeRaise
	case s.NotFoundAsNil && code == http.StatusNotFound:
		return outcomeAbsent
	case code >= 400:
		if s.Unspecified == Raise {
			return outcomeRaise
		}
		return outcomeRetry
	default:
		return outcomeSuccess
	}
}

// ExceptionSettings classifies transport errors.
type ExceptionSettings struct {
	ToRaise     []Matcher
	ToRetry     []Matcher
	Unspecified Policy
	// ErrorFunc replaces the default *TransportError when set.
	ErrorFunc ArgumentFunc
}

// DefaultExceptionSettings raises on certificate failures and retries
// timeouts, resets and truncated responses.
func DefaultExceptionSettings() ExceptionSettings {
	return ExceptionSettings{
		ToRaise: []Matcher{
			As[*tls.CertificateVerificationError](),
			As[x509.UnknownAuthorityError](),
			As[x509.HostnameError](),
		},
		ToRetry: []Matcher{
			Timeout(),
			Is(io.EOF),
			Is(io.ErrUnexpectedEOF),
			Is(syscall.ECONNRESET),
			Is(syscall.ECONNREFUSED),
		},
		Unspecified: Retry,
	}
}

// Clone returns a deep copy of s.
func (s ExceptionSettings) Clone() ExceptionSettings {
	s.ToRaise = slices.Clone(s.ToRaise)
	s.ToRetry = slices.Clone(s.ToRetry)
	return s
}

// WithRaise returns a copy raising on exactly ms.
func (s ExceptionSettings) WithRaise(ms ...Matcher) ExceptionSettings {
	s = s.Clone()
	s.ToRaise = slices.Clone(ms)
	return s
}

// WithRetry returns a copy retrying exactly ms.
func (s ExceptionSettings) WithRetry(ms ...Matcher) ExceptionSettings {
	s = s.Clone()
	s.ToRetry = slices.Clone(ms)
	return s
}

// WithUnspecified returns a copy using p for unlisted errors.
func (s ExceptionSettings) WithUnspecified(p Policy) ExceptionSettings {
	s = s.Clone()
	s.Unspecified = p
	return s
}

// WithErrorFunc returns a copy building raised errors with fn.
func (s ExceptionSettings) WithErrorFunc(fn ArgumentFunc) ExceptionSettings {
	s = s.Clone()
	s.ErrorFunc = fn
	return s
}

func (s ExceptionSettings) classify(err error) outcome {
	switch {
	case matchAny(s.ToRaise, err):
		return outcomeRaise
	case matchAny(s.ToRetry, err):
		return outcomeRetry
	case s.Unspecified == Raise:
		return outcomeRaise
	default:
		return outcomeRetry
	}
}

// MaximumBackoff caps the default delay between attempts.
const MaximumBackoff = 120 * time.Second

// Settings configures a Session. Derive variants with the With methods; they
// deep-copy nested settings so the receiver is never affected.
type Settings struct {
	Timeout        time.Duration
	Base           time.Duration
	Backoff        float64
	MaximumRetries int
	// Delay overrides the Base * Backoff^(attempt-1) sequence when set.
	Delay backoff.Func

	UserAgent    func() string
	Header       http.Header
	UseCookies   bool
	DisableTLS13 bool

	Status    StatusSettings
	Exception ExceptionSettings
}

// DefaultSettings returns a 5s per-attempt timeout, three retries and a
// 1s, 2s, 4s... delay sequence.
func DefaultSettings() Settings {
	return Settings{
		Timeout:        5 * time.Second,
		Base:           time.Second,
		Backoff:        2,
		MaximumRetries: 3,
		Status:         DefaultStatusSettings(),
		Exception:      DefaultExceptionSettings(),
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	s.Header = s.Header.Clone()
	s.Status = s.Status.Clone()
	s.Exception = s.Exception.Clone()
	return s
}

// WithTimeout returns a copy with a per-attempt timeout of d.
func (s Settings) WithTimeout(d time.Duration) Settings {
	s = s.Clone()
	s.Timeout = d
	return s
}

// WithRetries returns a copy allowing n retries after the first attempt.
func (s Settings) WithRetries(n int) Settings {
	s = s.Clone()
	s.MaximumRetries = n
	return s
}

// WithBackoff returns a copy delaying base * factor^(attempt-1) between attempts.
func (s Settings) WithBackoff(base time.Duration, factor float64) Settings {
	s = s.Clone()
	s.Base = base
	s.Backoff = factor
	s.Delay = nil
	return s
}

// WithDelay returns a copy pacing retries with f.
func (s Settings) WithDelay(f backoff.Func) Settings {
	s = s.Clone()
	s.Delay = f
	return s
}

// WithUserAgent returns a copy setting User-Agent from fn on every call.
func (s Settings) WithUserAgent(fn func() string) Settings {
	s = s.Clone()
	s.UserAgent = fn
	return s
}

// WithHeader returns a copy sending key: value on every call.
func (s Settings) WithHeader(key, value string) Settings {
	s = s.Clone()
	if s.Header == nil {
		s.Header = make(http.Header)
	}
	s.Header.Set(key, value)
	return s
}

// WithCookies returns a copy that keeps cookies set by responses.
func (s Settings) WithCookies(v bool) Settings {
	s = s.Clone()
	s.UseCookies = v
	return s
}

// WithStatus returns a copy using st for status classification.
func (s Settings) WithStatus(st StatusSettings) Settings {
	s = s.Clone()
	s.Status = st.Clone()
	return s
}

// WithException returns a copy using ex for error classification.
func (s Settings) WithException(ex ExceptionSettings) Settings {
	s = s.Clone()
	s.Exception = ex.Clone()
	return s
}

func (s Settings) delayFunc() backoff.Func {
	if s.Delay != nil {
		return s.Delay
	}
	return backoff.Capped(backoff.Exponential(s.Base, s.Backoff), MaximumBackoff)
}

func (s Settings) delay(attempt int) time.Duration {
	return s.delayFunc()(attempt)
}
