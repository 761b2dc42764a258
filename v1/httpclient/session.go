package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
	"github.com/mirkobrombin/go-toolkit/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-toolkit/v1/httpclient")

// Next is the remainder of a middleware chain.
type Next[T any] func(ctx context.Context, rc *RequestContext) (T, error)

// Middleware wraps the rest of the chain. It may inspect or change rc before
// and after calling next, skip next entirely, or turn a T into an R.
type Middleware[T, R any] func(ctx context.Context, rc *RequestContext, next Next[T]) (R, error)

// Session issues HTTP calls through a middleware chain that ends in the retry
// loop. R is the result type produced by the outermost layer.
//
// Sessions are immutable: Use and the package level Use return new sessions
// sharing the underlying http.Client.
type Session[R any] struct {
	settings Settings
	client   *http.Client
	logger   *slog.Logger

	responseMW []Middleware[*Response, *Response]
	wrap       func(Next[*Response]) Next[R]
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	client    *http.Client
	transport http.RoundTripper
	logger    *slog.Logger
}

// WithHTTPClient makes the session send through c instead of building its own
// client. Settings.Timeout and cookie handling are then left to c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *sessionOptions) {
		o.client = c
	}
}

// WithTransport sets the round tripper of the client built by the session.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *sessionOptions) {
		o.transport = rt
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// New returns a session producing *Response values. A nil response with a nil
// error means the server answered 404 and NotFoundAsNil is enabled.
func New(settings Settings, opts ...Option) (*Session[*Response], error) {
	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	settings = settings.Clone()
	if settings.MaximumRetries < 0 {
		settings.MaximumRetries = 0
	}

	client := o.client
	if client == nil {
		rt := o.transport
		if rt == nil {
			rt = newTransport(settings.DisableTLS13)
		}
		client = &http.Client{Transport: rt, Timeout: settings.Timeout}
		if settings.UseCookies {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, err
			}
			client.Jar = jar
		}
	}
	logger := o.logger
	if logger == nil {
		logger = logging.Default().Get("http.client_session")
	}
	logger.Debug("toolkit: http session initialized", "timeout", settings.Timeout, "retries", settings.MaximumRetries)

	return &Session[*Response]{
		settings: settings,
		client:   client,
		logger:   logger,
		wrap:     func(n Next[*Response]) Next[*Response] { return n },
	}, nil
}

func newTransport(disableTLS13 bool) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	maxVersion := uint16(tls.VersionTLS13)
	if disableTLS13 {
		maxVersion = tls.VersionTLS12
	}
	t.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: maxVersion,
	}
	return t
}

// Settings returns a copy of the session settings.
func (s *Session[R]) Settings() Settings {
	return s.settings.Clone()
}

// Use returns a session with mw appended to the response middleware. Response
// middleware run in registration order: the first one registered is the
// outermost, so its post-processing runs last.
func (s *Session[R]) Use(mw Middleware[*Response, *Response]) *Session[R] {
	n := *s
	n.responseMW = append(slices.Clone(s.responseMW), mw)
	return &n
}

// Use returns a session whose result is produced by mw from the result of s.
// mw wraps the whole chain of s, including response middleware registered
// on the new session later.
func Use[R, NR any](s *Session[R], mw Middleware[R, NR]) *Session[NR] {
	inner := s.wrap
	return &Session[NR]{
		settings:   s.settings,
		client:     s.client,
		logger:     s.logger,
		responseMW: slices.Clone(s.responseMW),
		wrap: func(core Next[*Response]) Next[NR] {
			next := inner(core)
			return func(ctx context.Context, rc *RequestContext) (NR, error) {
				return mw(ctx, rc, next)
			}
		},
	}
}

// RequestOption customises a single call.
type RequestOption func(rc *RequestContext)

// WithRequestHeader sets a header for this call only.
func WithRequestHeader(key, value string) RequestOption {
	return func(rc *RequestContext) {
		rc.Header.Set(key, value)
	}
}

// WithParams adds query parameters.
func WithParams(params url.Values) RequestOption {
	return func(rc *RequestContext) {
		if rc.Params == nil {
			rc.Params = make(url.Values)
		}
		for k, vs := range params {
			rc.Params[k] = append(rc.Params[k], vs...)
		}
	}
}

// WithBody sends body with the given content type.
func WithBody(contentType string, body []byte) RequestOption {
	return func(rc *RequestContext) {
		rc.Body = body
		if contentType != "" {
			rc.Header.Set("Content-Type", contentType)
		}
	}
}

// WithJSON sends v encoded as JSON.
func WithJSON(v any) RequestOption {
	return func(rc *RequestContext) {
		rc.JSON = v
		rc.Header.Set("Content-Type", "application/json")
	}
}

// Get issues a GET request.
func (s *Session[R]) Get(ctx context.Context, url string, opts ...RequestOption) (R, error) {
	return s.Do(ctx, http.MethodGet, url, opts...)
}

// Post issues a POST request.
func (s *Session[R]) Post(ctx context.Context, url string, opts ...RequestOption) (R, error) {
	return s.Do(ctx, http.MethodPost, url, opts...)
}

// Put issues a PUT request.
func (s *Session[R]) Put(ctx context.Context, url string, opts ...RequestOption) (R, error) {
	return s.Do(ctx, http.MethodPut, url, opts...)
}

// Patch issues a PATCH request.
func (s *Session[R]) Patch(ctx context.Context, url string, opts ...RequestOption) (R, error) {
	return s.Do(ctx, http.MethodPatch, url, opts...)
}

// Delete issues a DELETE request.
func (s *Session[R]) Delete(ctx context.Context, url string, opts ...RequestOption) (R, error) {
	return s.Do(ctx, http.MethodDelete, url, opts...)
}

// Do runs one logical call through the middleware chain and the retry loop.
func (s *Session[R]) Do(ctx context.Context, method, rawURL string, opts ...RequestOption) (R, error) {
	rc := newRequestContext(uuid.NewString(), method, rawURL)
	rc.MergeHeaders(s.settings.Header)
	if s.settings.UserAgent != nil {
		rc.Header.Set("User-Agent", s.settings.UserAgent())
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.MaxAttempts = s.settings.MaximumRetries + 1

	ctx, span := tracer.Start(ctx, "Session."+method, trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", rawURL),
		attribute.String("toolkit.http.request_id", rc.ID),
	))
	defer span.End()

	rc.StartedAt = time.Now()
	res, err := s.handler()(ctx, rc)
	rc.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.Int("toolkit.http.attempts", rc.Attempt),
		attribute.Int("http.response.status_code", rc.Status()),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Session[R]) handler() Next[R] {
	core := Next[*Response](s.dispatch)
	for i := len(s.responseMW) - 1; i >= 0; i-- {
		mw, next := s.responseMW[i], core
		core = func(ctx context.Context, rc *RequestContext) (*Response, error) {
			return mw(ctx, rc, next)
		}
	}
	return s.wrap(core)
}

// errAttemptFailed marks an attempt whose outcome asks for another one. The
// failure itself is recorded on the RequestContext.
var errAttemptFailed = errors.New("httpclient: attempt failed")

// dispatch is the retry loop at the end of every chain.
func (s *Session[R]) dispatch(ctx context.Context, rc *RequestContext) (*Response, error) {
	st, ex := s.settings.Status, s.settings.Exception
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	delays := s.settings.delayFunc().Retry()
	pace := retry.WithMaxRetries(uint64(rc.MaxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		d, _ := delays.Next()
		metrics.HTTPRetryCounter.WithLabelValues(rc.Method).Inc()
		s.logger.Debug("toolkit: http retry", "url", rc.URL, "method", rc.Method,
			"attempt", rc.Attempt, "delay", d, "error", rc.LastError)
		return d, false
	}))

	var result *Response
	err := retry.Do(ctx, pace, func(ctx context.Context) error {
		rc.Attempt++
		rc.AttemptStartedAt = time.Now()

		req, err := s.build(ctx, rc)
		if err != nil {
			return err
		}
		resp, err := s.roundTrip(req)
		if err != nil {
			rc.fail(err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.HTTPAttemptCounter.WithLabelValues(rc.Method, "error").Inc()
				return ctxErr
			}
			out := ex.classify(err)
			metrics.HTTPAttemptCounter.WithLabelValues(rc.Method, out.String()).Inc()
			if out == outcomeRaise {
				if ex.ErrorFunc != nil {
					return ex.ErrorFunc(rc)
				}
				return &TransportError{Err: err, Method: rc.Method, URL: rc.URL, Attempt: rc.Attempt}
			}
			return retry.RetryableError(errAttemptFailed)
		}

		rc.Response = resp
		out := st.classify(resp.StatusCode)
		metrics.HTTPAttemptCounter.WithLabelValues(rc.Method, out.String()).Inc()
		switch out {
		case outcomeSuccess:
			result = resp
			return nil
		case outcomeAbsent:
			return nil
		case outcomeRaise:
			serr := statusError(rc, resp)
			rc.fail(serr)
			if st.ErrorFunc != nil {
				return st.ErrorFunc(rc)
			}
			return serr
		default:
			rc.fail(statusError(rc, resp))
			return retry.RetryableError(errAttemptFailed)
		}
	})
	if errors.Is(err, errAttemptFailed) {
		return nil, &RetriesExhaustedError{Attempts: rc.Attempt, Last: rc.LastError}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func statusError(rc *RequestContext, resp *Response) *StatusError {
	return &StatusError{
		Status:  resp.StatusCode,
		Body:    resp.Text(),
		Method:  rc.Method,
		URL:     rc.URL,
		Attempt: rc.Attempt,
	}
}

// build creates the request for the current attempt. Its failures are caller
// errors and are never retried.
func (s *Session[R]) build(ctx context.Context, rc *RequestContext) (*http.Request, error) {
	u, err := url.Parse(rc.URL)
	if err != nil {
		return nil, err
	}
	if len(rc.Params) > 0 {
		q := u.Query()
		for k, vs := range rc.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	body := rc.Body
	if rc.JSON != nil {
		if body, err = json.Marshal(rc.JSON); err != nil {
			return nil, err
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, rc.Method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header = rc.Header.Clone()
	req.Header.Set("X-Request-Id", rc.ID)
	return req, nil
}

func (s *Session[R]) roundTrip(req *http.Request) (*Response, error) {
	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		URL:        req.URL.String(),
	}, nil
}

// IsAbsent reports whether a call returned the absent value: no response
// and no error.
func IsAbsent(resp *Response, err error) bool {
	return resp == nil && err == nil
}

var errNilSession = errors.New("httpclient: nil session")

// Must panics if err is not nil. It mirrors template.Must for session setup.
func Must[R any](s *Session[R], err error) *Session[R] {
	if err != nil {
		panic(err)
	}
	if s == nil {
		panic(errNilSession)
	}
	return s
}
