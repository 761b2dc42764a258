package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// RequestContext is the per-call record shared by the retry loop and every
// middleware of one logical call. It is created once per call and updated on
// each attempt; it is never shared between calls.
type RequestContext struct {
	ID     string
	Method string
	URL    string
	Params url.Values
	Header http.Header
	Body   []byte
	// JSON, when set, is encoded as the request body on every attempt.
	JSON any

	Attempt     int
	MaxAttempts int

	Response  *Response
	LastError error
	Errors    []error

	StartedAt        time.Time
	FinishedAt       time.Time
	AttemptStartedAt time.Time

	// State is scratch space for middleware to hand data to later middleware.
	State map[string]any
}

func newRequestContext(id, method, rawURL string) *RequestContext {
	return &RequestContext{
		ID:     id,
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
		State:  make(map[string]any),
	}
}

// Elapsed returns the time spent on the call so far, or in total once it finished.
func (rc *RequestContext) Elapsed() time.Duration {
	if rc.StartedAt.IsZero() {
		return 0
	}
	if !rc.FinishedAt.IsZero() {
		return rc.FinishedAt.Sub(rc.StartedAt)
	}
	return time.Since(rc.StartedAt)
}

// AttemptElapsed returns the time spent on the current attempt.
func (rc *RequestContext) AttemptElapsed() time.Duration {
	if rc.AttemptStartedAt.IsZero() {
		return 0
	}
	return time.Since(rc.AttemptStartedAt)
}

// IsRetry reports whether the current attempt is not the first one.
func (rc *RequestContext) IsRetry() bool {
	return rc.Attempt > 1
}

// Status returns the status code of the last response, or 0.
func (rc *RequestContext) Status() int {
	if rc.Response == nil {
		return 0
	}
	return rc.Response.StatusCode
}

// MergeHeaders sets every header of h on the request.
func (rc *RequestContext) MergeHeaders(h http.Header) {
	for k, vs := range h {
		rc.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
}

// Set stores v under key in the scratch space.
func (rc *RequestContext) Set(key string, v any) {
	rc.State[key] = v
}

// Get returns the value stored under key.
func (rc *RequestContext) Get(key string) (any, bool) {
	v, ok := rc.State[key]
	return v, ok
}

func (rc *RequestContext) fail(err error) {
	rc.LastError = err
	rc.Errors = append(rc.Errors, err)
}
