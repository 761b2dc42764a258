package httpclient

import (
	"context"
	"log/slog"
)

// DecodeJSON turns the response body into a T. An absent response yields the
// zero T and no error.
func DecodeJSON[T any]() Middleware[*Response, T] {
	return func(ctx context.Context, rc *RequestContext, next Next[*Response]) (T, error) {
		var v T
		resp, err := next(ctx, rc)
		if err != nil || resp == nil {
			return v, err
		}
		if err := resp.JSON(&v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// LogCalls logs the outcome of every call at debug level, or at warn level
// when the call failed.
func LogCalls(l *slog.Logger) Middleware[*Response, *Response] {
	return func(ctx context.Context, rc *RequestContext, next Next[*Response]) (*Response, error) {
		resp, err := next(ctx, rc)
		attrs := []any{"method", rc.Method, "url", rc.URL, "attempts", rc.Attempt, "status", rc.Status(), "elapsed", rc.Elapsed()}
		if err != nil {
			l.WarnContext(ctx, "toolkit: http call failed", append(attrs, "error", err)...)
		} else {
			l.DebugContext(ctx, "toolkit: http call", attrs...)
		}
		return resp, err
	}
}
