package apierr

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
)

// Frame is one call site recorded by Trace.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// TracedError is an error annotated with the call sites that led to it.
type TracedError struct {
	Err    error
	Frames []Frame
}

func (e *TracedError) Error() string {
	names := make([]string, len(e.Frames))
	for i, f := range e.Frames {
		names[i] = f.Function
	}
	return fmt.Sprintf("%v [%s]", e.Err, strings.Join(names, " <- "))
}

func (e *TracedError) Unwrap() error { return e.Err }

// Trace wraps err with up to depth frames, starting at the caller of Trace.
// A nil err stays nil and an already traced error is returned unchanged.
func Trace(err error, depth int) error {
	return trace(err, depth, 3)
}

func trace(err error, depth, skip int) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*TracedError); ok {
		return err
	}
	if depth <= 0 {
		depth = 1
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	te := &TracedError{Err: err}
	for {
		f, more := frames.Next()
		te.Frames = append(te.Frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more || len(te.Frames) == depth {
			break
		}
	}
	return te
}

// HandleOption configures Handle.
type HandleOption func(*handleOptions)

type handleOptions struct {
	depth  int
	logger *slog.Logger
}

// WithDepth sets how many frames the returned error records.
func WithDepth(n int) HandleOption {
	return func(o *handleOptions) {
		o.depth = n
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) HandleOption {
	return func(o *handleOptions) {
		o.logger = l
	}
}

// Handle wraps fn so that every failure is logged at error level and
// returned as a *TracedError recording the callers of the wrapped function.
func Handle[A, R any](fn func(context.Context, A) (R, error), opts ...HandleOption) func(context.Context, A) (R, error) {
	o := handleOptions{depth: 3}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default().Get("")
	}
	return func(ctx context.Context, arg A) (R, error) {
		res, err := fn(ctx, arg)
		if err != nil {
			o.logger.ErrorContext(ctx, "toolkit: call failed", "error", err)
			return res, trace(err, o.depth, 3)
		}
		return res, nil
	}
}
