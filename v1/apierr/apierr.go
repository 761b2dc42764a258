// Package apierr defines errors that carry an HTTP status and a JSON body.
package apierr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
)

// HTTPError is an error with a status code and a detail for the client.
type HTTPError struct {
	StatusCode int
	Detail     string
	Headers    http.Header
}

// NewHTTPError returns an HTTPError whose detail defaults to the status text.
func NewHTTPError(status int, detail string) *HTTPError {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Detail: detail}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}

// ErrorSchema is the JSON body of an APIError.
type ErrorSchema struct {
	Code   string `json:"code,omitempty"`
	Phrase string `json:"phrase,omitempty"`
	Desc   string `json:"desc,omitempty"`
	Ctx    any    `json:"ctx,omitempty"`
}

// APIError is a client-facing error rendered as an ErrorSchema. A zero
// Status means 400.
type APIError struct {
	Status int
	Code   string
	Desc   string
	Ctx    any
}

func (e *APIError) status() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Schema returns the body sent to clients.
func (e *APIError) Schema() ErrorSchema {
	return ErrorSchema{Code: e.Code, Phrase: http.StatusText(e.status()), Desc: e.Desc, Ctx: e.Ctx}
}

// HTTP converts e to an HTTPError whose detail is the JSON schema.
func (e *APIError) HTTP() *HTTPError {
	data, err := json.Marshal(e.Schema())
	if err != nil {
		// Ctx did not encode; keep the rest of the schema.
		s := e.Schema()
		s.Ctx = fmt.Sprint(e.Ctx)
		data, _ = json.Marshal(s)
	}
	return &HTTPError{StatusCode: e.status(), Detail: string(data)}
}

func (e *APIError) Error() string {
	return e.HTTP().Error()
}

// Write sends err to w. An *APIError becomes its schema, an *HTTPError a
// {"detail": ...} object and anything else a bare 500.
func Write(w http.ResponseWriter, err error) {
	var (
		apiErr  *APIError
		httpErr *HTTPError
		status  = http.StatusInternalServerError
		body    any
	)
	switch {
	case errors.As(err, &apiErr):
		status, body = apiErr.status(), apiErr.Schema()
	case errors.As(err, &httpErr):
		status, body = httpErr.StatusCode, map[string]string{"detail": httpErr.Detail}
		for k, vs := range httpErr.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
	default:
		body = map[string]string{"detail": http.StatusText(status)}
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		slog.Warn("toolkit: encode error body", "error", mErr)
		data = []byte(`{"detail":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
