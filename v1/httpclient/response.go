package httpclient

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// Response is a fully read HTTP response. The body is buffered so that status
// classification, middleware and callers can all inspect it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
