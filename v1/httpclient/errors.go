package httpclient

import (
	"fmt"
)

// StatusError is returned when a response status is classified as fatal, and
// recorded for statuses classified as retryable.
type StatusError struct {
	Status  int
	Body    string
	Method  string
	URL     string
	Attempt int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("[%d] %s %s (attempt %d): %s", e.Status, e.Method, e.URL, e.Attempt, e.Body)
}

// TransportError wraps a transport failure classified as fatal.
type TransportError struct {
	Err     error
	Method  string
	URL     string
	Attempt int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("exception %T: (%v) attempt=%d; url=%s method=%s", e.Err, e.Err, e.Attempt, e.URL, e.Method)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetriesExhaustedError is returned when every attempt ended in a retryable
// outcome. Last holds the outcome of the final attempt.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
