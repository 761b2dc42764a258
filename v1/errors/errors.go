// Package errors holds sentinel errors shared across toolkit packages.
package errors

import "errors"

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotFound         = errors.New("not found")
)
