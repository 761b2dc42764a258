// Package types holds small value types shared by toolkit packages.
package types

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// UnsetType marks a value that was never provided, as opposed to one set to
// its zero value or nil.
type UnsetType struct{}

func (UnsetType) String() string { return "<unset value>" }

// Unset is the only value of UnsetType.
var Unset UnsetType

// IsSet reports whether v is anything but Unset.
func IsSet(v any) bool {
	switch v.(type) {
	case UnsetType, *UnsetType:
		return false
	}
	return true
}

// Optional holds a T that may be absent. The zero value is absent.
type Optional[T any] struct {
	v  T
	ok bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{v: v, ok: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

func (o Optional[T]) String() string {
	if !o.ok {
		return Unset.String()
	}
	data, err := json.Marshal(o.v)
	if err != nil {
		return "<invalid value>"
	}
	return string(data)
}

// MarshalJSON encodes an absent value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

// UnmarshalJSON treats null as absent.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
