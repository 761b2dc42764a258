// Package enum validates string enumerations declared as typed constants.
//
//	type Status string
//
//	const (
//		Active  Status = "ACTIVE"
//		Blocked Status = "BLOCKED"
//	)
//
//	var Statuses = enum.New(Active, Blocked)
//
//	s, err := Statuses.Validate(r.FormValue("status"), true)
package enum

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	// ErrRequired is returned by Validate for a nil value when one is required.
	ErrRequired = errors.New("enum: value is required")
	// ErrNotString is returned for values that are not string-like.
	ErrNotString = errors.New("enum: value must be a string or []byte")
	// ErrInvalid is returned for strings outside the set.
	ErrInvalid = errors.New("enum: invalid value")
)

// Set is the list of valid values of T.
type Set[T ~string] struct {
	values []T
	index  map[string]T
}

// New returns the set of values. Order is kept for Values.
func New[T ~string](values ...T) Set[T] {
	s := Set[T]{values: slices.Clone(values), index: make(map[string]T, len(values))}
	for _, v := range values {
		s.index[string(v)] = v
	}
	return s
}

// Values returns the members in declaration order.
func (s Set[T]) Values() []T {
	return slices.Clone(s.values)
}

// Contains reports whether v is a member.
func (s Set[T]) Contains(v T) bool {
	_, ok := s.index[string(v)]
	return ok
}

// Validate converts val, a string, []byte or string-kinded value, to a
// member. A nil val yields the zero T and false, or ErrRequired when
// required is set.
func (s Set[T]) Validate(val any, required bool) (T, bool, error) {
	var zero T
	if val == nil {
		if required {
			return zero, false, ErrRequired
		}
		return zero, false, nil
	}
	str, err := normalize(val)
	if err != nil {
		return zero, false, err
	}
	v, ok := s.index[str]
	if !ok {
		return zero, false, fmt.Errorf("%w: %q", ErrInvalid, str)
	}
	return v, true, nil
}

// Get returns the member matching val, or def when val is nil, not a string
// or not a member.
func (s Set[T]) Get(val any, def T) T {
	v, ok, err := s.Validate(val, false)
	if err != nil || !ok {
		return def
	}
	return v
}

func normalize(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("%w, got %T", ErrNotString, val)
}

// In reports whether v is one of candidates.
func In[T comparable](v T, candidates ...T) bool {
	return slices.Contains(candidates, v)
}

// Upper is the conventional value of a member called name.
func Upper(name string) string {
	return strings.ToUpper(name)
}
