package settings

import "fmt"

// MissingError reports a required variable that is not set and has no
// default or factory.
type MissingError struct {
	Field string
	Env   string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("settings: required %s (field %s) is not set", e.Env, e.Field)
}

// ParseError reports a value that does not convert to the field type.
type ParseError struct {
	Field string
	Env   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("settings: %s=%q does not fit field %s: %v", e.Env, e.Value, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FactoryError reports a factory method that is missing or has the wrong shape.
type FactoryError struct {
	Field  string
	Method string
	Reason string
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("settings: factory %s for field %s: %s", e.Method, e.Field, e.Reason)
}

// FormatError reports an env name that is not UPPER_SNAKE_CASE while explicit
// format is enforced.
type FormatError struct {
	Field string
	Env   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("settings: %s (field %s) must be UPPER_SNAKE_CASE", e.Env, e.Field)
}

// TypeError reports a field kind the loader cannot fill. It is only returned
// in strict mode; otherwise such fields are skipped.
type TypeError struct {
	Field string
	Type  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("settings: field %s has unsupported type %s", e.Field, e.Type)
}
