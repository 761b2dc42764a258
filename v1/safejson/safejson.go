// Package safejson turns arbitrary values into JSON without failing on the
// parts JSON cannot express.
//
// Value rewrites a value into plain maps, slices and scalars: times become
// RFC 3339 strings, UUIDs and fmt.Stringer values their string form, byte
// slices UTF-8 text, structs a map of their exported fields. Values that
// have no JSON form, such as functions, channels or NaN, become null.
package safejson

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
)

// MaxDepth is how deep Value descends before printing the rest with fmt.
const MaxDepth = 10

// Value returns a JSON-safe rendition of v.
func Value(v any) any {
	return value(reflect.ValueOf(v), 0)
}

// Marshal encodes Value(v). Failures are logged before being returned.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(Value(v))
	if err != nil {
		logging.Default().Get("safejson").Error("toolkit: safe marshal failed", "type", fmt.Sprintf("%T", v), "error", err)
		return nil, err
	}
	return data, nil
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	uuidType      = reflect.TypeOf(uuid.UUID{})
	stringerType  = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	textType      = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	byteSliceType = reflect.TypeOf([]byte(nil))
)

func special(t reflect.Type) bool {
	return t.Implements(errorType) || t.Implements(textType) || t.Implements(stringerType)
}

func value(rv reflect.Value, depth int) any {
	if depth > MaxDepth && rv.IsValid() && rv.CanInterface() {
		return fmt.Sprint(rv.Interface())
	}
	// Dereference, unless only the pointer carries the formatting methods.
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer && special(rv.Type()) && !special(rv.Type().Elem()) {
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || !rv.CanInterface() {
		return nil
	}

	t := rv.Type()
	switch {
	case t == timeType:
		return rv.Interface().(time.Time).Format(time.RFC3339Nano)
	case t == uuidType:
		return rv.Interface().(uuid.UUID).String()
	case t.Implements(errorType):
		return rv.Interface().(error).Error()
	case t.Implements(textType):
		text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil
		}
		return string(text)
	case t.Implements(stringerType):
		return rv.Interface().(fmt.Stringer).String()
	case t == byteSliceType:
		return strings.ToValidUTF8(string(rv.Bytes()), "\uFFFD")
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = value(iter.Value(), depth+1)
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = value(rv.Index(i), depth+1)
		}
		return out
	case reflect.Struct:
		return structValue(rv, depth)
	default:
		return nil
	}
}

func structValue(rv reflect.Value, depth int) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty := f.Name, false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" && len(parts) == 1 {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && name == f.Name {
			for k, v := range structValue(fv, depth+1) {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
			continue
		}
		out[name] = value(fv, depth+1)
	}
	return out
}
