// Package dict filters loosely typed maps such as decoded request bodies.
package dict

import (
	"reflect"

	"github.com/mirkobrombin/go-toolkit/v1/types"
)

// Filter returns the entries of m for which keep returns true.
func Filter[K comparable, V any](m map[K]V, keep func(K, V) bool) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		if keep(k, v) {
			out[k] = v
		}
	}
	return out
}

// Valid drops entries holding types.Unset.
func Valid[K comparable](m map[K]any) map[K]any {
	return Filter(m, func(_ K, v any) bool { return types.IsSet(v) })
}

// Unset keeps only the entries holding types.Unset.
func Unset[K comparable](m map[K]any) map[K]any {
	return Filter(m, func(_ K, v any) bool { return !types.IsSet(v) })
}

// NotNil drops nil entries, including typed nil pointers, maps, slices,
// funcs and channels.
func NotNil[K comparable](m map[K]any) map[K]any {
	return Filter(m, func(_ K, v any) bool { return !isNil(v) })
}

// Keys returns the keys of m in unspecified order.
func Keys[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
