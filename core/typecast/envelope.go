package typecast

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Envelope is a transport wrapper around an untrusted input map, such as the
// parameters object produced by a request layer.
type Envelope interface {
	UnsafeMap() map[string]any
}

// Unwrap replaces every Envelope reachable from v with a plain map.
func Unwrap(v any) any {
	switch t := v.(type) {
	case Envelope:
		return unwrapMap(t.UnsafeMap())
	case map[string]any:
		return unwrapMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Unwrap(e)
		}
		return out
	}
	return v
}

func unwrapMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Unwrap(v)
	}
	return out
}

// Bag converts a raw input into a string-keyed input map, unwrapping envelopes.
func Bag(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case Envelope:
		return unwrapMap(t.UnsafeMap()), nil
	case map[string]any:
		return unwrapMap(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, errors.Errorf("unsupported input type %T", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = Unwrap(iter.Value().Interface())
	}
	return out, nil
}
