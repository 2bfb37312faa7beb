package schema

import "reflect"

// Cloner is implemented by default values that know how to copy themselves.
type Cloner interface {
	Clone() any
}

// deepCopy copies maps, slices, arrays and pointers to structs reachable from v.
// Other values are returned as they are.
func deepCopy(v any) any {
	if c, ok := v.(Cloner); ok {
		return c.Clone()
	}
	if v == nil {
		return nil
	}
	out := copyValue(reflect.ValueOf(v))
	if !out.IsValid() {
		return nil
	}
	return out.Interface()
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value(), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i), v.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i), v.Type().Elem()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(v.Elem())
		return out
	}
	return v
}

// copyElem copies a container element, unwrapping interface values so the
// dynamic value is copied and stored back as the container's element type.
func copyElem(v reflect.Value, elem reflect.Type) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(elem)
		}
		inner := copyValue(v.Elem())
		out := reflect.New(elem).Elem()
		out.Set(inner)
		return out
	}
	return copyValue(v)
}
