package op

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/params"
	"github.com/artpar/subroutine/core/schema"
)

// Accessor reads and writes one field as T. It honours the field's reader
// and writer switches.
type Accessor[T any] struct {
	field    string
	readable bool
	writable bool
}

// Bind returns the accessor of a declared field.
func Bind[T any](s *schema.Schema, name string) (Accessor[T], error) {
	f, ok := s.Field(name)
	if !ok {
		return Accessor[T]{}, errors.WithStack(&params.UnknownFieldError{Field: name})
	}
	return Accessor[T]{field: name, readable: f.Readable(), writable: f.Writable()}, nil
}

// MustBind is Bind for package-level declarations. It panics on error.
func MustBind[T any](s *schema.Schema, name string) Accessor[T] {
	a, err := Bind[T](s, name)
	if err != nil {
		panic(err)
	}
	return a
}

// Field returns the bound field name.
func (a Accessor[T]) Field() string { return a.field }

// Get returns the value of the field on o. A nil value yields the zero T.
// Associations are resolved.
func (a Accessor[T]) Get(ctx context.Context, o *Op) (T, error) {
	var zero T
	if !a.readable {
		return zero, errors.WithStack(&AccessorError{Field: a.field, Message: "reader is disabled"})
	}
	v, err := o.Value(ctx, a.field)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.WithStack(&AccessorError{
			Field:   a.field,
			Message: fmt.Sprintf("holds %T, not %s", v, reflect.TypeFor[T]()),
		})
	}
	return t, nil
}

// Set assigns the field on o and marks it provided.
func (a Accessor[T]) Set(o *Op, v T) error {
	if !a.writable {
		return errors.WithStack(&AccessorError{Field: a.field, Message: "writer is disabled"})
	}
	return o.Set(a.field, v)
}
