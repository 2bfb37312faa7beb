package op

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/pkg/errors"
)

type lazyOutput struct {
	fn func() (any, error)
}

// failedOutput is a lazy output whose evaluation failed. Later reads
// return the same error without running the producer again.
type failedOutput struct {
	err error
}

// Output stores the value of a declared output. Lazy outputs take a
// func() any or func() (any, error), evaluated on first read.
func (o *Op) Output(name string, value any) error {
	spec, ok := o.schema.Output(name)
	if !ok {
		return errors.WithStack(&UnknownOutputError{Name: name})
	}
	if !spec.Lazy() {
		o.outputs[name] = value
		return nil
	}

	switch fn := value.(type) {
	case func() any:
		o.outputs[name] = lazyOutput{fn: func() (any, error) { return fn(), nil }}
	case func() (any, error):
		o.outputs[name] = lazyOutput{fn: fn}
	default:
		o.outputs[name] = value
	}
	return nil
}

// OutputFunc stores a producer for a lazy output.
func (o *Op) OutputFunc(name string, fn func() (any, error)) error {
	return o.Output(name, fn)
}

// GetOutput returns the value of an output, evaluating a lazy producer
// once and checking the result against the declared type. A failed
// evaluation returns the same error on every read.
func (o *Op) GetOutput(name string) (any, error) {
	spec, ok := o.schema.Output(name)
	if !ok {
		return nil, errors.WithStack(&UnknownOutputError{Name: name})
	}

	v, ok := o.outputs[name]
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case failedOutput:
		return nil, t.err
	case lazyOutput:
		v, err := t.fn()
		if err == nil && !spec.Accepts(v, spec.Required(o)) {
			err = errors.WithStack(&InvalidOutputTypeError{
				Name:     name,
				Expected: typeName(spec.Type()),
				Actual:   valueTypeName(v),
			})
		}
		if err != nil {
			o.outputs[name] = failedOutput{err: err}
			return nil, err
		}
		o.outputs[name] = v
		return v, nil
	}
	return v, nil
}

func pending(v any) bool {
	switch v.(type) {
	case lazyOutput, failedOutput:
		return true
	}
	return false
}

// Outputs returns the stored outputs. Lazy outputs not yet read, or whose
// evaluation failed, are omitted.
func (o *Op) Outputs() map[string]any {
	out := make(map[string]any, len(o.outputs))
	for k, v := range o.outputs {
		if !pending(v) {
			out[k] = v
		}
	}
	return out
}

// HasOutput reports whether an output was set.
func (o *Op) HasOutput(name string) bool {
	_, ok := o.outputs[name]
	return ok
}

// ValidateOutputs checks every declared output after a successful perform.
func (o *Op) ValidateOutputs() error {
	for _, spec := range o.schema.Outputs() {
		name := spec.Name()
		required := spec.Required(o)

		v, set := o.outputs[name]
		if !set {
			if required {
				return errors.WithStack(&OutputNotSetError{Name: name})
			}
			continue
		}
		if pending(v) {
			continue
		}
		if !spec.Accepts(v, required) {
			return errors.WithStack(&InvalidOutputTypeError{
				Name:     name,
				Expected: typeName(spec.Type()),
				Actual:   valueTypeName(v),
			})
		}
	}
	return nil
}

func (o *Op) outputsSnapshot() map[string]any {
	return maps.Clone(o.outputs)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "any"
	}
	return t.String()
}

func valueTypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
