package schema

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/subroutine/core/typecast"
)

// Reader is the read side of an operation, as seen by output predicates.
type Reader interface {
	Get(name string) any
	FieldProvided(name string) bool
}

// OutputOptions declares an output.
type OutputOptions struct {
	// Optional outputs may be left unset. Outputs are required by default.
	Optional bool `yaml:"optional,omitempty"`

	// RequiredIf decides at check time whether the output is required.
	// It overrides Optional when set.
	RequiredIf func(r Reader) bool `yaml:"-"`

	// Type is the type the value must be assignable to.
	Type reflect.Type `yaml:"-"`

	// TypeName names Type for YAML definitions (see OutputTypes).
	TypeName string `yaml:"type,omitempty"`

	// Lazy outputs hold a producer that is evaluated on first read.
	Lazy bool `yaml:"lazy,omitempty"`
}

// OutputTypes maps output type names usable in definitions to Go types.
var OutputTypes = map[string]reflect.Type{
	"string":   reflect.TypeFor[string](),
	"integer":  reflect.TypeFor[int64](),
	"number":   reflect.TypeFor[float64](),
	"decimal":  reflect.TypeFor[decimal.Decimal](),
	"boolean":  reflect.TypeFor[bool](),
	"time":     reflect.TypeFor[time.Time](),
	"date":     reflect.TypeFor[typecast.Date](),
	"hash":     reflect.TypeFor[map[string]any](),
	"array":    reflect.TypeFor[[]any](),
	"duration": reflect.TypeFor[time.Duration](),
}

// TypeOf returns the reflect.Type of T, for OutputOptions.Type.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Output is an immutable output declaration.
type Output struct {
	name string
	opts OutputOptions
}

// Name returns the output name.
func (o *Output) Name() string { return o.name }

// Lazy reports whether the output is evaluated on first read.
func (o *Output) Lazy() bool { return o.opts.Lazy }

// Type returns the expected type, or nil.
func (o *Output) Type() reflect.Type { return o.opts.Type }

// Required evaluates whether the output must be set.
func (o *Output) Required(r Reader) bool {
	if o.opts.RequiredIf != nil {
		return o.opts.RequiredIf(r)
	}
	return !o.opts.Optional
}

// StaticallyRequired reports the required flag without evaluating predicates.
func (o *Output) StaticallyRequired() bool {
	return o.opts.RequiredIf == nil && !o.opts.Optional
}

// Accepts reports whether v satisfies the declared type.
// A nil value is accepted only when required is false.
func (o *Output) Accepts(v any, required bool) bool {
	if o.opts.Type == nil {
		return true
	}
	if v == nil {
		return !required
	}
	return reflect.TypeOf(v).AssignableTo(o.opts.Type)
}
