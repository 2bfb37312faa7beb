// Package op binds untrusted input to a schema and runs the operation it
// describes.
//
// An Op holds one instance's parameters, resolved associations, outputs
// and errors. Concrete operations embed *Op and implement Perform:
//
//	type Signup struct{ *op.Op }
//
//	func (s *Signup) Perform(ctx context.Context) error { ... }
//
//	o, err := op.New(env, signupSchema, input)
//	err = op.Submit(ctx, &Signup{o})
//
// An Op is not safe for concurrent use. Create one per input.
package op

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/params"
	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/typecast"
)

// Op is the state of one operation instance.
type Op struct {
	env    Env
	schema *schema.Schema
	store  *params.Store
	errs   record.Errors

	entities    map[string]entity.Entity
	outputs     map[string]any
	validations []func(ctx context.Context) error
}

// New binds inputs to s. Inputs may be nil, a map, or a typecast.Envelope.
// Each init function runs once the instance is fully set up.
func New(env Env, s *schema.Schema, inputs any, init ...func(*Op)) (*Op, error) {
	bag, err := typecast.Bag(inputs)
	if err != nil {
		return nil, err
	}

	env = env.withDefaults()
	include := env.Config.IncludeDefaultsInParams
	if v, ok := s.IncludeDefaultsInParams(); ok {
		include = v
	}

	o := &Op{
		env:      env,
		schema:   s,
		entities: make(map[string]entity.Entity),
		outputs:  make(map[string]any),
	}
	o.store = params.New(s, o.cast, include)

	if err := o.store.Setup(bag); err != nil {
		return nil, err
	}

	for _, f := range s.Associations() {
		raw, ok := bag[f.Name()]
		if !ok {
			continue
		}
		if err := o.setAssociation(f, raw, true); err != nil {
			return nil, err
		}
	}

	for _, fn := range init {
		if fn != nil {
			fn(o)
		}
	}
	return o, nil
}

// Base returns o. Embedding *Op gives concrete operations their Base method.
func (o *Op) Base() *Op { return o }

// Schema returns the operation's schema.
func (o *Op) Schema() *schema.Schema { return o.schema }

// Name returns the schema name.
func (o *Op) Name() string { return o.schema.Name() }

// Env returns the environment the operation was built with.
func (o *Op) Env() Env { return o.env }

// Errors implements record.Record.
func (o *Op) Errors() *record.Errors { return &o.errs }

// Get returns the value of a field: the provided value when the field was
// provided, otherwise its default. An association returns its entity only
// when it is already resolved; use Association to look it up. The type
// field of a non-polymorphic association returns the target type name.
func (o *Op) Get(name string) any {
	f, ok := o.schema.Field(name)
	if !ok {
		if t, ok := o.schema.StaticType(name); ok {
			return t
		}
		return nil
	}
	if f.Behavior() == schema.BehaviorAssociation {
		if e, ok := o.entities[name]; ok {
			return e
		}
		return nil
	}
	v, _ := o.store.Get(name)
	return v
}

// Value returns the value of a field, resolving associations.
// It implements validation.Target.
func (o *Op) Value(ctx context.Context, name string) (any, error) {
	f, ok := o.schema.Field(name)
	if ok && f.Behavior() == schema.BehaviorAssociation {
		e, err := o.Association(ctx, name)
		if err != nil || e == nil {
			return nil, err
		}
		return e, nil
	}
	return o.Get(name), nil
}

// Set assigns a field and marks it provided. Associations take an
// entity.Entity or nil.
func (o *Op) Set(name string, value any) error {
	return o.set(name, value, true)
}

// SetDefault replaces the default of a field without marking it provided.
func (o *Op) SetDefault(name string, value any) error {
	return o.set(name, value, false)
}

func (o *Op) set(name string, value any, provided bool) error {
	f, ok := o.schema.Field(name)
	if !ok {
		return errors.WithStack(&params.UnknownFieldError{Field: name})
	}

	switch f.Behavior() {
	case schema.BehaviorAssociation:
		return o.setAssociation(f, value, provided)
	case schema.BehaviorAssociationComponent:
		delete(o.entities, f.Association().Accessor())
	}
	return o.store.Set(name, value, provided)
}

// Clear removes the provided value of a field. Clearing an association
// clears its key and type fields.
func (o *Op) Clear(name string) {
	f, ok := o.schema.Field(name)
	if !ok {
		return
	}

	switch f.Behavior() {
	case schema.BehaviorAssociation:
		for _, c := range f.Association().Components() {
			o.store.Clear(c)
		}
		delete(o.entities, name)
	case schema.BehaviorAssociationComponent:
		o.store.Clear(name)
		delete(o.entities, f.Association().Accessor())
	default:
		o.store.Clear(name)
	}
}

// FieldProvided reports whether a field was given in the input or set
// since. An association is provided when its key, and its type when
// polymorphic, were provided.
func (o *Op) FieldProvided(name string) bool {
	f, ok := o.schema.Field(name)
	if !ok {
		return false
	}
	if f.Behavior() == schema.BehaviorAssociation {
		for _, c := range f.Association().Components() {
			if !o.store.Provided(c) {
				return false
			}
		}
		return true
	}
	return o.store.Provided(name)
}

// Params returns the provided values, merged over defaults when the schema
// or engine includes defaults in params.
func (o *Op) Params() map[string]any { return o.store.Params() }

// ProvidedParams returns the provided values only.
func (o *Op) ProvidedParams() map[string]any { return o.store.ProvidedParams() }

// ParamsWithDefaults returns the provided values merged over defaults.
func (o *Op) ParamsWithDefaults() map[string]any { return o.store.ParamsWithDefaults() }

// Defaults returns the default values.
func (o *Op) Defaults() map[string]any { return o.store.Defaults() }

// OriginalParams returns the input as given.
func (o *Op) OriginalParams() map[string]any { return o.store.Original() }

// GroupParams returns the values of a group's fields, like Params.
func (o *Op) GroupParams(group string) map[string]any { return o.store.GroupParams(group) }

// GroupDefaultParams returns the defaults of a group's fields.
func (o *Op) GroupDefaultParams(group string) map[string]any {
	return o.store.GroupDefaultParams(group)
}

// GroupParamsWithDefaults returns a group's provided values merged over
// its defaults.
func (o *Op) GroupParamsWithDefaults(group string) map[string]any {
	return o.store.GroupParamsWithDefaults(group)
}

// WithoutGroupParams returns Params without the fields of group.
func (o *Op) WithoutGroupParams(group string) map[string]any {
	return o.store.WithoutGroupParams(group)
}

// AddValidation registers a check run during validation, after the schema
// rules. Errors it returns abort submission unchanged.
func (o *Op) AddValidation(fn func(ctx context.Context) error) {
	o.validations = append(o.validations, fn)
}

func (o *Op) cast(f *schema.Field, value any) (any, error) {
	opts := f.CastOptions()
	if a := f.Association(); a != nil && opts.Type == "foreign_key" && opts.ForeignKeyType == "" {
		opts.ForeignKeyTypeFunc = func() string {
			if t := o.env.Types.AttributeType(o.targetType(a), a.FindBy()); t != "" {
				return t
			}
			return "integer"
		}
	}
	return o.env.Casters.Cast(value, opts)
}

func (o *Op) String() string {
	return fmt.Sprintf("%s%v", o.schema.Name(), o.store.Params())
}
