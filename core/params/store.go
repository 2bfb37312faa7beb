// Package params holds the per-instance parameter partitions of an
// operation: the raw input, provided and default values, their named group
// views, and which fields were explicitly provided.
package params

import (
	"fmt"
	"maps"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/typecast"
)

// CastFunc casts a value for a field.
type CastFunc func(f *schema.Field, value any) (any, error)

// MassAssignmentError is returned when constructor input names a field that
// only accepts explicit assignment.
type MassAssignmentError struct {
	Field string
}

func (e *MassAssignmentError) Error() string {
	return fmt.Sprintf("`%s` is not mass assignable", e.Field)
}

// UnknownFieldError is returned for reads and writes of undeclared fields.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field `%s`", e.Field)
}

const (
	viewParams             = "params"
	viewParamsWithDefaults = "params_with_defaults"
	viewGroup              = "group:"
	viewGroupDefaults      = "group_defaults:"
	viewGroupWithDefaults  = "group_with_defaults:"
	viewWithoutGroup       = "without_group:"
)

// Store is the parameter state of one operation instance.
// It is not safe for concurrent use.
type Store struct {
	schema          *schema.Schema
	cast            CastFunc
	includeDefaults bool

	original   map[string]any
	provided   map[string]any
	defaults   map[string]any
	groups     map[string]map[string]any
	groupDefs  map[string]map[string]any
	provenance map[string]bool

	cache map[string]map[string]any
}

// New returns an empty store for s. When includeDefaults is true, Params and
// GroupParams merge defaults under provided values.
func New(s *schema.Schema, cast CastFunc, includeDefaults bool) *Store {
	if cast == nil {
		cast = func(_ *schema.Field, v any) (any, error) { return v, nil }
	}
	return &Store{
		schema:          s,
		cast:            cast,
		includeDefaults: includeDefaults,
		original:        map[string]any{},
		provided:        map[string]any{},
		defaults:        map[string]any{},
		groups:          map[string]map[string]any{},
		groupDefs:       map[string]map[string]any{},
		provenance:      map[string]bool{},
		cache:           map[string]map[string]any{},
	}
}

// Setup records inputs as the original partition and assigns every plain
// field in declaration order: provided when present in inputs, otherwise its
// default. Association fields are checked for mass assignment but left to
// the caller, which resolves them against the key fields.
func (s *Store) Setup(inputs map[string]any) error {
	s.original = maps.Clone(inputs)
	if s.original == nil {
		s.original = map[string]any{}
	}

	for _, f := range s.schema.Fields() {
		name := f.Name()
		raw, present := inputs[name]

		if present && !f.MassAssignable() {
			return errors.WithStack(&MassAssignmentError{Field: name})
		}
		if f.Behavior() == schema.BehaviorAssociation {
			continue
		}

		if present {
			if err := s.Set(name, raw, true); err != nil {
				return err
			}
			continue
		}

		def, ok := f.Default()
		if !ok {
			continue
		}
		v, err := s.cast(f, def)
		if err != nil {
			return qualify(err, fmt.Sprintf("Error for default `%s`", name))
		}
		s.write(f, v, false)
	}

	s.invalidate()
	return nil
}

// Set casts value for the named field and stores it. Provided values mark
// the field as provided; others replace its default.
func (s *Store) Set(name string, value any, provided bool) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return errors.WithStack(&UnknownFieldError{Field: name})
	}

	v, err := s.cast(f, value)
	if err != nil {
		return qualify(err, fmt.Sprintf("Error during assignment of field `%s`", name))
	}

	s.write(f, v, provided)
	s.invalidate()
	return nil
}

func (s *Store) write(f *schema.Field, v any, provided bool) {
	name := f.Name()
	if provided {
		s.provenance[name] = true
		s.provided[name] = v
		for _, g := range f.Groups() {
			partition(s.groups, g)[name] = v
		}
		return
	}

	s.defaults[name] = v
	for _, g := range f.Groups() {
		partition(s.groupDefs, g)[name] = v
	}
}

// Clear removes the provided value of a field from every partition it
// belongs to. The original input and the default are kept.
func (s *Store) Clear(name string) {
	f, ok := s.schema.Field(name)
	if !ok {
		return
	}
	delete(s.provided, name)
	for _, g := range f.Groups() {
		delete(s.groups[g], name)
	}
	s.invalidate()
}

// Get returns the provided value when the field was provided and the
// default otherwise.
func (s *Store) Get(name string) (any, bool) {
	if s.provenance[name] {
		v, ok := s.provided[name]
		return v, ok
	}
	v, ok := s.defaults[name]
	return v, ok
}

// Provided reports whether the field was supplied in the input or assigned
// afterwards. Reads never change it.
func (s *Store) Provided(name string) bool {
	return s.provenance[name]
}

// IncludesDefaults reports whether Params merges defaults.
func (s *Store) IncludesDefaults() bool {
	return s.includeDefaults
}

// Original returns the raw input, as given to Setup.
func (s *Store) Original() map[string]any {
	return maps.Clone(s.original)
}

// ProvidedParams returns the provided values only.
func (s *Store) ProvidedParams() map[string]any {
	return maps.Clone(s.provided)
}

// Defaults returns the default values.
func (s *Store) Defaults() map[string]any {
	return maps.Clone(s.defaults)
}

// Params returns the provided values, merged over the defaults when the
// store includes defaults.
func (s *Store) Params() map[string]any {
	if s.includeDefaults {
		return s.ParamsWithDefaults()
	}
	return s.view(viewParams, func() map[string]any { return maps.Clone(s.provided) })
}

// ParamsWithDefaults returns the provided values merged over the defaults.
func (s *Store) ParamsWithDefaults() map[string]any {
	return s.view(viewParamsWithDefaults, func() map[string]any {
		return merge(s.defaults, s.provided)
	})
}

// GroupParams returns the provided values of a group's fields, merged over
// their defaults when the store includes defaults.
func (s *Store) GroupParams(group string) map[string]any {
	if s.includeDefaults {
		return s.GroupParamsWithDefaults(group)
	}
	return s.view(viewGroup+group, func() map[string]any { return maps.Clone(s.groups[group]) })
}

// GroupDefaultParams returns the defaults of a group's fields.
func (s *Store) GroupDefaultParams(group string) map[string]any {
	return s.view(viewGroupDefaults+group, func() map[string]any { return maps.Clone(s.groupDefs[group]) })
}

// GroupParamsWithDefaults returns a group's provided values merged over its
// defaults.
func (s *Store) GroupParamsWithDefaults(group string) map[string]any {
	return s.view(viewGroupWithDefaults+group, func() map[string]any {
		return merge(s.groupDefs[group], s.groups[group])
	})
}

// WithoutGroupParams returns Params minus every field of group.
func (s *Store) WithoutGroupParams(group string) map[string]any {
	return s.view(viewWithoutGroup+group, func() map[string]any {
		out := s.Params()
		for _, f := range s.schema.FieldsInGroup(group) {
			delete(out, f.Name())
		}
		return out
	})
}

// view memoizes a derived map until the next write. Callers receive a copy.
func (s *Store) view(key string, build func() map[string]any) map[string]any {
	m, ok := s.cache[key]
	if !ok {
		m = build()
		if m == nil {
			m = map[string]any{}
		}
		s.cache[key] = m
	}
	return maps.Clone(m)
}

func (s *Store) invalidate() {
	clear(s.cache)
}

func partition(groups map[string]map[string]any, name string) map[string]any {
	p, ok := groups[name]
	if !ok {
		p = map[string]any{}
		groups[name] = p
	}
	return p
}

func merge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

func qualify(err error, prefix string) error {
	var ce *typecast.Error
	if errors.As(err, &ce) {
		return ce.Qualify(prefix + ": %s")
	}
	return errors.Wrap(err, prefix)
}
