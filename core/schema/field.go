package schema

import (
	"slices"

	"github.com/artpar/subroutine/core/typecast"
	"github.com/artpar/subroutine/core/validation"
)

// Reserved group names. They name store partitions and cannot be declared.
const (
	GroupAll      = "all"
	GroupOriginal = "original"
	GroupDefault  = "default"
)

// ProtectedGroups lists the group names a field may not join.
var ProtectedGroups = []string{GroupAll, GroupOriginal, GroupDefault}

// Inheritable option names. Association component fields copy these from
// their association, and fields_from copies them onto the target schema.
const (
	OptionMassAssignable = "mass_assignable"
	OptionFieldReader    = "field_reader"
	OptionFieldWriter    = "field_writer"
	OptionGroups         = "groups"
	OptionAka            = "aka"
)

// DefaultInheritableOptions is used by builders that do not override it.
var DefaultInheritableOptions = []string{
	OptionMassAssignable, OptionFieldReader, OptionFieldWriter, OptionGroups, OptionAka,
}

// Options declares one field.
type Options struct {
	// Type is a caster tag (see package typecast). Empty means no casting.
	Type string `yaml:"type,omitempty"`

	// Of is the element tag for array fields.
	Of string `yaml:"of,omitempty"`

	// Methods are number extraction methods (see typecast.Options).
	Methods []string `yaml:"methods,omitempty"`

	// ForeignKeyType is the tag foreign_key fields are cast with.
	ForeignKeyType string `yaml:"foreign_key_type,omitempty"`

	// Base64 decodes file fields.
	Base64 bool `yaml:"base64,omitempty"`

	// Precision is "high" to keep sub-second precision on time fields.
	Precision string `yaml:"precision,omitempty"`

	// Default is a literal default. Maps and slices are deep-copied per instance.
	Default any `yaml:"default,omitempty"`

	// DefaultFunc produces a fresh default per instance. It wins over Default.
	DefaultFunc func() any `yaml:"-"`

	// Groups are the named partitions the field belongs to.
	Groups []string `yaml:"groups,omitempty"`

	// MassAssignable false rejects the field in constructor input.
	MassAssignable *bool `yaml:"mass_assignable,omitempty"`

	// FieldReader and FieldWriter false disable the typed accessors.
	FieldReader *bool `yaml:"field_reader,omitempty"`
	FieldWriter *bool `yaml:"field_writer,omitempty"`

	// Aka names other records' fields whose errors belong to this field.
	Aka []string `yaml:"aka,omitempty"`

	// Constraints are validated on submission.
	Constraints []validation.Constraint `yaml:"constraints,omitempty"`
}

// Bool returns a pointer to b, for the tri-state options.
func Bool(b bool) *bool {
	return &b
}

// Behavior tags how a field is read and written.
type Behavior int

const (
	// BehaviorPlain is an ordinary cast field.
	BehaviorPlain Behavior = iota

	// BehaviorAssociation is a logical field backed by key/type component fields.
	BehaviorAssociation

	// BehaviorAssociationComponent is the key or type field of an association.
	BehaviorAssociationComponent
)

func (b Behavior) String() string {
	switch b {
	case BehaviorAssociation:
		return "association"
	case BehaviorAssociationComponent:
		return "association_component"
	default:
		return "plain"
	}
}

// Field is an immutable field declaration.
type Field struct {
	name     string
	opts     Options
	behavior Behavior
	assoc    *Association
}

func newField(name string, opts Options, behavior Behavior, assoc *Association) *Field {
	opts.Groups = dedupe(opts.Groups)
	opts.Aka = dedupe(opts.Aka)
	opts.Methods = slices.Clone(opts.Methods)
	opts.Constraints = slices.Clone(opts.Constraints)
	return &Field{name: name, opts: opts, behavior: behavior, assoc: assoc}
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Type returns the caster tag.
func (f *Field) Type() string { return f.opts.Type }

// Behavior returns the field's behavior tag.
func (f *Field) Behavior() Behavior { return f.behavior }

// Association returns the association this field is or belongs to, or nil.
func (f *Field) Association() *Association { return f.assoc }

// Options returns a copy of the declared options.
func (f *Field) Options() Options {
	o := f.opts
	o.Groups = slices.Clone(o.Groups)
	o.Aka = slices.Clone(o.Aka)
	o.Methods = slices.Clone(o.Methods)
	o.Constraints = slices.Clone(o.Constraints)
	return o
}

// Groups returns the field's groups.
func (f *Field) Groups() []string { return slices.Clone(f.opts.Groups) }

// InGroup reports whether the field belongs to group.
func (f *Field) InGroup(group string) bool { return slices.Contains(f.opts.Groups, group) }

// Aka returns the error aliases of the field.
func (f *Field) Aka() []string { return slices.Clone(f.opts.Aka) }

// MassAssignable reports whether constructor input may set the field.
func (f *Field) MassAssignable() bool { return f.opts.MassAssignable == nil || *f.opts.MassAssignable }

// Readable reports whether the typed reader is enabled.
func (f *Field) Readable() bool { return f.opts.FieldReader == nil || *f.opts.FieldReader }

// Writable reports whether the typed writer is enabled.
func (f *Field) Writable() bool { return f.opts.FieldWriter == nil || *f.opts.FieldWriter }

// HasDefault reports whether a default is declared.
func (f *Field) HasDefault() bool { return f.opts.DefaultFunc != nil || f.opts.Default != nil }

// Default returns a fresh default value. Producers are invoked and literal
// maps and slices are deep-copied, so callers may mutate the result.
func (f *Field) Default() (any, bool) {
	if f.opts.DefaultFunc != nil {
		return f.opts.DefaultFunc(), true
	}
	if f.opts.Default != nil {
		return deepCopy(f.opts.Default), true
	}
	return nil, false
}

// CastOptions returns the typecast options for the field.
func (f *Field) CastOptions() typecast.Options {
	return typecast.Options{
		Type:           f.opts.Type,
		Of:             f.opts.Of,
		Methods:        slices.Clone(f.opts.Methods),
		ForeignKeyType: f.opts.ForeignKeyType,
		Base64:         f.opts.Base64,
		Precision:      f.opts.Precision,
		Name:           f.name,
	}
}

// inherit copies the named inheritable options of f onto opts.
func (f *Field) inherit(opts Options, names []string) Options {
	for _, n := range names {
		switch n {
		case OptionMassAssignable:
			opts.MassAssignable = f.opts.MassAssignable
		case OptionFieldReader:
			opts.FieldReader = f.opts.FieldReader
		case OptionFieldWriter:
			opts.FieldWriter = f.opts.FieldWriter
		case OptionGroups:
			opts.Groups = slices.Clone(f.opts.Groups)
		case OptionAka:
			opts.Aka = slices.Clone(f.opts.Aka)
		}
	}
	return opts
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
