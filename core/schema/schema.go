package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/validation"
)

// ConfigurationError reports schema misuse at definition time.
type ConfigurationError struct {
	Schema  string
	Field   string
	Message string
}

func configError(schema, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Schema: schema, Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("schema")
	if e.Schema != "" {
		b.WriteString(" " + e.Schema)
	}
	if e.Field != "" {
		b.WriteString(": field " + e.Field)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

// FailureFunc builds the error submission returns when an operation fails.
// The error should implement record.Bearer so callers can reach the record.
type FailureFunc func(rec record.Record, cause error) error

// DefaultFailure wraps rec in a *record.Failure.
func DefaultFailure(rec record.Record, cause error) error {
	return record.Wrap(rec, cause)
}

// Schema is the immutable field table of an operation type.
type Schema struct {
	name string

	fields  []*Field
	index   map[string]*Field
	outputs []*Output
	outIdx  map[string]*Output

	// static type names of non-polymorphic associations, by type field name
	staticTypes map[string]string

	errorMap        map[string]string
	ignoreErrors    map[string]bool
	rules           []validation.Rule
	failure         FailureFunc
	includeDefaults *bool
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []*Field { return slices.Clone(s.fields) }

// Field returns a field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// HasField reports whether name is declared.
func (s *Schema) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldNames returns the declared field names in declaration order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// FieldsInGroup returns the fields that belong to group.
func (s *Schema) FieldsInGroup(group string) []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.InGroup(group) {
			out = append(out, f)
		}
	}
	return out
}

// Groups returns every group declared by a field, in first-seen order.
func (s *Schema) Groups() []string {
	var out []string
	for _, f := range s.fields {
		for _, g := range f.opts.Groups {
			if !slices.Contains(out, g) {
				out = append(out, g)
			}
		}
	}
	return out
}

// Associations returns the association fields.
func (s *Schema) Associations() []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.behavior == BehaviorAssociation {
			out = append(out, f)
		}
	}
	return out
}

// StaticType returns the fixed type name exposed by the type field of a
// non-polymorphic association.
func (s *Schema) StaticType(field string) (string, bool) {
	t, ok := s.staticTypes[field]
	return t, ok
}

// Outputs returns the declared outputs in declaration order.
func (s *Schema) Outputs() []*Output { return slices.Clone(s.outputs) }

// Output returns an output by name.
func (s *Schema) Output(name string) (*Output, bool) {
	o, ok := s.outIdx[name]
	return o, ok
}

// ErrorAlias returns the field that errors keyed by alias are moved to.
func (s *Schema) ErrorAlias(alias string) (string, bool) {
	f, ok := s.errorMap[alias]
	return f, ok
}

// IgnoresError reports whether inherited errors keyed by name are dropped.
func (s *Schema) IgnoresError(name string) bool {
	return s.ignoreErrors[name]
}

// Rules returns the validation rules.
func (s *Schema) Rules() []validation.Rule { return slices.Clone(s.rules) }

// Failure returns the failure constructor.
func (s *Schema) Failure() FailureFunc {
	if s.failure == nil {
		return DefaultFailure
	}
	return s.failure
}

// IncludeDefaultsInParams returns the schema's override of the engine-wide
// switch, and whether one is declared.
func (s *Schema) IncludeDefaultsInParams() (bool, bool) {
	if s.includeDefaults == nil {
		return false, false
	}
	return *s.includeDefaults, true
}

// FromOptions filters and groups fields copied with FieldsFrom.
type FromOptions struct {
	Except []string `yaml:"except,omitempty"`
	Only   []string `yaml:"only,omitempty"`
	Group  string   `yaml:"group,omitempty"`
}

// Builder declares a Schema. Builders are not safe for concurrent use.
// The first declaration error is kept and returned by Build.
type Builder struct {
	s           *Schema
	inheritable []string
	errs        []error
}

// New starts an empty schema.
func New(name string) *Builder {
	return &Builder{
		s: &Schema{
			name:         name,
			index:        make(map[string]*Field),
			outIdx:       make(map[string]*Output),
			staticTypes:  make(map[string]string),
			errorMap:     make(map[string]string),
			ignoreErrors: make(map[string]bool),
		},
		inheritable: DefaultInheritableOptions,
	}
}

// Extend starts a schema that inherits everything declared on parent.
// The parent is never modified by declarations on the child.
func Extend(name string, parent *Schema) *Builder {
	b := New(name)
	s := b.s
	s.fields = slices.Clone(parent.fields)
	s.index = maps.Clone(parent.index)
	s.outputs = slices.Clone(parent.outputs)
	s.outIdx = maps.Clone(parent.outIdx)
	s.staticTypes = maps.Clone(parent.staticTypes)
	s.errorMap = maps.Clone(parent.errorMap)
	s.ignoreErrors = maps.Clone(parent.ignoreErrors)
	s.rules = slices.Clone(parent.rules)
	s.failure = parent.failure
	s.includeDefaults = parent.includeDefaults
	return b
}

// InheritOptions replaces the option names association components and
// copied fields inherit.
func (b *Builder) InheritOptions(names ...string) *Builder {
	b.inheritable = slices.Clone(names)
	return b
}

func (b *Builder) fail(err error) {
	if ce, ok := err.(*ConfigurationError); ok && ce.Schema == "" {
		ce.Schema = b.s.name
	}
	b.errs = append(b.errs, err)
}

// Field declares a plain field. Redeclaring a field replaces it in place.
func (b *Builder) Field(name string, opts Options) *Builder {
	if name == "" {
		b.fail(configError("", "", "field name is required"))
		return b
	}
	if err := checkGroups(name, opts.Groups); err != nil {
		b.fail(err)
		return b
	}
	b.put(newField(name, opts, BehaviorPlain, nil))
	return b
}

// Fields declares several fields with the same options.
func (b *Builder) Fields(opts Options, names ...string) *Builder {
	for _, n := range names {
		b.Field(n, opts)
	}
	return b
}

// Typed declares a field cast with tag.
func (b *Builder) Typed(tag, name string, opts ...Options) *Builder {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Type = tag
	return b.Field(name, o)
}

// String declares a string field.
func (b *Builder) String(name string, opts ...Options) *Builder { return b.Typed("string", name, opts...) }

// Integer declares an integer field.
func (b *Builder) Integer(name string, opts ...Options) *Builder {
	return b.Typed("integer", name, opts...)
}

// Number declares a float field.
func (b *Builder) Number(name string, opts ...Options) *Builder { return b.Typed("number", name, opts...) }

// Decimal declares a decimal field.
func (b *Builder) Decimal(name string, opts ...Options) *Builder {
	return b.Typed("decimal", name, opts...)
}

// Boolean declares a boolean field.
func (b *Builder) Boolean(name string, opts ...Options) *Builder {
	return b.Typed("boolean", name, opts...)
}

// Date declares a date field.
func (b *Builder) Date(name string, opts ...Options) *Builder { return b.Typed("date", name, opts...) }

// Time declares a time field.
func (b *Builder) Time(name string, opts ...Options) *Builder { return b.Typed("time", name, opts...) }

// ISODate declares an ISO-8601 date string field.
func (b *Builder) ISODate(name string, opts ...Options) *Builder {
	return b.Typed("iso_date", name, opts...)
}

// ISOTime declares an ISO-8601 time string field.
func (b *Builder) ISOTime(name string, opts ...Options) *Builder {
	return b.Typed("iso_time", name, opts...)
}

// Hash declares a map field.
func (b *Builder) Hash(name string, opts ...Options) *Builder { return b.Typed("hash", name, opts...) }

// Array declares a list field.
func (b *Builder) Array(name string, opts ...Options) *Builder { return b.Typed("array", name, opts...) }

// File declares a file field.
func (b *Builder) File(name string, opts ...Options) *Builder { return b.Typed("file", name, opts...) }

// ForeignKey declares a standalone foreign key field.
func (b *Builder) ForeignKey(name string, opts ...Options) *Builder {
	return b.Typed("foreign_key", name, opts...)
}

// UUID declares a UUID field.
func (b *Builder) UUID(name string, opts ...Options) *Builder { return b.Typed("uuid", name, opts...) }

// Duration declares a duration field.
func (b *Builder) Duration(name string, opts ...Options) *Builder {
	return b.Typed("duration", name, opts...)
}

// Association declares an association field and its key and type fields.
// fieldOpts carries the field-level options (groups, mass assignment, aka).
func (b *Builder) Association(name string, opts AssociationOptions, fieldOpts ...Options) *Builder {
	var fo Options
	if len(fieldOpts) > 0 {
		fo = fieldOpts[0]
	}
	fo.Type = ""
	a := &Association{name: name, opts: opts}
	if err := a.validate(); err != nil {
		b.fail(err)
		return b
	}
	if err := checkGroups(a.Accessor(), fo.Groups); err != nil {
		b.fail(err)
		return b
	}

	owner := newField(a.Accessor(), fo, BehaviorAssociation, a)

	if a.Polymorphic() {
		typeOpts := owner.inherit(Options{Type: "string"}, b.inheritable)
		b.put(newField(a.ForeignType(), typeOpts, BehaviorAssociationComponent, a))
		delete(b.s.staticTypes, a.ForeignType())
	} else {
		b.s.staticTypes[a.ForeignType()] = a.InferredType()
	}

	keyOpts := owner.inherit(Options{Type: "foreign_key", ForeignKeyType: opts.ForeignKeyType}, b.inheritable)
	b.put(newField(a.ForeignKey(), keyOpts, BehaviorAssociationComponent, a))

	b.put(owner)
	return b
}

// FieldsFrom copies fields from other schemas. Except and Only name fields
// of the sources; naming an association also names its key and type fields.
// Excluding a key or type field excludes its whole association, while Only
// on a component copies it as a plain field. Group adds every copied field
// to that group.
func (b *Builder) FieldsFrom(opts FromOptions, sources ...*Schema) *Builder {
	if opts.Group != "" {
		if err := checkGroups("", []string{opts.Group}); err != nil {
			b.fail(err)
			return b
		}
	}

	for _, src := range sources {
		except := expandNames(src, opts.Except, true)
		only := expandNames(src, opts.Only, false)

		for _, f := range src.fields {
			if except != nil && except[f.name] {
				continue
			}
			if only != nil && !only[f.name] {
				continue
			}

			fo := f.Options()
			if opts.Group != "" && !slices.Contains(fo.Groups, opts.Group) {
				fo.Groups = append(fo.Groups, opts.Group)
			}

			switch f.behavior {
			case BehaviorAssociation:
				b.Association(f.assoc.name, f.assoc.opts, fo)
			case BehaviorAssociationComponent:
				owner := f.assoc.Accessor()
				if (except == nil || !except[owner]) && (only == nil || only[owner]) {
					// redeclared with its association
					continue
				}
				b.Field(f.name, fo)
			default:
				b.Field(f.name, fo)
			}
		}

		for _, o := range src.outputs {
			if _, exists := b.s.outIdx[o.name]; !exists {
				b.putOutput(o)
			}
		}
	}
	return b
}

// expandNames adds the components of every named association. With
// owners set, a named component also names its association.
func expandNames(src *Schema, names []string, owners bool) map[string]bool {
	if names == nil {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
		f, ok := src.index[n]
		if !ok {
			continue
		}
		switch {
		case f.behavior == BehaviorAssociation:
		case f.behavior == BehaviorAssociationComponent && owners:
			out[f.assoc.Accessor()] = true
		default:
			continue
		}
		for _, c := range f.assoc.Components() {
			out[c] = true
		}
	}
	return out
}

// Outputs declares outputs sharing opts.
func (b *Builder) Outputs(opts OutputOptions, names ...string) *Builder {
	if opts.Type == nil && opts.TypeName != "" {
		t, ok := OutputTypes[opts.TypeName]
		if !ok {
			b.fail(configError("", "", "unknown output type %q", opts.TypeName))
			return b
		}
		opts.Type = t
	}
	for _, n := range names {
		if n == "" {
			b.fail(configError("", "", "output name is required"))
			continue
		}
		b.putOutput(&Output{name: n, opts: opts})
	}
	return b
}

// Validates attaches constraints to a field.
func (b *Builder) Validates(field string, constraints ...validation.Constraint) *Builder {
	b.s.rules = append(b.s.rules, validation.Rule{Field: field, Constraints: constraints})
	return b
}

// Validate attaches a full validation rule.
func (b *Builder) Validate(rule validation.Rule) *Builder {
	b.s.rules = append(b.s.rules, rule)
	return b
}

// IgnoreErrors drops inherited errors keyed by any of names.
func (b *Builder) IgnoreErrors(names ...string) *Builder {
	for _, n := range names {
		b.s.ignoreErrors[n] = true
	}
	return b
}

// MapErrors moves inherited errors keyed by alias onto field.
func (b *Builder) MapErrors(alias, field string) *Builder {
	b.s.errorMap[alias] = field
	return b
}

// FailureWith replaces the failure constructor.
func (b *Builder) FailureWith(fn FailureFunc) *Builder {
	b.s.failure = fn
	return b
}

// IncludeDefaultsInParams overrides the engine-wide switch for this schema.
func (b *Builder) IncludeDefaultsInParams(include bool) *Builder {
	b.s.includeDefaults = &include
	return b
}

// Build returns the schema, or the declaration errors joined into one
// ConfigurationError.
func (b *Builder) Build() (*Schema, error) {
	if len(b.errs) == 1 {
		return nil, b.errs[0]
	}
	if len(b.errs) > 1 {
		msgs := make([]string, len(b.errs))
		for i, err := range b.errs {
			msgs[i] = err.Error()
		}
		return nil, configError(b.s.name, "", "%s", strings.Join(msgs, "; "))
	}

	s := *b.s
	s.fields = slices.Clone(b.s.fields)
	s.index = maps.Clone(b.s.index)
	s.outputs = slices.Clone(b.s.outputs)
	s.outIdx = maps.Clone(b.s.outIdx)
	s.staticTypes = maps.Clone(b.s.staticTypes)
	s.errorMap = maps.Clone(b.s.errorMap)
	s.ignoreErrors = maps.Clone(b.s.ignoreErrors)
	s.rules = slices.Clone(b.s.rules)
	return &s, nil
}

// MustBuild is Build for package-level declarations. It panics on error.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) put(f *Field) {
	if _, exists := b.s.index[f.name]; exists {
		for i, old := range b.s.fields {
			if old.name == f.name {
				b.s.fields[i] = f
				break
			}
		}
	} else {
		b.s.fields = append(b.s.fields, f)
	}
	b.s.index[f.name] = f

	for _, alias := range f.opts.Aka {
		b.s.errorMap[alias] = f.name
	}
	if len(f.opts.Constraints) > 0 {
		b.s.rules = append(b.s.rules, validation.Rule{Field: f.name, Constraints: f.opts.Constraints})
	}
	if f.behavior == BehaviorPlain {
		delete(b.s.staticTypes, f.name)
	}
}

func (b *Builder) putOutput(o *Output) {
	if _, exists := b.s.outIdx[o.name]; exists {
		for i, old := range b.s.outputs {
			if old.name == o.name {
				b.s.outputs[i] = o
				break
			}
		}
	} else {
		b.s.outputs = append(b.s.outputs, o)
	}
	b.s.outIdx[o.name] = o
}

func checkGroups(field string, groups []string) error {
	for _, g := range groups {
		if slices.Contains(ProtectedGroups, g) {
			return configError("", field, "cannot assign a field to protected group %q; protected groups are: %s",
				g, strings.Join(ProtectedGroups, ", "))
		}
	}
	return nil
}
