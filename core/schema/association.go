package schema

import (
	"github.com/artpar/subroutine/core/convention"
)

// AssociationOptions declares how an association field is stored and resolved.
type AssociationOptions struct {
	// Polymorphic stores the target's runtime type in a type field.
	Polymorphic bool `yaml:"polymorphic,omitempty"`

	// As renames the association accessor. The key field keeps the declared name.
	As string `yaml:"as,omitempty"`

	// ClassName is the target entity type. Defaults to the camelized accessor name.
	ClassName string `yaml:"class_name,omitempty"`

	// ForeignKey is the key field name. Defaults to "<name>_id".
	ForeignKey string `yaml:"foreign_key,omitempty"`

	// ForeignKeyType is the caster tag for the key field. When empty the key is
	// typed from the target's find-by attribute if the entity types declare it,
	// and as an integer otherwise.
	ForeignKeyType string `yaml:"foreign_key_type,omitempty"`

	// FindBy is the target attribute matched against the key. Defaults to the
	// target's identity attribute.
	FindBy string `yaml:"find_by,omitempty"`

	// Unscoped bypasses the finder's default filtering.
	Unscoped bool `yaml:"unscoped,omitempty"`

	// Optional resolves a missing target to nil instead of failing.
	Optional bool `yaml:"optional,omitempty"`
}

// Association is the resolved configuration of an association field.
type Association struct {
	name string
	opts AssociationOptions
}

// Name returns the declared association name.
func (a *Association) Name() string { return a.name }

// Options returns the declared options.
func (a *Association) Options() AssociationOptions { return a.opts }

// Accessor returns the field name the association is read and written through.
func (a *Association) Accessor() string {
	if a.opts.As != "" {
		return a.opts.As
	}
	return a.name
}

// Polymorphic reports whether the target type is stored per instance.
func (a *Association) Polymorphic() bool { return a.opts.Polymorphic }

// ClassName returns the declared target type, if any.
func (a *Association) ClassName() string { return a.opts.ClassName }

// InferredType returns the declared or inferred target type name.
func (a *Association) InferredType() string {
	if a.opts.ClassName != "" {
		return a.opts.ClassName
	}
	return convention.Camelize(a.Accessor())
}

// ForeignKey returns the key field name.
func (a *Association) ForeignKey() string {
	if a.opts.ForeignKey != "" {
		return a.opts.ForeignKey
	}
	return convention.ForeignKey(a.name)
}

// ForeignType returns the type field name.
func (a *Association) ForeignType() string {
	return convention.ForeignType(a.ForeignKey())
}

// FindBy returns the declared find-by attribute, or "" for the identity.
func (a *Association) FindBy() string { return a.opts.FindBy }

// ForeignKeyType returns the declared key caster tag.
func (a *Association) ForeignKeyType() string { return a.opts.ForeignKeyType }

// Unscoped reports whether lookups bypass default filtering.
func (a *Association) Unscoped() bool { return a.opts.Unscoped }

// Optional reports whether a missing target resolves to nil.
func (a *Association) Optional() bool { return a.opts.Optional }

// Components returns the names of the fields that back the association.
func (a *Association) Components() []string {
	if a.opts.Polymorphic {
		return []string{a.ForeignKey(), a.ForeignType()}
	}
	return []string{a.ForeignKey()}
}

func (a *Association) validate() error {
	if a.opts.As != "" && a.opts.ForeignKey != "" {
		return configError("", a.name, "as and foreign_key options should not be provided together to an association")
	}
	return nil
}
