package schema

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/artpar/subroutine/core/expression"
	"github.com/artpar/subroutine/core/validation"
)

// Definition is an operation schema as written in YAML.
//
//	operation: business_signup
//	extends: base
//	fields:
//	  - { name: business_name, type: string, constraints: [{ type: presence }] }
//	  - { name: owner, association: { class_name: User } }
//	fields_from:
//	  - { schemas: [signup], except: [password] }
//	validations:
//	  - { field: vat_number, constraints: [{ type: presence }], if: 'country == "DE"' }
//	outputs:
//	  - { names: [created_user] }
//	  - { names: [invoice], required_if: "present(vat_number)" }
//	hooks:
//	  after: [send_welcome_email]
type Definition struct {
	Name                    string        `yaml:"operation"`
	Extends                 string        `yaml:"extends,omitempty"`
	Fields                  []FieldDef    `yaml:"fields,omitempty"`
	FieldsFrom              []FromDef     `yaml:"fields_from,omitempty"`
	Validations             []RuleDef     `yaml:"validations,omitempty"`
	Outputs                 []OutputDef   `yaml:"outputs,omitempty"`
	IgnoreErrors            []string      `yaml:"ignore_errors,omitempty"`
	Hooks                   HookDefs      `yaml:"hooks,omitempty"`
	IncludeDefaultsInParams *bool         `yaml:"include_defaults_in_params,omitempty"`
	InheritOptions          []string      `yaml:"inherit_options,omitempty"`
	source                  string
}

// Source returns the file the definition was read from, if any.
func (d Definition) Source() string { return d.source }

// FieldDef is one entry of a definition's field list. A non-nil Association
// declares an association named Name.
type FieldDef struct {
	Name        string              `yaml:"name"`
	Options     `yaml:",inline"`
	Association *AssociationOptions `yaml:"association,omitempty"`
}

// FromDef copies fields from other definitions.
type FromDef struct {
	Schemas     []string `yaml:"schemas"`
	FromOptions `yaml:",inline"`
}

// RuleDef is a validation rule applied only when its If condition holds.
type RuleDef struct {
	Field       string                  `yaml:"field"`
	Constraints []validation.Constraint `yaml:"constraints"`
	If          string                  `yaml:"if,omitempty"`
}

// OutputDef declares outputs sharing options. RequiredIf is a condition
// deciding at check time whether the outputs are required.
type OutputDef struct {
	Names         []string `yaml:"names"`
	RequiredIf    string   `yaml:"required_if,omitempty"`
	OutputOptions `yaml:",inline"`
}

// HookDefs name runtime functions called before and after execution.
type HookDefs struct {
	Before []string `yaml:"before,omitempty"`
	After  []string `yaml:"after,omitempty"`
}

// References returns the schema names the definition depends on.
func (d Definition) References() []string {
	var refs []string
	if d.Extends != "" {
		refs = append(refs, d.Extends)
	}
	for _, from := range d.FieldsFrom {
		for _, s := range from.Schemas {
			if !slices.Contains(refs, s) {
				refs = append(refs, s)
			}
		}
	}
	return refs
}

// ParseFile parses a definition from a YAML file.
func ParseFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "read file %s", path)
	}

	def, err := Parse(data)
	if err != nil {
		return Definition{}, errors.Wrap(err, path)
	}
	def.source = path
	return def, nil
}

// Parse parses a definition from YAML bytes.
func Parse(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, errors.Wrap(err, "parse yaml")
	}

	if err := Check(def); err != nil {
		return Definition{}, err
	}

	return def, nil
}

// ParseDir parses all definitions in dir, including subdirectories.
func ParseDir(dir string) ([]Definition, error) {
	var defs []Definition

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			defs = append(defs, sub...)
			continue
		}

		if !IsDefinitionFile(path) {
			continue
		}

		def, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return defs, nil
}

// IsDefinitionFile reports whether path has a YAML extension.
func IsDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Check validates a definition on its own, without resolving references.
func Check(def Definition) error {
	if def.Name == "" {
		return configError("", "", "operation name is required")
	}

	seen := make(map[string]bool)
	for i, f := range def.Fields {
		if f.Name == "" {
			return configError(def.Name, "", "fields[%d]: name is required", i)
		}
		if seen[f.Name] {
			return configError(def.Name, f.Name, "declared twice")
		}
		seen[f.Name] = true
		if f.Association != nil && f.Type != "" {
			return configError(def.Name, f.Name, "an association cannot declare a type; use foreign_key_type")
		}
	}

	for i, from := range def.FieldsFrom {
		if len(from.Schemas) == 0 {
			return configError(def.Name, "", "fields_from[%d]: schemas is required", i)
		}
		if len(from.Except) > 0 && len(from.Only) > 0 {
			return configError(def.Name, "", "fields_from[%d]: except and only are exclusive", i)
		}
	}

	for i, r := range def.Validations {
		if r.Field == "" {
			return configError(def.Name, "", "validations[%d]: field is required", i)
		}
		if r.If != "" {
			if err := expression.Default().Compile(r.If); err != nil {
				return configError(def.Name, r.Field, "validations[%d]: %v", i, err)
			}
		}
	}

	for i, out := range def.Outputs {
		if len(out.Names) == 0 {
			return configError(def.Name, "", "outputs[%d]: names is required", i)
		}
		if out.RequiredIf != "" {
			if err := expression.Default().Compile(out.RequiredIf); err != nil {
				return configError(def.Name, "", "outputs[%d]: %v", i, err)
			}
		}
		if out.TypeName != "" {
			if _, ok := OutputTypes[out.TypeName]; !ok {
				return configError(def.Name, "", "outputs[%d]: unknown type %q", i, out.TypeName)
			}
		}
	}

	return nil
}

// Compile builds schemas from definitions. Definitions may reference each
// other and any schema in known, in any order. The result holds every
// compiled schema together with known.
func Compile(defs []Definition, known ...*Schema) (map[string]*Schema, error) {
	out := make(map[string]*Schema, len(defs)+len(known))
	for _, s := range known {
		out[s.Name()] = s
	}

	pending := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if _, dup := pending[d.Name]; dup {
			return nil, configError(d.Name, "", "defined twice")
		}
		if _, dup := out[d.Name]; dup {
			return nil, configError(d.Name, "", "already declared")
		}
		pending[d.Name] = d
	}

	visiting := make(map[string]bool)
	var compile func(name string, from string) error
	compile = func(name, from string) error {
		if _, done := out[name]; done {
			return nil
		}
		def, ok := pending[name]
		if !ok {
			return configError(from, "", "references unknown schema %q", name)
		}
		if visiting[name] {
			return configError(name, "", "circular reference")
		}
		visiting[name] = true
		defer delete(visiting, name)

		for _, ref := range def.References() {
			if err := compile(ref, name); err != nil {
				return err
			}
		}

		s, err := build(def, out)
		if err != nil {
			return err
		}
		out[name] = s
		return nil
	}

	names := make([]string, 0, len(pending))
	for n := range pending {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		if err := compile(n, n); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func build(def Definition, resolved map[string]*Schema) (*Schema, error) {
	var b *Builder
	if def.Extends != "" {
		b = Extend(def.Name, resolved[def.Extends])
	} else {
		b = New(def.Name)
	}
	if def.InheritOptions != nil {
		b.InheritOptions(def.InheritOptions...)
	}

	for _, f := range def.Fields {
		if f.Association != nil {
			b.Association(f.Name, *f.Association, f.Options)
			continue
		}
		b.Field(f.Name, f.Options)
	}

	for _, from := range def.FieldsFrom {
		sources := make([]*Schema, len(from.Schemas))
		for i, n := range from.Schemas {
			sources[i] = resolved[n]
		}
		b.FieldsFrom(from.FromOptions, sources...)
	}

	// conditions read the schema being built
	var built *Schema

	for _, r := range def.Validations {
		rule := validation.Rule{Field: r.Field, Constraints: r.Constraints}
		if r.If != "" {
			rule.If = ruleCondition(r.If, func() *Schema { return built })
		}
		b.Validate(rule)
	}

	for _, o := range def.Outputs {
		opts := o.OutputOptions
		if o.RequiredIf != "" {
			opts.RequiredIf = outputCondition(o.RequiredIf, func() *Schema { return built })
		}
		b.Outputs(opts, o.Names...)
	}

	b.IgnoreErrors(def.IgnoreErrors...)
	if def.IncludeDefaultsInParams != nil {
		b.IncludeDefaultsInParams(*def.IncludeDefaultsInParams)
	}

	s, err := b.Build()
	if err != nil {
		return nil, err
	}
	built = s
	return s, nil
}
