// Package validation checks field values against declared constraints and
// records failures on the target's error list.
package validation

import (
	"context"

	"github.com/artpar/subroutine/core/record"
)

// Rule attaches constraints to one field.
type Rule struct {
	Field       string       `yaml:"field" json:"field"`
	Constraints []Constraint `yaml:"constraints" json:"constraints"`

	// If skips the rule when it returns false.
	If func(ctx context.Context, t Target) (bool, error) `yaml:"-" json:"-"`
}

// Target is what a validator inspects.
type Target interface {
	record.Record

	// Value returns the current value of a field, resolving it if needed.
	Value(ctx context.Context, field string) (any, error)
}

// Validator runs rules against a target.
type Validator struct{}

// New creates a new validator.
func New() *Validator {
	return &Validator{}
}

// Validate clears the target's errors, runs every rule, and reports whether
// the target is valid. Errors returned are failures to read a value, never
// validation failures.
func (v *Validator) Validate(ctx context.Context, t Target, rules []Rule) (bool, error) {
	errs := t.Errors()
	errs.Clear()

	for _, rule := range rules {
		if rule.If != nil {
			ok, err := rule.If(ctx, t)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}

		value, err := t.Value(ctx, rule.Field)
		if err != nil {
			return false, err
		}

		for _, c := range rule.Constraints {
			if ce := ValidateConstraint(rule.Field, value, c); ce != nil {
				errs.Add(ce.Field, ce.Message)
			}
		}
	}

	return errs.Empty(), nil
}

// ValidateField validates a single value against constraints.
func ValidateField(field string, value any, constraints ...Constraint) []ConstraintError {
	var out []ConstraintError
	for _, c := range constraints {
		if ce := ValidateConstraint(field, value, c); ce != nil {
			out = append(out, *ce)
		}
	}
	return out
}
