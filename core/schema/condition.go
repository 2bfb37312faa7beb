package schema

import (
	"context"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/expression"
	"github.com/artpar/subroutine/core/validation"
)

// ConditionEnv returns the variables a definition condition is evaluated
// over: every non-association field of s by name, and provided(name).
func ConditionEnv(s *Schema, r Reader) map[string]any {
	env := make(map[string]any, len(s.fields)+1)
	for _, f := range s.fields {
		if f.behavior == BehaviorAssociation {
			continue
		}
		env[f.name] = r.Get(f.name)
	}
	env["provided"] = r.FieldProvided
	return env
}

func outputCondition(source string, schema func() *Schema) func(Reader) bool {
	return func(r Reader) bool {
		ok, err := expression.Default().Bool(source, ConditionEnv(schema(), r))
		// conditions are compiled when parsed; a run error means not required
		return err == nil && ok
	}
}

func ruleCondition(source string, schema func() *Schema) func(context.Context, validation.Target) (bool, error) {
	return func(_ context.Context, t validation.Target) (bool, error) {
		r, ok := t.(Reader)
		if !ok {
			return false, errors.Errorf("condition %q: %T cannot be read", source, t)
		}
		return expression.Default().Bool(source, ConditionEnv(schema(), r))
	}
}
