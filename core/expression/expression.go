// Package expression evaluates the boolean conditions written in operation
// definitions, such as output required_if and rule if clauses.
//
// Conditions are Expr programs (github.com/expr-lang/expr) evaluated over a
// map of field values. Unknown identifiers evaluate to nil.
package expression

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/typecast"
)

// Evaluator compiles and caches condition programs. It is safe for
// concurrent use.
type Evaluator struct {
	cache   map[string]*vm.Program
	cacheMu sync.RWMutex

	options []expr.Option
}

// New creates an evaluator with the condition helper functions.
func New() *Evaluator {
	e := &Evaluator{cache: make(map[string]*vm.Program)}

	e.options = []expr.Option{
		expr.AllowUndefinedVariables(),

		expr.Function("blank", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("blank requires 1 argument")
			}
			return typecast.IsBlank(params[0]), nil
		}),
		expr.Function("present", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("present requires 1 argument")
			}
			return !typecast.IsBlank(params[0]), nil
		}),
		expr.Function("truthy", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("truthy requires 1 argument")
			}
			return typecast.Truthy(params[0]), nil
		}),
		expr.Function("lower", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("lower requires 1 argument")
			}
			return strings.ToLower(toString(params[0])), nil
		}),
		expr.Function("upper", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("upper requires 1 argument")
			}
			return strings.ToUpper(toString(params[0])), nil
		}),
		expr.Function("trim", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("trim requires 1 argument")
			}
			return strings.TrimSpace(toString(params[0])), nil
		}),
		expr.Function("coalesce", func(params ...any) (any, error) {
			for _, p := range params {
				if p != nil && p != "" {
					return p, nil
				}
			}
			return nil, nil
		}),
	}

	return e
}

var (
	defaultOnce sync.Once
	defaultEval *Evaluator
)

// Default returns the shared evaluator.
func Default() *Evaluator {
	defaultOnce.Do(func() { defaultEval = New() })
	return defaultEval
}

// Compile checks that source is a valid condition.
func (e *Evaluator) Compile(source string) error {
	_, err := e.program(source)
	return err
}

// Bool evaluates source over env. A nil result is false; any other
// non-boolean result is an error.
func (e *Evaluator) Bool(source string, env map[string]any) (bool, error) {
	program, err := e.program(source)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, errors.Wrapf(err, "run condition %q", source)
	}
	switch v := out.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	}
	return false, errors.Errorf("condition %q returned %T, want bool", source, out)
}

func (e *Evaluator) program(source string) (*vm.Program, error) {
	e.cacheMu.RLock()
	program, ok := e.cache[source]
	e.cacheMu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(source, e.options...)
	if err != nil {
		return nil, errors.Wrapf(err, "compile condition %q", source)
	}

	e.cacheMu.Lock()
	e.cache[source] = program
	e.cacheMu.Unlock()
	return program, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}
