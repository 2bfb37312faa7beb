package op

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/ports"
)

// Operation is a concrete operation: an *Op plus business logic.
type Operation interface {
	Base() *Op
	Perform(ctx context.Context) error
}

// Validatable operations run Validate after the schema rules and any
// registered validations. Validate records failures on the op's errors.
type Validatable interface {
	Validate(ctx context.Context) error
}

// Factory wraps a fresh *Op in its concrete operation.
type Factory func(o *Op) Operation

// Submit validates and performs x.
//
// Invalid input, a non-empty error list after perform, or a record-bearing
// error raised along the way fail the submission with the schema's failure
// error. The errors of any other record are folded into x's first. Errors
// that carry no record are returned unchanged. After a successful perform
// the declared outputs are checked.
func Submit(ctx context.Context, x Operation) error {
	o := x.Base()
	start := o.env.Clock.Now()
	err := o.submit(ctx, x)
	o.observe(ctx, ports.PhaseSubmit, start, err)
	return err
}

// TrySubmit is Submit reporting business failures as false. Errors that
// carry no record are still returned.
func TrySubmit(ctx context.Context, x Operation) (bool, error) {
	err := Submit(ctx, x)
	if err == nil {
		return true, nil
	}
	if _, ok := record.AsBearer(err); ok {
		return false, nil
	}
	return false, err
}

// SubmitNew builds an operation from inputs and submits it. Initializers are
// not accepted; build with New to use one.
func SubmitNew(ctx context.Context, env Env, s *schema.Schema, build Factory, inputs any, init ...func(*Op)) (Operation, error) {
	if len(init) > 0 {
		return nil, errors.WithStack(&UsageError{
			Message: "submit does not accept an initializer; construct the operation with New",
		})
	}
	o, err := New(env, s, inputs)
	if err != nil {
		return nil, err
	}
	x := build(o)
	return x, Submit(ctx, x)
}

func (o *Op) submit(ctx context.Context, x Operation) error {
	valid, err := o.runValidation(ctx, x)
	if err != nil {
		return o.absorb(err)
	}
	if !valid {
		return o.fail(nil)
	}

	if err := o.runPerform(ctx, x); err != nil {
		return o.absorb(err)
	}
	if !o.errs.Empty() {
		return o.fail(nil)
	}
	return o.ValidateOutputs()
}

func (o *Op) runValidation(ctx context.Context, x Operation) (bool, error) {
	start := o.env.Clock.Now()
	valid, err := o.validate(ctx, x)
	if err == nil && !valid {
		o.observeOutcome(ctx, ports.PhaseValidate, start, ports.OutcomeFailure, nil)
	} else {
		o.observe(ctx, ports.PhaseValidate, start, err)
	}
	return valid, err
}

func (o *Op) validate(ctx context.Context, x Operation) (bool, error) {
	if _, err := o.env.Validator.Validate(ctx, o, o.schema.Rules()); err != nil {
		return false, err
	}
	for _, fn := range o.validations {
		if err := fn(ctx); err != nil {
			return false, err
		}
	}
	if v, ok := x.(Validatable); ok {
		if err := v.Validate(ctx); err != nil {
			return false, err
		}
	}
	return o.errs.Empty(), nil
}

func (o *Op) runPerform(ctx context.Context, x Operation) error {
	start := o.env.Clock.Now()
	err := x.Perform(ctx)
	if err == nil && !o.errs.Empty() {
		o.observeOutcome(ctx, ports.PhasePerform, start, ports.OutcomeFailure, nil)
	} else {
		o.observe(ctx, ports.PhasePerform, start, err)
	}
	return err
}

// absorb folds the record of a record-bearing error into o and returns the
// schema's failure. Other errors are returned unchanged.
func (o *Op) absorb(err error) error {
	b, ok := record.AsBearer(err)
	if !ok {
		return err
	}
	if rec := b.Record(); rec != nil && !o.isSelf(rec) {
		o.InheritErrors(rec, "")
	}
	return o.schema.Failure()(o, err)
}

func (o *Op) fail(cause error) error {
	return o.schema.Failure()(o, cause)
}

func (o *Op) isSelf(rec record.Record) bool {
	if b, ok := rec.(interface{ Base() *Op }); ok {
		return b.Base() == o
	}
	return false
}

// InheritErrors copies the errors of rec onto o. Each key, after prefixing,
// lands on the field of that name, else on the field it is an alias or
// mapped error name for, else on base as a full message. Ignored names are
// dropped.
func (o *Op) InheritErrors(rec record.Record, prefix string) {
	if rec == nil {
		return
	}
	src := rec.Errors()
	src.Each(func(field, message string) {
		name := prefix + field
		if o.schema.IgnoresError(field) || o.schema.IgnoresError(name) {
			return
		}

		switch {
		case field == record.Base || field == "":
			o.errs.AddBase(message)
		case o.schema.HasField(name):
			o.errs.Add(name, message)
		default:
			if target, ok := o.schema.ErrorAlias(name); ok {
				o.errs.Add(target, message)
				return
			}
			o.errs.AddBase(src.FullMessage(field, message))
		}
	})
}

func (o *Op) observe(ctx context.Context, phase ports.Phase, start time.Time, err error) {
	outcome := ports.OutcomeSuccess
	if err != nil {
		outcome = ports.OutcomeError
		if _, ok := record.AsBearer(err); ok {
			outcome = ports.OutcomeFailure
		}
	}
	o.observeOutcome(ctx, phase, start, outcome, err)
}

func (o *Op) observeOutcome(ctx context.Context, phase ports.Phase, start time.Time, outcome ports.Outcome, err error) {
	if o.env.Observer == nil {
		return
	}
	o.env.Observer.Observe(ctx, ports.Observation{
		Op:       o.schema.Name(),
		Phase:    phase,
		Outcome:  outcome,
		Duration: o.env.Clock.Now().Sub(start),
		Err:      err,
	})
}
