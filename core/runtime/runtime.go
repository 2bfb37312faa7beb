// Package runtime executes named operations for transports.
// It builds each instance from the registry, attaches authorization,
// runs hooks around submission and reports outputs and errors.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/core/auth"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/registry"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/typecast"
)

// Hook phases.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// AnyOp registers a hook for every operation.
const AnyOp = "*"

// Runtime is the execution environment for operations.
type Runtime struct {
	mu sync.RWMutex

	// registry holds the executable operations
	registry *registry.Registry

	// env is shared by every instance
	env op.Env

	hookMu sync.RWMutex
	hooks  hookTable

	// functions are the hook functions definitions call by name
	functions map[string]HookHandler

	logger zerolog.Logger
}

// Config configures the runtime.
type Config struct {
	// Env is the environment of every instance. It is prepared once.
	Env op.Env

	// Logger for the runtime and hooks.
	Logger zerolog.Logger
}

// Input is what a transport hands the runtime.
type Input struct {
	// Data is the untrusted input: nil, a map or a typecast.Envelope.
	Data any

	// User is the current user: nil, an entity or a user ID.
	User any

	// Channel names the transport (http, cli).
	Channel string

	// RequestID correlates log lines.
	RequestID string
}

// Result is the outcome of an execution.
type Result struct {
	Op       string
	Outputs  map[string]any
	Errors   map[string][]string
	Messages []string
	Meta     map[string]any
}

// NotFoundError is returned for unknown operation names.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation %q not found", e.Name)
}

// New creates a runtime.
func New(cfg Config) *Runtime {
	return &Runtime{
		registry:  registry.New(),
		env:       cfg.Env.Prepare(),
		hooks:     make(hookTable),
		functions: make(map[string]HookHandler),
		logger:    cfg.Logger,
	}
}

// Env returns the prepared environment.
func (r *Runtime) Env() op.Env { return r.env }

// Registry returns the operation registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Register adds an operation defined in code.
func (r *Runtime) Register(s *schema.Schema, build op.Factory, req *auth.Requirements) error {
	return r.registry.Register(registry.Entry{Schema: s, Build: build, Auth: req})
}

// LoadDefinitions compiles definitions against the registered schemas and
// registers each one as a data-only operation.
func (r *Runtime) LoadDefinitions(defs []schema.Definition) error {
	entries, err := r.compile(defs)
	if err != nil {
		return err
	}
	return r.registry.RegisterAll(entries)
}

// LoadDefinitionsFromDir loads every definition in dir.
func (r *Runtime) LoadDefinitionsFromDir(dir string) error {
	defs, err := schema.ParseDir(dir)
	if err != nil {
		return errors.Wrapf(err, "parse definitions from %q", dir)
	}
	return r.LoadDefinitions(defs)
}

// ReloadDefinitions replaces every data-only operation with the
// definitions in dir. On error the previous operations stay in place.
func (r *Runtime) ReloadDefinitions(dir string) error {
	defs, err := schema.ParseDir(dir)
	if err != nil {
		return errors.Wrapf(err, "parse definitions from %q", dir)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var typed []*schema.Schema
	for _, e := range r.registry.List() {
		if !e.DataOnly() {
			typed = append(typed, e.Schema)
		}
	}
	entries, err := r.compileAgainst(defs, typed)
	if err != nil {
		return err
	}
	if err := r.registry.ReplaceDataOnly(entries); err != nil {
		return err
	}

	r.logger.Info().Int("definitions", len(entries)).Str("dir", dir).Msg("definitions reloaded")
	return nil
}

func (r *Runtime) compile(defs []schema.Definition) ([]registry.Entry, error) {
	return r.compileAgainst(defs, r.registry.Schemas())
}

func (r *Runtime) compileAgainst(defs []schema.Definition, known []*schema.Schema) ([]registry.Entry, error) {
	inherit := r.env.Config.InheritableOptions()
	prepared := make([]schema.Definition, len(defs))
	for i, d := range defs {
		if d.InheritOptions == nil {
			d.InheritOptions = inherit
		}
		prepared[i] = d
	}

	schemas, err := schema.Compile(prepared, known...)
	if err != nil {
		return nil, err
	}

	entries := make([]registry.Entry, len(defs))
	for i, d := range prepared {
		entries[i] = registry.Entry{Schema: schemas[d.Name], Source: d.Source(), Hooks: d.Hooks}
	}
	return entries, nil
}

// Execute builds the named operation from input and submits it.
// A business failure returns the result with its errors and the failure.
func (r *Runtime) Execute(ctx context.Context, name string, input Input) (Result, error) {
	r.mu.RLock()
	entry, ok := r.registry.Get(name)
	r.mu.RUnlock()

	result := Result{Op: name, Meta: make(map[string]any)}
	if !ok {
		return result, &NotFoundError{Name: name}
	}

	bag, err := typecast.Bag(input.Data)
	if err != nil {
		return result, err
	}

	log := r.logger.With().Str("op", name).Str("channel", input.Channel).Str("request_id", input.RequestID).Logger()

	// Run before hooks
	if err := r.dispatch(ctx, entry, HookEvent{Op: name, Phase: PhaseBefore, Data: bag, Meta: result.Meta}); err != nil {
		return result, hookError(PhaseBefore, err)
	}

	x, o, err := r.build(entry, bag, input.User)
	if err != nil {
		return result, err
	}

	err = op.Submit(ctx, x)
	result.Outputs = o.Outputs()
	result.Errors = o.Errors().ToMap()
	result.Messages = o.Errors().FullMessages()
	if err != nil {
		if _, failed := record.AsBearer(err); failed {
			log.Debug().Strs("errors", result.Messages).Msg("operation failed")
		} else {
			log.Warn().Err(err).Msg("operation error")
		}
		return result, err
	}

	// Run after hooks
	if err := r.dispatch(ctx, entry, HookEvent{Op: name, Phase: PhaseAfter, Data: result.Outputs, Meta: result.Meta}); err != nil {
		return result, hookError(PhaseAfter, err)
	}

	log.Debug().Msg("operation succeeded")
	return result, nil
}

func (r *Runtime) build(entry registry.Entry, bag map[string]any, user any) (op.Operation, *op.Op, error) {
	o, err := op.New(r.env, entry.Schema, bag)
	if err != nil {
		return nil, nil, err
	}

	var x op.Operation = dataOnly{o}
	if entry.Build != nil {
		x = entry.Build(o)
	}

	if entry.Auth != nil {
		if _, err := auth.Attach(o, entry.Auth, user); err != nil {
			return nil, nil, err
		}
	}
	return x, o, nil
}

// dataOnly runs a definition without an operation type.
type dataOnly struct{ *op.Op }

func (dataOnly) Perform(context.Context) error { return nil }
