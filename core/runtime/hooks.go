package runtime

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/registry"
)

// HookHandler handles a hook event. An error from a before hook stops the
// execution; an error from an after hook is returned with the result.
type HookHandler func(ctx context.Context, event HookEvent) error

// HookEvent is passed to hooks.
type HookEvent struct {
	// Op is the operation name.
	Op string

	// Phase is "before" or "after".
	Phase string

	// Data is the input bag before execution and the outputs after.
	// Before hooks may modify it.
	Data map[string]any

	// Meta carries values from hooks back to the caller.
	Meta map[string]any
}

// hookTable holds the handlers registered in code, keyed by op and phase.
type hookTable map[hookKey][]HookHandler

type hookKey struct{ op, phase string }

// OnHook registers a hook handler for an operation, or AnyOp. Handlers
// for the operation run before those for AnyOp, each in registration
// order.
func (r *Runtime) OnHook(opName, phase string, handler HookHandler) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	k := hookKey{opName, phase}
	r.hooks[k] = append(r.hooks[k], handler)
}

// RegisterFunction registers a function definitions can name in hooks.
// Registering a name again replaces the function.
func (r *Runtime) RegisterFunction(name string, fn HookHandler) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.functions[name] = fn
}

// FunctionNames returns the registered function names, sorted.
func (r *Runtime) FunctionNames() []string {
	r.hookMu.RLock()
	defer r.hookMu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dispatch runs the code hooks of event, then the functions the entry's
// definition names for the phase. The first error stops the chain.
func (r *Runtime) dispatch(ctx context.Context, entry registry.Entry, event HookEvent) error {
	names := entry.Hooks.Before
	if event.Phase == PhaseAfter {
		names = entry.Hooks.After
	}

	r.hookMu.RLock()
	handlers := make([]HookHandler, 0, len(names)+2)
	handlers = append(handlers, r.hooks[hookKey{event.Op, event.Phase}]...)
	handlers = append(handlers, r.hooks[hookKey{AnyOp, event.Phase}]...)
	for _, name := range names {
		fn, ok := r.functions[name]
		if !ok {
			// definitions may load before code registers their functions
			r.logger.Warn().
				Str("function", name).
				Str("op", event.Op).
				Str("phase", event.Phase).
				Msg("called unregistered function (skipping)")
			continue
		}
		handlers = append(handlers, fn)
	}
	r.hookMu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// hookError names the phase of a failed hook.
func hookError(phase string, err error) error {
	return errors.Wrapf(err, "%s hook", phase)
}
