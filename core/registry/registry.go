// Package registry holds the named operations a runtime can execute and
// detects conflicting registrations.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/subroutine/core/auth"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/schema"
)

// Entry is a registered operation.
type Entry struct {
	Schema *schema.Schema

	// Build wraps a bound instance in its operation type. Nil registers a
	// data-only operation, which validates inputs and outputs and performs
	// nothing.
	Build op.Factory

	// Auth, when set, is attached to every instance with the caller's user.
	Auth *auth.Requirements

	// Hooks name functions the runtime calls around execution.
	Hooks schema.HookDefs

	// Source is the definition file of YAML-loaded entries.
	Source string
}

// Name returns the operation name.
func (e Entry) Name() string { return e.Schema.Name() }

// DataOnly reports whether the entry has no operation type.
func (e Entry) DataOnly() bool { return e.Build == nil }

// Registry manages registered operations.
type Registry struct {
	mu sync.RWMutex

	entries map[string]Entry
}

// New creates a new registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. It fails when the name is already taken.
func (r *Registry) Register(e Entry) error {
	if e.Schema == nil {
		return fmt.Errorf("register: entry has no schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[e.Name()]; ok {
		return &ConflictError{Conflicts: []Conflict{{Name: e.Name(), Existing: existing.Source, New: e.Source}}}
	}
	r.entries[e.Name()] = e
	return nil
}

// RegisterAll adds every entry, or none when any of them conflicts.
func (r *Registry) RegisterAll(entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conflicts := r.detectConflicts(entries); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	for _, e := range entries {
		r.entries[e.Name()] = e
	}
	return nil
}

// ReplaceDataOnly swaps every data-only entry for entries, leaving typed
// entries in place. Entries naming a typed operation conflict.
func (r *Registry) ReplaceDataOnly(entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make(map[string]Entry, len(r.entries))
	for name, e := range r.entries {
		if !e.DataOnly() {
			kept[name] = e
		}
	}

	old := r.entries
	r.entries = kept
	if conflicts := r.detectConflicts(entries); len(conflicts) > 0 {
		r.entries = old
		return &ConflictError{Conflicts: conflicts}
	}
	for _, e := range entries {
		r.entries[e.Name()] = e
	}
	return nil
}

// Unregister removes an operation.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("operation %q not registered", name)
	}
	delete(r.entries, name)
	return nil
}

// Get returns a registered operation by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// List returns all registered operations sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	return entries
}

// Schemas returns the schemas of every registered operation. Definitions
// may extend or copy fields from them.
func (r *Registry) Schemas() []*schema.Schema {
	entries := r.List()
	schemas := make([]*schema.Schema, len(entries))
	for i, e := range entries {
		schemas[i] = e.Schema
	}
	return schemas
}

// detectConflicts checks new entries without modifying the registry.
func (r *Registry) detectConflicts(entries []Entry) []Conflict {
	var conflicts []Conflict

	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if existing, ok := r.entries[e.Name()]; ok {
			conflicts = append(conflicts, Conflict{Name: e.Name(), Existing: existing.Source, New: e.Source})
			continue
		}
		if src, ok := seen[e.Name()]; ok {
			conflicts = append(conflicts, Conflict{Name: e.Name(), Existing: src, New: e.Source})
			continue
		}
		seen[e.Name()] = e.Source
	}

	return conflicts
}

// Conflict is two registrations of one operation name.
type Conflict struct {
	Name     string
	Existing string
	New      string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("operation %q registered by %s and %s", c.Name, sourceName(c.Existing), sourceName(c.New))
}

func sourceName(src string) string {
	if src == "" {
		return "code"
	}
	return src
}

// ConflictError represents one or more name conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("operation conflicts detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Conflicts) > 0
}
