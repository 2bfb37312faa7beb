package entity

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/convention"
)

// DefaultIdentity is the identity attribute of types that do not declare one.
const DefaultIdentity = "id"

// Type describes an entity type that associations may target.
type Type struct {
	Name string `yaml:"name"`

	// Parent makes Name a subtype of Parent for compatibility checks.
	Parent string `yaml:"parent,omitempty"`

	// Identity is the attribute looked up when no find-by attribute is given.
	Identity string `yaml:"identity,omitempty"`

	// Attributes maps attribute names to caster tags.
	Attributes map[string]string `yaml:"attributes,omitempty"`

	// Table overrides the storage name used by database finders.
	Table string `yaml:"table,omitempty"`

	// SoftDelete names the column that hides rows from scoped lookups.
	SoftDelete string `yaml:"soft_delete,omitempty"`
}

// IdentityAttribute returns Identity or DefaultIdentity.
func (t Type) IdentityAttribute() string {
	if t.Identity != "" {
		return t.Identity
	}
	return DefaultIdentity
}

// Types is a registry of entity types.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewTypes returns a registry holding types.
func NewTypes(types ...Type) *Types {
	ts := &Types{types: make(map[string]Type)}
	for _, t := range types {
		ts.types[t.Name] = t
	}
	return ts
}

// Register adds t. A type with an unknown parent is rejected.
func (ts *Types) Register(t Type) error {
	if t.Name == "" {
		return errors.New("entity type name is required")
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t.Parent != "" {
		if _, ok := ts.types[t.Parent]; !ok {
			return errors.Errorf("entity type %s: unknown parent %s", t.Name, t.Parent)
		}
	}
	ts.types[t.Name] = t
	return nil
}

// Lookup returns the type called name.
func (ts *Types) Lookup(name string) (Type, bool) {
	if ts == nil {
		return Type{}, false
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.types[name]
	return t, ok
}

// Names returns every registered type name, sorted.
func (ts *Types) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	names := make([]string, 0, len(ts.types))
	for n := range ts.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsA reports whether name is ancestor or one of its subtypes.
func (ts *Types) IsA(name, ancestor string) bool {
	if name == ancestor {
		return true
	}
	if ts == nil {
		return false
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	seen := map[string]bool{name: true}
	for {
		t, ok := ts.types[name]
		if !ok || t.Parent == "" || seen[t.Parent] {
			return false
		}
		if t.Parent == ancestor {
			return true
		}
		name = t.Parent
		seen[name] = true
	}
}

// Compatible reports whether an entity of type actual may be assigned where
// expected is declared: either type may be an ancestor of the other.
func (ts *Types) Compatible(actual, expected string) bool {
	return ts.IsA(actual, expected) || ts.IsA(expected, actual)
}

// AttributeType returns the caster tag declared for attr on the type called
// name, or "" when it is not known.
func (ts *Types) AttributeType(name, attr string) string {
	t, ok := ts.Lookup(name)
	if !ok {
		return ""
	}
	if attr == "" {
		attr = t.IdentityAttribute()
	}
	return t.Attributes[attr]
}

// FindBy returns attr, or the identity attribute of the type called name.
func (ts *Types) FindBy(name, attr string) string {
	if attr != "" {
		return attr
	}
	if t, ok := ts.Lookup(name); ok {
		return t.IdentityAttribute()
	}
	return DefaultIdentity
}

// Table returns the storage name of the type called name. A subtype uses
// the table of its nearest ancestor declaring one, and the root type's
// conventional table otherwise.
func (ts *Types) Table(name string) string {
	root := name
	for _, t := range ts.lineage(name) {
		if t.Table != "" {
			return t.Table
		}
		root = t.Name
	}
	return convention.TableName(root)
}

// SoftDelete returns the soft-delete column of the type called name,
// inherited from its ancestors, or "".
func (ts *Types) SoftDelete(name string) string {
	for _, t := range ts.lineage(name) {
		if t.SoftDelete != "" {
			return t.SoftDelete
		}
	}
	return ""
}

// lineage returns the registered type called name followed by its ancestors.
func (ts *Types) lineage(name string) []Type {
	if ts == nil {
		return nil
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var out []Type
	seen := make(map[string]bool)
	for name != "" && !seen[name] {
		t, ok := ts.types[name]
		if !ok {
			break
		}
		seen[name] = true
		out = append(out, t)
		name = t.Parent
	}
	return out
}
