// Package entity models the externally stored records that association fields
// point at, and the lookup contract used to resolve them.
package entity

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/record"
)

// Entity is a looked-up record.
type Entity interface {
	// EntityType is the runtime type name stored in polymorphic type fields.
	EntityType() string

	// Attribute returns a named attribute, such as the identity.
	Attribute(name string) (any, bool)
}

// Query describes one association lookup.
type Query struct {
	Type     string
	FindBy   string
	Key      any
	Unscoped bool
}

func (q Query) String() string {
	return fmt.Sprintf("%s(%s=%v)", q.Type, q.FindBy, q.Key)
}

// Finder resolves association queries.
type Finder interface {
	Find(ctx context.Context, q Query) (Entity, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, q Query) (Entity, error)

// Find calls f.
func (f FinderFunc) Find(ctx context.Context, q Query) (Entity, error) {
	return f(ctx, q)
}

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("entity not found")

// NotFoundError is returned by finders when nothing matches a query.
type NotFoundError struct {
	Query Query
}

// NotFound returns a NotFoundError for q with a stack.
func NotFound(q Query) error {
	return errors.WithStack(&NotFoundError{Query: q})
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("couldn't find %s with %s=%v", e.Query.Type, e.Query.FindBy, e.Query.Key)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Record is a map-backed Entity used by the bundled finders.
// It also carries its own error list so operations can inherit its errors.
type Record struct {
	Type  string
	Attrs map[string]any

	errs record.Errors
}

// NewRecord returns a Record of typ with attrs.
func NewRecord(typ string, attrs map[string]any) *Record {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Record{Type: typ, Attrs: attrs}
}

// EntityType implements Entity.
func (r *Record) EntityType() string {
	return r.Type
}

// Attribute implements Entity.
func (r *Record) Attribute(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok
}

// Set assigns an attribute.
func (r *Record) Set(name string, value any) {
	r.Attrs[name] = value
}

// Errors implements record.Record.
func (r *Record) Errors() *record.Errors {
	return &r.errs
}

// AttributeNames returns the attribute names, sorted.
func (r *Record) AttributeNames() []string {
	names := make([]string, 0, len(r.Attrs))
	for k := range r.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *Record) String() string {
	id, _ := r.Attribute(DefaultIdentity)
	return fmt.Sprintf("%s(#%v)", r.Type, id)
}
