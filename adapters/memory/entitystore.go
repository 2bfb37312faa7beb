// Package memory provides in-memory implementations of the lookup and
// account ports, for tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/subroutine/core/entity"
)

// EntityStore is an in-memory entity.Finder.
//
// Records are stored per table, so subtypes sharing a table are found by
// lookups on their ancestors. Soft-deleted records are found only by
// unscoped lookups.
type EntityStore struct {
	mu     sync.RWMutex
	types  *entity.Types
	tables map[string][]*row
}

type row struct {
	rec     *entity.Record
	deleted bool
}

// NewEntityStore creates a store resolving tables through types.
func NewEntityStore(types *entity.Types) *EntityStore {
	return &EntityStore{
		types:  types,
		tables: make(map[string][]*row),
	}
}

// Put stores a record.
func (s *EntityStore) Put(rec *entity.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.types.Table(rec.EntityType())
	s.tables[table] = append(s.tables[table], &row{rec: rec})
}

// SoftDelete hides the records of typ whose attr equals key from scoped
// lookups. It returns the number of records hidden.
func (s *EntityStore) SoftDelete(typ, attr string, key any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.tables[s.types.Table(typ)] {
		if !r.deleted && s.matches(r, typ, attr, key) {
			r.deleted = true
			n++
		}
	}
	return n
}

// Find implements entity.Finder.
func (s *EntityStore) Find(ctx context.Context, q entity.Query) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.tables[s.types.Table(q.Type)] {
		if r.deleted && !q.Unscoped {
			continue
		}
		if s.matches(r, q.Type, q.FindBy, q.Key) {
			return r.rec, nil
		}
	}
	return nil, entity.NotFound(q)
}

// Len returns the number of stored records, including soft-deleted ones.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rows := range s.tables {
		n += len(rows)
	}
	return n
}

func (s *EntityStore) matches(r *row, typ, attr string, key any) bool {
	if !s.types.IsA(r.rec.EntityType(), typ) {
		return false
	}
	v, ok := r.rec.Attribute(s.types.FindBy(typ, attr))
	return ok && sameKey(v, key)
}

// sameKey compares keys across the integer and string forms a key may
// take after casting.
func sameKey(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

var _ entity.Finder = (*EntityStore)(nil)
