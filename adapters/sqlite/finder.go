package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/artpar/subroutine/core/entity"
)

// TypeColumn holds the entity type of rows in tables shared by subtypes.
const TypeColumn = "type"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Finder implements entity.Finder over SQLite tables.
//
// The table of a type comes from its entity declaration or naming
// convention. Rows of tables with a type column carry that type and match
// lookups on their ancestors. The soft-delete column of a type, when the
// table has it, hides rows from scoped lookups.
type Finder struct {
	db    *DB
	types *entity.Types

	mu      sync.Mutex
	columns map[string]map[string]bool
}

// NewFinder creates a finder.
func NewFinder(db *DB, types *entity.Types) *Finder {
	return &Finder{db: db, types: types, columns: make(map[string]map[string]bool)}
}

// Find implements entity.Finder.
func (f *Finder) Find(ctx context.Context, q entity.Query) (entity.Entity, error) {
	table := f.types.Table(q.Type)
	attr := f.types.FindBy(q.Type, q.FindBy)
	if !identifier.MatchString(table) || !identifier.MatchString(attr) {
		return nil, fmt.Errorf("find %s: invalid identifier", q)
	}

	cols, err := f.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !cols[attr] {
		return nil, fmt.Errorf("find %s: table %s has no column %s", q, table, attr)
	}

	query := fmt.Sprintf(`SELECT * FROM %q WHERE %q = ?`, table, attr)
	if sd := f.types.SoftDelete(q.Type); sd != "" && !q.Unscoped && cols[sd] {
		query += fmt.Sprintf(` AND %q IS NULL`, sd)
	}

	rows, err := f.db.QueryContext(ctx, query, q.Key)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := entity.NewRecord(q.Type, make(map[string]any, len(names)))
		for i, name := range names {
			rec.Set(name, normalize(values[i]))
		}
		if t, ok := rec.Attrs[TypeColumn].(string); ok && t != "" {
			rec.Type = t
		}
		if f.types.IsA(rec.Type, q.Type) {
			return rec, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, entity.NotFound(q)
}

func (f *Finder) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cols, ok := f.columns[table]; ok {
		return cols, nil
	}

	rows, err := f.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("table info %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	f.columns[table] = cols
	return cols, nil
}

// normalize maps driver values to the forms the casters produce.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	}
	return v
}

var _ entity.Finder = (*Finder)(nil)
