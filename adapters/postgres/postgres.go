// Package postgres provides a PostgreSQL entity finder.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artpar/subroutine/core/entity"
)

// TypeColumn holds the entity type of rows in tables shared by subtypes.
const TypeColumn = "type"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects a pool to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Querier is the part of a pool or connection the finder uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Finder implements entity.Finder over PostgreSQL tables in the current schema.
// Tables, subtypes and soft deletes behave as in the SQLite finder.
type Finder struct {
	db    Querier
	types *entity.Types

	mu      sync.Mutex
	columns map[string]map[string]bool
}

// NewFinder creates a finder.
func NewFinder(db Querier, types *entity.Types) *Finder {
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

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`,
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{attr}.Sanitize())
	if sd := f.types.SoftDelete(q.Type); sd != "" && !q.Unscoped && cols[sd] {
		query += fmt.Sprintf(` AND %s IS NULL`, pgx.Identifier{sd}.Sanitize())
	}

	rows, err := f.db.Query(ctx, query, q.Key)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := entity.NewRecord(q.Type, make(map[string]any, len(fields)))
		for i, fd := range fields {
			rec.Set(fd.Name, normalize(values[i]))
		}
		if t, ok := rec.Attrs[TypeColumn].(string); ok && t != "" {
			rec.Type = t
		}
		if f.types.IsA(rec.Type, q.Type) {
			return rec, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", q, err)
	}

	return nil, entity.NotFound(q)
}

func (f *Finder) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cols, ok := f.columns[table]; ok {
		return cols, nil
	}

	rows, err := f.db.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	cols := make(map[string]bool, len(names))
	for _, name := range names {
		cols[name] = true
	}
	f.columns[table] = cols
	return cols, nil
}

// normalize maps driver values to the forms the casters produce.
func normalize(v any) any {
	switch t := v.(type) {
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	}
	return v
}

var _ entity.Finder = (*Finder)(nil)
