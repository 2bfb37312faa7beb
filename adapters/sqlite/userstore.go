package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/ports"
)

// ErrNotFound is returned when a user is not found.
var ErrNotFound = entity.ErrNotFound

// UserStore implements ports.UserStore using SQLite.
type UserStore struct {
	db    *DB
	clock ports.Clock
}

// NewUserStore creates a new SQLite user store. A nil clock uses the wall clock.
func NewUserStore(db *DB, clock ports.Clock) *UserStore {
	return &UserStore{db: db, clock: clock}
}

const userColumns = `id, type, email, password_hash, privileges, business, created_at`

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id int64) (ports.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email, ignoring case.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = ? AND deleted_at IS NULL
	`, email)
	return scanUser(row)
}

// Create stores a new user and returns it with its ID.
func (s *UserStore) Create(ctx context.Context, u ports.User) (ports.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.Type == "" {
		u.Type = ports.DefaultUserType
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (type, email, password_hash, privileges, business, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Type, u.Email, u.PasswordHash, u.Privileges, u.Business, u.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ports.User{}, ports.ErrEmailTaken
		}
		return ports.User{}, err
	}

	u.ID, err = result.LastInsertId()
	return u, err
}

// Count returns the number of users not deleted.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}

// SoftDelete marks a user deleted. Deleted users are hidden from the store
// and from scoped association lookups.
func (s *UserStore) SoftDelete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, s.now(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

func scanUser(row *sql.Row) (ports.User, error) {
	var u ports.User
	err := row.Scan(&u.ID, &u.Type, &u.Email, &u.PasswordHash, &u.Privileges, &u.Business, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.User{}, ErrNotFound
	}
	if err != nil {
		return ports.User{}, err
	}
	return u, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
