package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/ports"
)

// ErrNotFound is returned when a user is not found.
var ErrNotFound = entity.ErrNotFound

// UserStore is an in-memory implementation of ports.UserStore.
// It is also an entity.Finder for user types, looking users up by id or email.
type UserStore struct {
	mu      sync.RWMutex
	types   *entity.Types
	users   map[int64]ports.User // by ID
	byEmail map[string]int64     // email -> ID
	nextID  int64
}

// NewUserStore creates a new in-memory user store. Types decides which
// entity types Find serves; nil serves only ports.DefaultUserType.
func NewUserStore(types *entity.Types) *UserStore {
	return &UserStore{
		types:   types,
		users:   make(map[int64]ports.User),
		byEmail: make(map[string]int64),
		nextID:  1,
	}
}

// Create stores a new user and assigns its ID.
func (s *UserStore) Create(ctx context.Context, u ports.User) (ports.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return ports.User{}, ports.ErrEmailTaken
	}

	u.ID = s.nextID
	s.nextID++
	if u.Type == "" {
		u.Type = ports.DefaultUserType
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return u, nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id int64) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return ports.User{}, ErrNotFound
	}
	return u, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return ports.User{}, ErrNotFound
	}
	return s.users[id], nil
}

// Count returns total user count.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Find implements entity.Finder for users.
func (s *UserStore) Find(ctx context.Context, q entity.Query) (entity.Entity, error) {
	if !s.types.IsA(q.Type, ports.DefaultUserType) {
		return nil, entity.NotFound(q)
	}

	var (
		u   ports.User
		err error
	)
	switch q.FindBy {
	case "", "id":
		id, ok := q.Key.(int64)
		if !ok {
			return nil, entity.NotFound(q)
		}
		u, err = s.Get(ctx, id)
	case "email":
		email, _ := q.Key.(string)
		u, err = s.GetByEmail(ctx, email)
	default:
		return nil, entity.NotFound(q)
	}
	if err != nil || !s.types.IsA(u.Type, q.Type) {
		return nil, entity.NotFound(q)
	}
	return u.Entity(), nil
}

// Clear removes all users (for testing).
func (s *UserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int64]ports.User)
	s.byEmail = make(map[string]int64)
	s.nextID = 1
}

// Ensure interface compliance.
var (
	_ ports.UserStore = (*UserStore)(nil)
	_ entity.Finder   = (*UserStore)(nil)
)
