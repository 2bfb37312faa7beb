// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/subroutine/core/entity"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Lookup Ports
// -----------------------------------------------------------------------------

// Finder resolves association lookups. See entity.Finder.
type Finder = entity.Finder

// -----------------------------------------------------------------------------
// Observation Ports
// -----------------------------------------------------------------------------

// Phase names a step of a submission.
type Phase string

const (
	PhaseSubmit   Phase = "submit"
	PhaseValidate Phase = "validate"
	PhasePerform  Phase = "perform"
)

// Outcome classifies how a phase ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure" // business failure: the op's errors are set
	OutcomeError   Outcome = "error"   // an error that is not a business failure
)

// Observation describes one finished phase.
type Observation struct {
	Op       string
	Phase    Phase
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Observer is notified after every submission phase.
// Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, o Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Observation)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, o Observation) {
	f(ctx, o)
}

// Observers fans an observation out to several observers.
type Observers []Observer

// Observe notifies every observer in order.
func (os Observers) Observe(ctx context.Context, o Observation) {
	for _, obs := range os {
		if obs != nil {
			obs.Observe(ctx, o)
		}
	}
}

// -----------------------------------------------------------------------------
// Hasher Port
// -----------------------------------------------------------------------------

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a digest from a plaintext value.
	Hash(plaintext string) (string, error)

	// Compare checks if plaintext matches digest.
	Compare(digest, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Account Ports
// -----------------------------------------------------------------------------

// User is a stored account.
type User struct {
	ID           int64
	Type         string // entity type, e.g. "User" or "AdminUser"
	Email        string
	PasswordHash string
	Privileges   string
	Business     string
	CreatedAt    time.Time
}

// DefaultUserType is the entity type of users stored without one.
const DefaultUserType = "User"

// Entity returns u as an entity, without its password hash.
func (u User) Entity() *entity.Record {
	typ := u.Type
	if typ == "" {
		typ = DefaultUserType
	}
	return entity.NewRecord(typ, map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"privileges": u.Privileges,
		"business":   u.Business,
		"created_at": u.CreatedAt,
	})
}

// ErrEmailTaken is returned by UserStore.Create for a duplicate email.
var ErrEmailTaken = errors.New("email already exists")

// UserStore persists accounts.
type UserStore interface {
	// Create stores u and returns it with its assigned ID.
	Create(ctx context.Context, u User) (User, error)

	// Get retrieves a user by ID.
	Get(ctx context.Context, id int64) (User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (User, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)
}
