// Package accounts contains the signup operations served by the runtime.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/core/auth"
	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/runtime"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/validation"
	"github.com/artpar/subroutine/ports"
)

// Entity types of stored accounts.
const (
	TypeUser  = ports.DefaultUserType
	TypeAdmin = "AdminUser"
)

// Types returns the account entity types, for op.Env.Types and the finders.
func Types() []entity.Type {
	return []entity.Type{
		{Name: TypeUser},
		{Name: TypeAdmin, Parent: TypeUser},
	}
}

// DefaultPrivileges is what admin signups get when none are given.
const DefaultPrivileges = "min"

// MessageTaken is recorded on email when the address is already registered.
const MessageTaken = "has already been taken"

// SignupSchema creates a plain user.
var SignupSchema = schema.New("signup").
	String("email", schema.Options{Aka: []string{"email_address"}}).
	String("password").
	Validates("email", validation.Presence()).
	Validates("password", validation.Presence()).
	Outputs(schema.OutputOptions{Type: schema.TypeOf[bool]()}, "perform_called", "perform_finished").
	Outputs(schema.OutputOptions{Type: schema.TypeOf[*entity.Record]()}, "created_user").
	MustBuild()

// AdminSignupSchema creates an admin user, which must use an @admin.com address.
var AdminSignupSchema = schema.Extend("admin_signup", SignupSchema).
	String("privileges", schema.Options{Default: DefaultPrivileges}).
	MustBuild()

// BusinessSignupSchema creates a user on behalf of a business.
var BusinessSignupSchema = schema.New("business_signup").
	String("business_name").
	FieldsFrom(schema.FromOptions{}, SignupSchema).
	Validates("business_name", validation.Presence()).
	Validates("email", validation.Presence()).
	Validates("password", validation.Presence()).
	MustBuild()

// rules are the model validations of each account type.
var rules = map[string][]validation.Rule{
	TypeUser: {
		{Field: "email_address", Constraints: []validation.Constraint{validation.Presence()}},
	},
	TypeAdmin: {
		{Field: "email_address", Constraints: []validation.Constraint{
			validation.Presence(),
			validation.Pattern(`@admin\.com`, "has gotta be @admin.com"),
		}},
	},
}

// Service creates accounts.
type Service struct {
	users     ports.UserStore
	hasher    ports.Hasher
	validator *validation.Validator
	logger    zerolog.Logger
}

// NewService creates a new account service.
func NewService(users ports.UserStore, hasher ports.Hasher, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		hasher:    hasher,
		validator: validation.New(),
		logger:    logger,
	}
}

// Register adds the signup operations to rt. Signing up requires that no
// user is signed in.
func Register(rt *runtime.Runtime, svc *Service) error {
	ops := []struct {
		schema   *schema.Schema
		userType string
	}{
		{SignupSchema, TypeUser},
		{AdminSignupSchema, TypeAdmin},
		{BusinessSignupSchema, TypeUser},
	}
	for _, o := range ops {
		if err := rt.Register(o.schema, svc.Factory(o.userType), auth.New().RequireNoUser()); err != nil {
			return fmt.Errorf("register %s: %w", o.schema.Name(), err)
		}
	}
	return nil
}

// Factory returns an op.Factory for signups creating users of userType.
func (s *Service) Factory(userType string) op.Factory {
	return func(o *op.Op) op.Operation {
		return &Signup{Op: o, svc: s, userType: userType}
	}
}

// Signup creates one account from its fields.
type Signup struct {
	*op.Op
	svc      *Service
	userType string
}

// Perform builds and validates the user, then stores it. Errors of the
// user model land on the operation's fields.
func (s *Signup) Perform(ctx context.Context) error {
	if err := s.Output("perform_called", true); err != nil {
		return err
	}

	u := newUser(s.userType, map[string]any{
		"email_address": s.str("email"),
		"privileges":    s.str("privileges"),
		"business":      s.str("business_name"),
	})
	valid, err := s.svc.validator.Validate(ctx, u, rules[s.userType])
	if err != nil {
		return err
	}
	if !valid {
		s.InheritErrors(u, "")
		return nil
	}

	digest, err := s.svc.hasher.Hash(s.str("password"))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	created, err := s.svc.users.Create(ctx, ports.User{
		Type:         s.userType,
		Email:        s.str("email"),
		PasswordHash: digest,
		Privileges:   s.str("privileges"),
		Business:     s.str("business_name"),
		CreatedAt:    s.Env().Clock.Now(),
	})
	if errors.Is(err, ports.ErrEmailTaken) {
		s.Errors().Add("email", MessageTaken)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	u.Set("id", created.ID)
	u.Set("created_at", created.CreatedAt)
	s.svc.logger.Info().
		Int64("user_id", created.ID).
		Str("type", created.Type).
		Msg("account created")

	if err := s.Output("perform_finished", true); err != nil {
		return err
	}
	return s.Output("created_user", u.Record)
}

func (s *Signup) str(name string) string {
	v, _ := s.Get(name).(string)
	return v
}

// user is an unsaved account checked by the model validations.
type user struct {
	*entity.Record
}

func newUser(typ string, attrs map[string]any) user {
	return user{entity.NewRecord(typ, attrs)}
}

// Value implements validation.Target.
func (u user) Value(_ context.Context, field string) (any, error) {
	v, _ := u.Attribute(field)
	return v, nil
}
