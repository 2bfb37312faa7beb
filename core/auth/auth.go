// Package auth adds current-user authorization to operations.
//
// Requirements are declared once per operation type and attached to each
// instance together with the current user, which may be an entity, an
// integer ID resolved on first use, or nil. Checks run during validation and
// fail the submission with a NotAuthorizedError, which carries no record.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/typecast"
)

// DefaultUserType is the entity type of current users.
const DefaultUserType = "User"

// Failure reasons.
const (
	ReasonUnauthorized      = "unauthorized"
	ReasonEmptyUnauthorized = "empty_unauthorized"
)

// DefaultMessage is the message of every NotAuthorizedError without its own.
const DefaultMessage = "Sorry, you are not authorized to perform this action."

// StatusUnauthorized is the status transports report for NotAuthorizedError.
const StatusUnauthorized = 401

// NotAuthorizedError is returned when an authorization check fails.
type NotAuthorizedError struct {
	Reason  string
	Message string
}

func (e *NotAuthorizedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultMessage
}

// Status returns the status transports report.
func (e *NotAuthorizedError) Status() int { return StatusUnauthorized }

// AuthorizationNotDeclaredError is returned when attaching requirements
// that declare no check at all.
type AuthorizationNotDeclaredError struct {
	Op string
}

func (e *AuthorizationNotDeclaredError) Error() string {
	return "Authorization management has not been declared on this class"
}

// UserTypeError is returned when the current user has an unsupported type.
type UserTypeError struct {
	Supported []string
	Actual    string
}

func (e *UserTypeError) Error() string {
	return fmt.Sprintf("current user must be one of the following types {%s} but was %s",
		strings.Join(e.Supported, ","), e.Actual)
}

// Unauthorized returns a NotAuthorizedError for reason.
func Unauthorized(reason string) error {
	if reason == "" {
		reason = ReasonUnauthorized
	}
	return errors.WithStack(&NotAuthorizedError{Reason: reason})
}

// CheckFunc is an authorization check. It returns a NotAuthorizedError, or
// any other error, to stop the submission.
type CheckFunc func(ctx context.Context, s *Session) error

// Condition guards a policy check.
type Condition func(ctx context.Context, s *Session) (bool, error)

// Field returns a condition that holds when a field is truthy.
func Field(name string) Condition {
	return func(_ context.Context, s *Session) (bool, error) {
		return typecast.Truthy(s.op.Get(name)), nil
	}
}

// Policy answers whether the current user may perform an action.
type Policy interface {
	Allows(ctx context.Context, action string) (bool, error)
}

// PolicyFunc builds the policy of one session.
type PolicyFunc func(ctx context.Context, s *Session) (Policy, error)

// Actions is a Policy backed by a table of action predicates.
// Unknown actions are denied.
type Actions map[string]func(ctx context.Context) (bool, error)

// Allows implements Policy.
func (a Actions) Allows(ctx context.Context, action string) (bool, error) {
	fn, ok := a[action]
	if !ok {
		return false, nil
	}
	return fn(ctx)
}

// PolicyOptions guard and label a policy check. The check runs only when
// every If condition holds and no Unless condition does.
type PolicyOptions struct {
	If     []Condition
	Unless []Condition
	Reason string
}

type check struct {
	name string
	fn   CheckFunc
}

// Requirements are the authorization checks of an operation type.
// Declare them once at startup; they are read-only afterwards.
type Requirements struct {
	userType string
	checks   []check
}

// New returns requirements with no checks.
func New() *Requirements {
	return &Requirements{userType: DefaultUserType}
}

// Extend returns a copy of r that further declarations do not share.
func (r *Requirements) Extend() *Requirements {
	return &Requirements{userType: r.userType, checks: slices.Clone(r.checks)}
}

// UserType sets the entity type current user IDs resolve to.
func (r *Requirements) UserType(name string) *Requirements {
	r.userType = name
	return r
}

// Authorize adds a named check.
func (r *Requirements) Authorize(name string, fn CheckFunc) *Requirements {
	r.checks = append(r.checks, check{name: name, fn: fn})
	return r
}

// NoUserRequirements declares authorization without constraining the user.
func (r *Requirements) NoUserRequirements() *Requirements {
	return r.Authorize("user_not_required", func(context.Context, *Session) error { return nil })
}

// RequireUser requires a current user.
func (r *Requirements) RequireUser() *Requirements {
	return r.Authorize("user_required", func(ctx context.Context, s *Session) error {
		u, err := s.CurrentUser(ctx)
		if err != nil {
			return err
		}
		if u == nil {
			return Unauthorized(ReasonUnauthorized)
		}
		return nil
	})
}

// RequireNoUser requires that there is no current user.
func (r *Requirements) RequireNoUser() *Requirements {
	return r.Authorize("no_user_required", func(_ context.Context, s *Session) error {
		if s.user != nil {
			return Unauthorized(ReasonEmptyUnauthorized)
		}
		return nil
	})
}

// Policy adds one check per action, each asking the session's policy.
// A trailing "?" on an action name is dropped.
func (r *Requirements) Policy(source PolicyFunc, opts PolicyOptions, actions ...string) *Requirements {
	for _, action := range actions {
		action = strings.TrimSuffix(action, "?")
		r.Authorize("policy_"+action, func(ctx context.Context, s *Session) error {
			run, err := opts.applies(ctx, s)
			if err != nil || !run {
				return err
			}
			p, err := source(ctx, s)
			if err != nil {
				return err
			}
			if p == nil {
				return Unauthorized(ReasonUnauthorized)
			}
			ok, err := p.Allows(ctx, action)
			if err != nil {
				return err
			}
			if !ok {
				return Unauthorized(opts.Reason)
			}
			return nil
		})
	}
	return r
}

func (opts PolicyOptions) applies(ctx context.Context, s *Session) (bool, error) {
	for _, c := range opts.If {
		ok, err := c(ctx, s)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, c := range opts.Unless {
		ok, err := c(ctx, s)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

// Declared reports whether any check was declared.
func (r *Requirements) Declared() bool {
	return r != nil && len(r.checks) > 0
}

// Checks returns the check names in declaration order.
func (r *Requirements) Checks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.checks))
	for i, c := range r.checks {
		names[i] = c.name
	}
	return names
}

// SupportedUserTypes names the accepted current user kinds.
func (r *Requirements) SupportedUserTypes() []string {
	return []string{r.userType, "Integer", "Nil"}
}

// Session is the authorization state of one operation instance.
type Session struct {
	req      *Requirements
	op       *op.Op
	user     any
	resolved entity.Entity
	skip     bool
}

// Attach binds r and the current user to o. Checks run when o is validated.
func Attach(o *op.Op, r *Requirements, user any) (*Session, error) {
	if !r.Declared() {
		return nil, errors.WithStack(&AuthorizationNotDeclaredError{Op: o.Name()})
	}

	s := &Session{req: r, op: o}
	switch u := user.(type) {
	case nil:
	case entity.Entity:
		if !o.Env().Types.IsA(u.EntityType(), r.userType) {
			return nil, errors.WithStack(&UserTypeError{Supported: r.SupportedUserTypes(), Actual: u.EntityType()})
		}
		s.user, s.resolved = u, u
	default:
		id, ok := userID(u)
		if !ok {
			return nil, errors.WithStack(&UserTypeError{Supported: r.SupportedUserTypes(), Actual: fmt.Sprintf("%T", u)})
		}
		s.user = id
	}

	o.AddValidation(s.run)
	return s, nil
}

func userID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// Op returns the operation the session is attached to.
func (s *Session) Op() *op.Op { return s.op }

// HasUser reports whether a current user, or its ID, was given.
func (s *Session) HasUser() bool { return s.user != nil }

// CurrentUser returns the current user, resolving an ID through the
// operation's finder on first call.
func (s *Session) CurrentUser(ctx context.Context) (entity.Entity, error) {
	if s.resolved != nil || s.user == nil {
		return s.resolved, nil
	}

	env := s.op.Env()
	if env.Finder == nil {
		return nil, errors.New("current user: no finder configured")
	}
	typ := s.req.userType
	e, err := env.Finder.Find(ctx, entity.Query{
		Type:   typ,
		FindBy: env.Types.FindBy(typ, ""),
		Key:    s.user,
	})
	if err != nil {
		return nil, err
	}
	s.resolved = e
	return e, nil
}

// SkipChecks disables the checks of this session.
func (s *Session) SkipChecks() *Session {
	s.skip = true
	return s
}

// Skipped reports whether checks are disabled.
func (s *Session) Skipped() bool { return s.skip }

func (s *Session) run(ctx context.Context) error {
	if s.skip {
		return nil
	}
	for _, c := range s.req.checks {
		if err := c.fn(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type userKey struct{}

// WithUser returns a context carrying the current user for transports.
func WithUser(ctx context.Context, user any) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the current user stored by WithUser, or nil.
func UserFrom(ctx context.Context) any {
	return ctx.Value(userKey{})
}
