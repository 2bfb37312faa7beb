package typecast

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Func coerces a non-nil value according to opts.
type Func func(value any, opts Options) (any, error)

// Options carries the declared type tag and any tag-specific casting hints.
type Options struct {
	// Type is the registered tag to cast with.
	Type string `yaml:"type,omitempty"`

	// Of is the element type for array casts.
	Of string `yaml:"of,omitempty"`

	// Methods is an ordered list of extraction methods tried by the number caster
	// before falling back to float parsing ("int64", "float64").
	Methods []string `yaml:"methods,omitempty"`

	// ForeignKeyType is the tag used to cast foreign key values.
	ForeignKeyType string `yaml:"foreign_key_type,omitempty"`

	// ForeignKeyTypeFunc computes ForeignKeyType lazily, at cast time.
	ForeignKeyTypeFunc func() string `yaml:"-"`

	// Base64 decodes file contents before they are written.
	Base64 bool `yaml:"base64,omitempty"`

	// Precision is "high" to keep sub-second precision on time casts.
	Precision string `yaml:"precision,omitempty"`

	// Name is the field being cast. Set by the field layer.
	Name string `yaml:"-"`
}

// PrecisionHigh keeps sub-second precision for time casts.
const PrecisionHigh = "high"

// Registry holds the casters available to a schema.
type Registry struct {
	mu                sync.RWMutex
	casters           map[string]Func
	preservePrecision bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithPreservedPrecision keeps sub-second precision on every time cast.
func WithPreservedPrecision(preserve bool) Option {
	return func(r *Registry) {
		r.preservePrecision = preserve
	}
}

// New creates a registry loaded with the built-in casters.
func New(opts ...Option) *Registry {
	r := &Registry{casters: make(map[string]Func)}
	for _, opt := range opts {
		opt(r)
	}
	registerBuiltins(r)
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry { return New() })

// Default returns a process-wide registry with only the built-in casters.
func Default() *Registry {
	return defaultRegistry()
}

// Register associates fn with each tag, replacing existing casters.
func (r *Registry) Register(fn Func, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tags {
		r.casters[tag] = fn
	}
}

// Has reports whether tag has a caster.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.casters[tag]
	return ok
}

// Tags returns every registered tag, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.casters))
	for tag := range r.casters {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// PreservesPrecision reports whether time casts keep sub-second precision by default.
func (r *Registry) PreservesPrecision() bool {
	return r.preservePrecision
}

// Cast coerces value using the caster registered for opts.Type.
// Nil values, empty types and unknown tags pass through unchanged.
// Any caster failure is returned as *Error.
func (r *Registry) Cast(value any, opts Options) (any, error) {
	if isNil(value) || opts.Type == "" {
		return value, nil
	}

	r.mu.RLock()
	fn, ok := r.casters[opts.Type]
	r.mu.RUnlock()
	if !ok {
		return value, nil
	}

	out, err := fn(value, opts)
	if err != nil {
		return nil, newError(opts.Type, err)
	}
	return out, nil
}

// Error is a failed cast. It keeps the stack of the underlying caster error.
type Error struct {
	Type    string
	Message string
	cause   error
}

func newError(tag string, cause error) *Error {
	var ce *Error
	if errors.As(cause, &ce) {
		return &Error{Type: tag, Message: ce.Message, cause: ce.cause}
	}
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if _, ok := cause.(stackTracer); !ok {
		cause = errors.WithStack(cause)
	}
	return &Error{Type: tag, Message: cause.Error(), cause: cause}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the caster's original error.
func (e *Error) Unwrap() error {
	return e.cause
}

// StackTrace returns the stack recorded where the cast originally failed.
func (e *Error) StackTrace() errors.StackTrace {
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// Qualify returns a copy of e whose message is rewritten by format, which
// receives the original message. The original cause and stack are kept.
func (e *Error) Qualify(format string) *Error {
	return &Error{Type: e.Type, Message: fmt.Sprintf(format, e.Message), cause: e.cause}
}
