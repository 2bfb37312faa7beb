package record

import (
	"strings"

	"github.com/pkg/errors"
)

// Record is anything that accumulates field-keyed errors.
type Record interface {
	Errors() *Errors
}

// Bearer is an error that carries the record whose errors explain it.
// Submission absorbs Bearers and folds their records into the operation.
type Bearer interface {
	error
	Record() Record
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Failure is the default record-bearing error.
type Failure struct {
	record  Record
	message string
	cause   error
}

// NewFailure returns a Failure for rec whose stack starts at the caller.
func NewFailure(rec Record) *Failure {
	msg := summary(rec)
	return &Failure{record: rec, message: msg, cause: errors.New(msg)}
}

// Wrap returns a Failure for rec that reports the stack of cause.
func Wrap(rec Record, cause error) *Failure {
	msg := summary(rec)
	if cause == nil {
		cause = errors.New(msg)
	} else if _, ok := cause.(stackTracer); !ok {
		cause = errors.WithStack(cause)
	}
	return &Failure{record: rec, message: msg, cause: cause}
}

func summary(rec Record) string {
	if rec == nil {
		return ""
	}
	return strings.Join(rec.Errors().FullMessages(), ", ")
}

func (f *Failure) Error() string {
	return f.message
}

// Record returns the record that failed.
func (f *Failure) Record() Record {
	return f.record
}

// Unwrap returns the error the failure was raised from.
func (f *Failure) Unwrap() error {
	return f.cause
}

// StackTrace returns the stack of the original error.
func (f *Failure) StackTrace() errors.StackTrace {
	if st, ok := f.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// AsBearer returns the first record-bearing error in err's chain.
func AsBearer(err error) (Bearer, bool) {
	var b Bearer
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// StackOf returns the deepest stack trace recorded in err's chain.
func StackOf(err error) errors.StackTrace {
	var deepest errors.StackTrace
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			deepest = st.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return deepest
}
