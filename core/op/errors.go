package op

import (
	"fmt"

	"github.com/artpar/subroutine/core/record"
)

// AssociationTypeMismatchError is returned when a non-polymorphic
// association is assigned an entity of an incompatible type. It carries
// the operation, whose base errors explain the mismatch.
type AssociationTypeMismatchError struct {
	Association string
	Expected    string
	Actual      string
	rec         record.Record
}

func (e *AssociationTypeMismatchError) Error() string {
	return mismatchMessage(e.Expected, e.Actual)
}

// Record implements record.Bearer.
func (e *AssociationTypeMismatchError) Record() record.Record {
	return e.rec
}

func mismatchMessage(expected, actual string) string {
	return fmt.Sprintf("%s expected, got %s", expected, actual)
}

// UnknownOutputError is returned when an undeclared output is written or read.
type UnknownOutputError struct {
	Name string
}

func (e *UnknownOutputError) Error() string {
	return fmt.Sprintf("Unknown output '%s'", e.Name)
}

// OutputNotSetError is returned when a required output is missing after perform.
type OutputNotSetError struct {
	Name string
}

func (e *OutputNotSetError) Error() string {
	return fmt.Sprintf("Expected output '%s' to be set upon completion of perform but was not.", e.Name)
}

// InvalidOutputTypeError is returned when an output value does not have the
// declared type.
type InvalidOutputTypeError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *InvalidOutputTypeError) Error() string {
	return fmt.Sprintf("Invalid output type for '%s' expected %s but got %s", e.Name, e.Expected, e.Actual)
}

// UsageError reports a call the API does not allow.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// AccessorError is returned by typed accessors of fields whose reader or
// writer is disabled, or whose value has another type.
type AccessorError struct {
	Field   string
	Message string
}

func (e *AccessorError) Error() string {
	return fmt.Sprintf("field `%s`: %s", e.Field, e.Message)
}
