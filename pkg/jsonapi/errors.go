package jsonapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
)

// ErrorBuilder builds an Error.
type ErrorBuilder struct {
	err Error
}

// NewError starts an error with the given status, code and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Status: strconv.Itoa(status), Code: code, Title: title}}
}

// Detail sets the human-readable explanation.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// ID sets the error ID, the request ID of the failed submission.
func (b *ErrorBuilder) ID(id string) *ErrorBuilder {
	b.err.ID = id
	return b
}

// Pointer points the error at an input attribute.
func (b *ErrorBuilder) Pointer(field string) *ErrorBuilder {
	b.source().Pointer = AttributesPointer + field
	return b
}

// Header names the request header at fault.
func (b *ErrorBuilder) Header(name string) *ErrorBuilder {
	b.source().Header = name
	return b
}

// Meta adds a metadata entry.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = make(Meta)
	}
	b.err.Meta[key] = value
	return b
}

func (b *ErrorBuilder) source() *ErrorSource {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	return b.err.Source
}

// Build returns the error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status, or 0 when unset.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// ErrOperationNotFound is the 404 for an unknown operation name.
func ErrOperationNotFound(name string) Error {
	return NewError(http.StatusNotFound, "not_found", "Not Found").
		Detail(fmt.Sprintf("The operation '%s' was not found", name)).
		Build()
}

// ErrInvalidToken is the 401 for a bearer token that fails verification.
func ErrInvalidToken(reqID string) Error {
	return NewError(http.StatusUnauthorized, "invalid_token", "Unauthorized").
		Detail("The bearer token is invalid or expired").
		Header("Authorization").
		ID(reqID).
		Build()
}

// ErrBadRequest is a 400 for an unreadable request body.
func ErrBadRequest(reqID, detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", "Bad Request").Detail(detail).ID(reqID).Build()
}

// ErrInput is a 400 for one input attribute the operation refuses, such
// as an unknown or protected field.
func ErrInput(code, field, detail string) Error {
	return NewError(http.StatusBadRequest, code, "Bad Request").Detail(detail).Pointer(field).Build()
}

// ErrTypeCast is a 400 for a value that cannot be cast to its field type.
func ErrTypeCast(castType, detail string) Error {
	return NewError(http.StatusBadRequest, "type_cast_error", "Bad Request").
		Detail(detail).
		Meta("type", castType).
		Build()
}

// ErrNotAuthorized is a failed authorization check with the status the
// check reports.
func ErrNotAuthorized(status int, reqID, detail string) Error {
	return NewError(status, "not_authorized", "Not Authorized").Detail(detail).ID(reqID).Build()
}

// ErrUnsupportedUser is the 403 for a current user of the wrong type.
func ErrUnsupportedUser(reqID, detail string) Error {
	return NewError(http.StatusForbidden, "unsupported_user", "Forbidden").Detail(detail).ID(reqID).Build()
}

// ErrValidation is a 422 for one failed field. Errors on the base field
// carry no source pointer.
func ErrValidation(field, base, detail string) Error {
	b := NewError(http.StatusUnprocessableEntity, "validation_error", "Validation Failed").Detail(detail)
	if field != "" && field != base {
		b.Pointer(field)
	}
	return b.Build()
}

// ErrValidations creates one validation error per message in fields,
// ordered by field. detail renders each message.
func ErrValidations(fields map[string][]string, base string, detail func(field, message string) string) []Error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Error
	for _, name := range names {
		for _, msg := range fields[name] {
			out = append(out, ErrValidation(name, base, detail(name, msg)))
		}
	}
	return out
}

// ErrInternal is the 500 for unexpected errors. The detail never carries
// the underlying error.
func ErrInternal(reqID string) Error {
	return NewError(http.StatusInternalServerError, "internal_error", "Internal Server Error").
		Detail("An internal error occurred").
		ID(reqID).
		Build()
}
