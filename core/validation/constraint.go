package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artpar/subroutine/core/typecast"
)

// Constraint defines a validation rule for a field.
type Constraint struct {
	// Type is the constraint type (presence, min, max, min_length, pattern, etc.)
	Type ConstraintType `yaml:"type" json:"type"`

	// Value is the constraint parameter (number, regex pattern, format name, etc.)
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Message is the custom error message (optional).
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// ConstraintType identifies the type of constraint.
type ConstraintType string

const (
	// Presence constraints
	ConstraintPresence ConstraintType = "presence" // Value must not be blank
	ConstraintAbsence  ConstraintType = "absence"  // Value must be blank

	// Numeric constraints
	ConstraintMin ConstraintType = "min" // Minimum numeric value
	ConstraintMax ConstraintType = "max" // Maximum numeric value

	// String constraints
	ConstraintMinLength ConstraintType = "min_length" // Minimum string length
	ConstraintMaxLength ConstraintType = "max_length" // Maximum string length
	ConstraintPattern   ConstraintType = "pattern"    // Regex pattern match
	ConstraintFormat    ConstraintType = "format"     // Named format: email, url, uuid
	ConstraintNotEmpty  ConstraintType = "not_empty"  // String must not be empty/whitespace

	// Membership constraints
	ConstraintOneOf ConstraintType = "one_of" // Value must be one of list
)

// Named formats for ConstraintFormat.
const (
	FormatEmail = "email"
	FormatURL   = "url"
	FormatUUID  = "uuid"
)

// Presence returns a presence constraint.
func Presence() Constraint { return Constraint{Type: ConstraintPresence} }

// Format returns a named-format constraint.
func Format(name string) Constraint { return Constraint{Type: ConstraintFormat, Value: name} }

// Pattern returns a regex constraint with an optional message.
func Pattern(expr, message string) Constraint {
	return Constraint{Type: ConstraintPattern, Value: expr, Message: message}
}

// OneOf returns a membership constraint.
func OneOf(values ...any) Constraint { return Constraint{Type: ConstraintOneOf, Value: values} }

// Length returns min and max length constraints; a negative bound is omitted.
func Length(min, max int) []Constraint {
	var out []Constraint
	if min >= 0 {
		out = append(out, Constraint{Type: ConstraintMinLength, Value: min})
	}
	if max >= 0 {
		out = append(out, Constraint{Type: ConstraintMaxLength, Value: max})
	}
	return out
}

// ConstraintError represents a validation failure.
type ConstraintError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConstraint validates a value against a single constraint.
// Only presence and absence look at nil values; every other constraint skips them.
func ValidateConstraint(fieldName string, value any, c Constraint) *ConstraintError {
	switch c.Type {
	case ConstraintPresence:
		return validatePresence(fieldName, value, c)
	case ConstraintAbsence:
		return validateAbsence(fieldName, value, c)
	}

	if value == nil {
		return nil
	}

	switch c.Type {
	case ConstraintMin:
		return validateMin(fieldName, value, c)
	case ConstraintMax:
		return validateMax(fieldName, value, c)
	case ConstraintMinLength:
		return validateMinLength(fieldName, value, c)
	case ConstraintMaxLength:
		return validateMaxLength(fieldName, value, c)
	case ConstraintPattern:
		return validatePattern(fieldName, value, c)
	case ConstraintFormat:
		return validateFormat(fieldName, value, c)
	case ConstraintNotEmpty:
		return validateNotEmpty(fieldName, value, c)
	case ConstraintOneOf:
		return validateOneOf(fieldName, value, c)
	default:
		return nil
	}
}

func failure(field string, c Constraint, value any, fallback string) *ConstraintError {
	msg := c.Message
	if msg == "" {
		msg = fallback
	}
	return &ConstraintError{Field: field, Constraint: string(c.Type), Value: value, Message: msg}
}

func validatePresence(field string, value any, c Constraint) *ConstraintError {
	if typecast.IsBlank(value) {
		return failure(field, c, value, "can't be blank")
	}
	return nil
}

func validateAbsence(field string, value any, c Constraint) *ConstraintError {
	if !typecast.IsBlank(value) {
		return failure(field, c, value, "must be blank")
	}
	return nil
}

func validateMin(field string, value any, c Constraint) *ConstraintError {
	min, err := toFloat64(c.Value)
	if err != nil {
		return nil // Invalid constraint config, skip
	}

	val, err := toFloat64(value)
	if err != nil {
		return nil // Can't validate non-numeric, skip
	}

	if val < min {
		return failure(field, c, value, fmt.Sprintf("must be greater than or equal to %v", min))
	}
	return nil
}

func validateMax(field string, value any, c Constraint) *ConstraintError {
	max, err := toFloat64(c.Value)
	if err != nil {
		return nil
	}

	val, err := toFloat64(value)
	if err != nil {
		return nil
	}

	if val > max {
		return failure(field, c, value, fmt.Sprintf("must be less than or equal to %v", max))
	}
	return nil
}

func validateMinLength(field string, value any, c Constraint) *ConstraintError {
	minLen, err := toInt(c.Value)
	if err != nil {
		return nil
	}

	n, ok := length(value)
	if !ok {
		return nil
	}

	if n < minLen {
		return failure(field, c, n, fmt.Sprintf("is too short (minimum is %d characters)", minLen))
	}
	return nil
}

func validateMaxLength(field string, value any, c Constraint) *ConstraintError {
	maxLen, err := toInt(c.Value)
	if err != nil {
		return nil
	}

	n, ok := length(value)
	if !ok {
		return nil
	}

	if n > maxLen {
		return failure(field, c, n, fmt.Sprintf("is too long (maximum is %d characters)", maxLen))
	}
	return nil
}

func length(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case []any:
		return len(v), true
	}
	return 0, false
}

func validatePattern(field string, value any, c Constraint) *ConstraintError {
	pattern, ok := c.Value.(string)
	if !ok {
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil // Invalid regex, skip
	}

	if !re.MatchString(str) {
		return failure(field, c, value, "is invalid")
	}
	return nil
}

func validateFormat(field string, value any, c Constraint) *ConstraintError {
	format, _ := c.Value.(string)
	switch v := value.(type) {
	case uuid.UUID:
		if format == FormatUUID {
			return nil
		}
	case string:
		var ok bool
		switch format {
		case FormatEmail:
			addr, err := mail.ParseAddress(v)
			ok = err == nil && addr.Address == v
		case FormatURL:
			u, err := url.ParseRequestURI(v)
			ok = err == nil && u.Host != ""
		case FormatUUID:
			_, err := uuid.Parse(v)
			ok = err == nil
		default:
			return nil
		}
		if !ok {
			return failure(field, c, value, "is invalid")
		}
	}
	return nil
}

func validateNotEmpty(field string, value any, c Constraint) *ConstraintError {
	str, ok := value.(string)
	if !ok {
		return nil
	}

	if strings.TrimSpace(str) == "" {
		return failure(field, c, value, "must not be empty")
	}
	return nil
}

func validateOneOf(field string, value any, c Constraint) *ConstraintError {
	allowedVals, ok := c.Value.([]any)
	if !ok {
		// Try string slice
		if strVals, ok := c.Value.([]string); ok {
			allowedVals = make([]any, len(strVals))
			for i, v := range strVals {
				allowedVals[i] = v
			}
		} else {
			return nil
		}
	}

	strVal := fmt.Sprintf("%v", value)
	for _, allowed := range allowedVals {
		if fmt.Sprintf("%v", allowed) == strVal {
			return nil
		}
	}

	return failure(field, c, value, "is not included in the list")
}

// toFloat64 converts various numeric types to float64.
func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toInt converts various types to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
