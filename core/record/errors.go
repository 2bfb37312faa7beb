// Package record provides the field-keyed error sink shared by operations and
// the entities they touch, and the failure type that carries such a record.
package record

import (
	"sort"
	"strings"
)

// Base is the catch-all field for errors not tied to one input.
const Base = "base"

// Error is one field-keyed message.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is an ordered, field-keyed error list.
// The zero value is ready to use.
type Errors struct {
	entries []Error
}

// Add records message against field.
func (e *Errors) Add(field, message string) {
	e.entries = append(e.entries, Error{Field: field, Message: message})
}

// AddBase records a message against the catch-all field.
func (e *Errors) AddBase(message string) {
	e.Add(Base, message)
}

// Each calls fn for every error in insertion order.
func (e *Errors) Each(fn func(field, message string)) {
	if e == nil {
		return
	}
	for _, entry := range e.entries {
		fn(entry.Field, entry.Message)
	}
}

// On returns the messages recorded against field.
func (e *Errors) On(field string) []string {
	var out []string
	e.Each(func(f, m string) {
		if f == field {
			out = append(out, m)
		}
	})
	return out
}

// Fields returns the distinct fields with errors, sorted.
func (e *Errors) Fields() []string {
	seen := make(map[string]bool)
	e.Each(func(f, _ string) { seen[f] = true })
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of errors.
func (e *Errors) Len() int {
	if e == nil {
		return 0
	}
	return len(e.entries)
}

// Empty reports whether no errors were recorded.
func (e *Errors) Empty() bool {
	return e.Len() == 0
}

// Clear drops every error.
func (e *Errors) Clear() {
	e.entries = nil
}

// All returns a copy of the recorded errors.
func (e *Errors) All() []Error {
	if e == nil {
		return nil
	}
	return append([]Error(nil), e.entries...)
}

// ToMap groups messages by field.
func (e *Errors) ToMap() map[string][]string {
	out := make(map[string][]string)
	e.Each(func(f, m string) { out[f] = append(out[f], m) })
	return out
}

// FullMessage renders message as a sentence about field.
// Base messages are returned unchanged.
func (e *Errors) FullMessage(field, message string) string {
	if field == Base || field == "" {
		return message
	}
	return Humanize(field) + " " + message
}

// FullMessages renders every error with FullMessage.
func (e *Errors) FullMessages() []string {
	out := make([]string, 0, e.Len())
	e.Each(func(f, m string) { out = append(out, e.FullMessage(f, m)) })
	return out
}

// Humanize turns a field name like "owner_id" into "Owner".
func Humanize(field string) string {
	s := strings.TrimSuffix(field, "_id")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
