package record

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type model struct {
	errs Errors
}

func (m *model) Errors() *Errors { return &m.errs }

func TestErrors(t *testing.T) {
	var e Errors
	assert.True(t, e.Empty())

	e.Add("email", "can't be blank")
	e.Add("email", "is invalid")
	e.AddBase("Something broke")
	e.Add("owner_id", "must exist")

	assert.Equal(t, 4, e.Len())
	assert.Equal(t, []string{"can't be blank", "is invalid"}, e.On("email"))
	assert.Equal(t, []string{"base", "email", "owner_id"}, e.Fields())
	assert.Equal(t, []string{
		"Email can't be blank",
		"Email is invalid",
		"Something broke",
		"Owner must exist",
	}, e.FullMessages())
	assert.Equal(t, map[string][]string{
		"email":    {"can't be blank", "is invalid"},
		"base":     {"Something broke"},
		"owner_id": {"must exist"},
	}, e.ToMap())

	e.Clear()
	assert.True(t, e.Empty())
}

func TestHumanize(t *testing.T) {
	tests := map[string]string{
		"email":         "Email",
		"email_address": "Email address",
		"user_id":       "User",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Humanize(in), in)
	}
}

func TestFailure(t *testing.T) {
	m := &model{}
	m.errs.Add("email", "can't be blank")
	m.errs.AddBase("Nope")

	f := NewFailure(m)
	assert.Equal(t, "Email can't be blank, Nope", f.Error())
	assert.Same(t, m, f.Record())
	assert.NotEmpty(t, f.StackTrace())

	wrapped := fmt.Errorf("outer: %w", f)
	b, ok := AsBearer(wrapped)
	require.True(t, ok)
	assert.Same(t, m, b.Record())

	_, ok = AsBearer(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrapKeepsOriginalStack(t *testing.T) {
	m := &model{}
	origin := errors.New("origin")

	f := Wrap(m, origin)
	assert.Equal(t, origin.(stackTracer).StackTrace(), f.StackTrace())
	assert.ErrorIs(t, f, origin)

	g := Wrap(m, fmt.Errorf("no stack"))
	assert.NotEmpty(t, g.StackTrace())
}

func TestStackOf(t *testing.T) {
	inner := errors.New("inner")
	outer := fmt.Errorf("outer: %w", errors.WithMessage(inner, "context"))
	assert.Equal(t, inner.(stackTracer).StackTrace(), StackOf(outer))
	assert.Nil(t, StackOf(fmt.Errorf("plain")))
}
