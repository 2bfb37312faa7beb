package entity

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTypes(t *testing.T) *Types {
	t.Helper()
	ts := NewTypes(Type{Name: "User", Attributes: map[string]string{"id": "integer", "email_address": "string"}})
	require.NoError(t, ts.Register(Type{Name: "AdminUser", Parent: "User"}))
	require.NoError(t, ts.Register(Type{Name: "SuperAdmin", Parent: "AdminUser"}))
	require.NoError(t, ts.Register(Type{Name: "Account"}))
	require.NoError(t, ts.Register(Type{Name: "StringIdUser", Parent: "User", Identity: "uid", Attributes: map[string]string{"uid": "string"}}))
	return ts
}

func TestTypesRegister(t *testing.T) {
	ts := NewTypes()
	assert.Error(t, ts.Register(Type{}))
	assert.Error(t, ts.Register(Type{Name: "Child", Parent: "Missing"}))
	require.NoError(t, ts.Register(Type{Name: "User"}))
	assert.Equal(t, []string{"User"}, ts.Names())
}

func TestTypesCompatible(t *testing.T) {
	ts := testTypes(t)
	tests := []struct {
		actual, expected string
		want             bool
	}{
		{"User", "User", true},
		{"AdminUser", "User", true},
		{"User", "AdminUser", true},
		{"SuperAdmin", "User", true},
		{"Account", "User", false},
		{"User", "Account", false},
		{"Unknown", "User", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.actual, tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.want, ts.Compatible(tt.actual, tt.expected))
		})
	}
}

func TestTypesAttributeType(t *testing.T) {
	ts := testTypes(t)

	assert.Equal(t, "integer", ts.AttributeType("User", ""))
	assert.Equal(t, "string", ts.AttributeType("User", "email_address"))
	assert.Equal(t, "string", ts.AttributeType("StringIdUser", ""))
	assert.Equal(t, "", ts.AttributeType("Account", ""))
	assert.Equal(t, "", ts.AttributeType("Missing", "id"))

	assert.Equal(t, "uid", ts.FindBy("StringIdUser", ""))
	assert.Equal(t, "email", ts.FindBy("StringIdUser", "email"))
	assert.Equal(t, "id", ts.FindBy("Missing", ""))
}

func TestTypesStorage(t *testing.T) {
	ts := NewTypes(Type{Name: "User", SoftDelete: "deleted_at"})
	require.NoError(t, ts.Register(Type{Name: "AdminUser", Parent: "User"}))
	require.NoError(t, ts.Register(Type{Name: "Person", Table: "people_v2"}))
	require.NoError(t, ts.Register(Type{Name: "Employee", Parent: "Person"}))

	assert.Equal(t, "users", ts.Table("User"))
	assert.Equal(t, "users", ts.Table("AdminUser"))
	assert.Equal(t, "people_v2", ts.Table("Employee"))
	assert.Equal(t, "business_accounts", ts.Table("BusinessAccount"))

	assert.Equal(t, "deleted_at", ts.SoftDelete("AdminUser"))
	assert.Equal(t, "", ts.SoftDelete("Person"))
}

func TestNotFound(t *testing.T) {
	q := Query{Type: "User", FindBy: "id", Key: int64(4)}
	err := NotFound(q)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "couldn't find User with id=4", err.Error())

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, q, nf.Query)
}

func TestRecord(t *testing.T) {
	r := NewRecord("User", map[string]any{"id": int64(1)})
	r.Set("email_address", "a@b.com")

	assert.Equal(t, "User", r.EntityType())
	v, ok := r.Attribute("email_address")
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)
	assert.Equal(t, []string{"email_address", "id"}, r.AttributeNames())
	assert.Equal(t, "User(#1)", r.String())

	r.Errors().Add("email_address", "is taken")
	assert.Equal(t, 1, r.Errors().Len())
}

func TestFinderFunc(t *testing.T) {
	var got Query
	f := FinderFunc(func(_ context.Context, q Query) (Entity, error) {
		got = q
		return NewRecord(q.Type, nil), nil
	})
	e, err := f.Find(context.Background(), Query{Type: "User", Key: 1})
	require.NoError(t, err)
	assert.Equal(t, "User", e.EntityType())
	assert.Equal(t, 1, got.Key)
}
