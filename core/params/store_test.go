package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/typecast"
)

func registryCast(f *schema.Field, v any) (any, error) {
	return typecast.Default().Cast(v, f.CastOptions())
}

func infoSchema() *schema.Schema {
	return schema.New("op").
		String("email", schema.Options{Groups: []string{"info"}}).
		String("name", schema.Options{Default: "anon", Groups: []string{"info", "profile"}}).
		Integer("age", schema.Options{Default: "21"}).
		Boolean("admin", schema.Options{MassAssignable: schema.Bool(false)}).
		Hash("settings", schema.Options{Default: map[string]any{"theme": "dark"}}).
		MustBuild()
}

func TestSetup(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(map[string]any{"email": "a@b.com", "age": "42", "extra": 1}))

	assert.Equal(t, map[string]any{"email": "a@b.com", "age": "42", "extra": 1}, st.Original())
	assert.Equal(t, map[string]any{"email": "a@b.com", "age": int64(42)}, st.Params())
	assert.Equal(t, map[string]any{"name": "anon", "settings": map[string]any{"theme": "dark"}}, st.Defaults())

	assert.True(t, st.Provided("email"))
	assert.True(t, st.Provided("age"))
	assert.False(t, st.Provided("name"))

	v, ok := st.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "anon", v)
	assert.False(t, st.Provided("name"), "reading must not mark provenance")
}

func TestSetupMassAssignment(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	err := st.Setup(map[string]any{"admin": true})

	var mae *MassAssignmentError
	require.True(t, errors.As(err, &mae))
	assert.Equal(t, "admin", mae.Field)
	assert.Equal(t, "`admin` is not mass assignable", mae.Error())

	st = New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(nil))
	require.NoError(t, st.Set("admin", "yes", true))
	v, _ := st.Get("admin")
	assert.Equal(t, true, v)
}

func TestProvidedNilOverridesDefault(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(map[string]any{"name": nil}))

	v, ok := st.Get("name")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.True(t, st.Provided("name"))
}

func TestDefaultsAreNotShared(t *testing.T) {
	s := infoSchema()
	a := New(s, registryCast, false)
	b := New(s, registryCast, false)
	require.NoError(t, a.Setup(nil))
	require.NoError(t, b.Setup(nil))

	av, _ := a.Get("settings")
	av.(map[string]any)["theme"] = "light"

	bv, _ := b.Get("settings")
	assert.Equal(t, "dark", bv.(map[string]any)["theme"])

	f, _ := s.Field("settings")
	declared, _ := f.Default()
	assert.Equal(t, "dark", declared.(map[string]any)["theme"])
}

func TestCastErrorsAreQualified(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(nil))

	err := st.Set("age", "not a number at all", true)
	require.NoError(t, err, "non numeric text casts to zero")

	s := schema.New("op").Date("born").MustBuild()
	st = New(s, registryCast, false)
	err = st.Setup(map[string]any{"born": "2020-13-45"})
	var ce *typecast.Error
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Error(), "Error during assignment of field `born`: ")

	s = schema.New("op").Date("born", schema.Options{Default: "nope"}).MustBuild()
	st = New(s, registryCast, false)
	err = st.Setup(nil)
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Error(), "Error for default `born`: ")
}

func TestUnknownField(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	err := st.Set("nope", 1, true)
	var ue *UnknownFieldError
	assert.True(t, errors.As(err, &ue))
}

func TestGroupViews(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(map[string]any{"email": "a@b.com", "age": 30}))

	assert.Equal(t, map[string]any{"email": "a@b.com"}, st.GroupParams("info"))
	assert.Equal(t, map[string]any{"name": "anon"}, st.GroupDefaultParams("info"))
	assert.Equal(t, map[string]any{"email": "a@b.com", "name": "anon"}, st.GroupParamsWithDefaults("info"))
	assert.Equal(t, map[string]any{"age": int64(30)}, st.WithoutGroupParams("info"))
	assert.Equal(t, map[string]any{"name": "anon"}, st.GroupParamsWithDefaults("profile"))
	assert.Empty(t, st.GroupParams("missing"))

	require.NoError(t, st.Set("name", "bob", true))
	assert.Equal(t, map[string]any{"email": "a@b.com", "name": "bob"}, st.GroupParams("info"))
	assert.Equal(t, map[string]any{"name": "bob"}, st.GroupParams("profile"))
}

func TestIncludeDefaults(t *testing.T) {
	st := New(infoSchema(), registryCast, true)
	require.NoError(t, st.Setup(map[string]any{"email": "a@b.com"}))

	assert.Equal(t, map[string]any{
		"email":    "a@b.com",
		"name":     "anon",
		"age":      int64(21),
		"settings": map[string]any{"theme": "dark"},
	}, st.Params())
	assert.Equal(t, map[string]any{"email": "a@b.com", "name": "anon"}, st.GroupParams("info"))
	assert.Equal(t, map[string]any{
		"age":      int64(21),
		"settings": map[string]any{"theme": "dark"},
	}, st.WithoutGroupParams("info"))
	assert.Equal(t, map[string]any{"email": "a@b.com"}, st.ProvidedParams())

	v, ok := st.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "anon", v)
	assert.False(t, st.Provided("name"))
}

func TestViewsInvalidateOnWrite(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(nil))

	assert.Empty(t, st.Params())
	require.NoError(t, st.Set("email", "x@y.z", true))
	assert.Equal(t, map[string]any{"email": "x@y.z"}, st.Params())

	st.Clear("email")
	assert.Empty(t, st.Params())
	assert.Empty(t, st.GroupParams("info"))
	assert.Equal(t, map[string]any{}, st.Params())

	require.NoError(t, st.Set("name", "fallback", false))
	v, _ := st.Get("name")
	assert.Equal(t, "fallback", v)
	assert.False(t, st.Provided("name"))
}

func TestViewsReturnCopies(t *testing.T) {
	st := New(infoSchema(), registryCast, false)
	require.NoError(t, st.Setup(map[string]any{"email": "a@b.com"}))

	p := st.Params()
	p["email"] = "mutated"
	assert.Equal(t, "a@b.com", st.Params()["email"])
}
