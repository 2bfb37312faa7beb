package accounts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/subroutine/adapters/clock"
	"github.com/artpar/subroutine/adapters/hasher"
	apihttp "github.com/artpar/subroutine/adapters/http"
	"github.com/artpar/subroutine/adapters/memory"
	"github.com/artpar/subroutine/app/accounts"
	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/runtime"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/pkg/jsonapi"
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	env   op.Env
	users *memory.UserStore
	svc   *accounts.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	types := entity.NewTypes(accounts.Types()...)
	users := memory.NewUserStore(types)
	env := op.Env{Finder: users, Types: types, Clock: clock.NewFake(epoch)}.Prepare()
	return fixture{
		env:   env,
		users: users,
		svc:   accounts.NewService(users, hasher.Plain{}, zerolog.Nop()),
	}
}

func (f fixture) build(t *testing.T, s *schema.Schema, userType string, inputs map[string]any) op.Operation {
	t.Helper()
	o, err := op.New(f.env, s, inputs)
	require.NoError(t, err)
	return f.svc.Factory(userType)(o)
}

func TestSignup_Blank(t *testing.T) {
	f := setup(t)

	x := f.build(t, accounts.SignupSchema, accounts.TypeUser, map[string]any{})
	ok, err := op.TrySubmit(context.Background(), x)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"can't be blank"}, x.Base().Errors().On("email"))
	assert.False(t, x.Base().HasOutput("perform_called"))
}

func TestSignup_MissingPassword(t *testing.T) {
	f := setup(t)

	x := f.build(t, accounts.SignupSchema, accounts.TypeUser, map[string]any{"email": "foo@bar.com"})
	err := op.Submit(context.Background(), x)
	require.Error(t, err)
	assert.Equal(t, "Password can't be blank", err.Error())

	b, ok := record.AsBearer(err)
	require.True(t, ok)
	assert.Equal(t, []string{"can't be blank"}, b.Record().Errors().On("password"))
}

func TestSignup_Success(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	x := f.build(t, accounts.SignupSchema, accounts.TypeUser, map[string]any{
		"email":    "a@b.com",
		"password": "pw123456",
	})
	require.NoError(t, op.Submit(ctx, x))

	o := x.Base()
	called, err := o.GetOutput("perform_called")
	require.NoError(t, err)
	assert.Equal(t, true, called)
	finished, err := o.GetOutput("perform_finished")
	require.NoError(t, err)
	assert.Equal(t, true, finished)

	out, err := o.GetOutput("created_user")
	require.NoError(t, err)
	created := out.(*entity.Record)
	assert.Equal(t, accounts.TypeUser, created.EntityType())
	email, _ := created.Attribute("email_address")
	assert.Equal(t, "a@b.com", email)
	createdAt, _ := created.Attribute("created_at")
	assert.Equal(t, epoch, createdAt)

	stored, err := f.users.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	id, _ := created.Attribute("id")
	assert.Equal(t, stored.ID, id)
	assert.Equal(t, "pw123456", stored.PasswordHash)
}

func TestSignup_EmailTaken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inputs := map[string]any{"email": "a@b.com", "password": "pw123456"}

	require.NoError(t, op.Submit(ctx, f.build(t, accounts.SignupSchema, accounts.TypeUser, inputs)))

	x := f.build(t, accounts.SignupSchema, accounts.TypeUser, inputs)
	ok, err := op.TrySubmit(ctx, x)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{accounts.MessageTaken}, x.Base().Errors().On("email"))

	count, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAdminSignup_ModelErrors(t *testing.T) {
	f := setup(t)

	x := f.build(t, accounts.AdminSignupSchema, accounts.TypeAdmin, map[string]any{
		"email":    "foo@bar.com",
		"password": "password123",
	})
	ok, err := op.TrySubmit(context.Background(), x)
	require.NoError(t, err)
	assert.False(t, ok)

	o := x.Base()
	called, err := o.GetOutput("perform_called")
	require.NoError(t, err)
	assert.Equal(t, true, called)
	assert.False(t, o.HasOutput("perform_finished"))
	assert.Equal(t, []string{"has gotta be @admin.com"}, o.Errors().On("email"))
	assert.Empty(t, o.Errors().On("email_address"))
}

func TestAdminSignup_Defaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	x := f.build(t, accounts.AdminSignupSchema, accounts.TypeAdmin, map[string]any{"email": "foo"})
	o := x.Base()
	assert.Equal(t, map[string]any{"email": "foo"}, o.Params())
	assert.Equal(t, map[string]any{"privileges": "min"}, o.Defaults())

	x = f.build(t, accounts.AdminSignupSchema, accounts.TypeAdmin, map[string]any{
		"email":    "root@admin.com",
		"password": "password123",
	})
	require.NoError(t, op.Submit(ctx, x))

	stored, err := f.users.GetByEmail(ctx, "root@admin.com")
	require.NoError(t, err)
	assert.Equal(t, accounts.TypeAdmin, stored.Type)
	assert.Equal(t, accounts.DefaultPrivileges, stored.Privileges)
}

func TestBusinessSignup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.Equal(t, []string{"business_name", "email", "password"}, accounts.BusinessSignupSchema.FieldNames())

	x := f.build(t, accounts.BusinessSignupSchema, accounts.TypeUser, map[string]any{
		"email":    "owner@acme.com",
		"password": "password123",
	})
	ok, err := op.TrySubmit(ctx, x)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"can't be blank"}, x.Base().Errors().On("business_name"))

	x = f.build(t, accounts.BusinessSignupSchema, accounts.TypeUser, map[string]any{
		"business_name": "Acme",
		"email":         "owner@acme.com",
		"password":      "password123",
	})
	require.NoError(t, op.Submit(ctx, x))

	stored, err := f.users.GetByEmail(ctx, "owner@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.Business)
}

func TestRegister(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rt := runtime.New(runtime.Config{Env: f.env, Logger: zerolog.Nop()})
	require.NoError(t, accounts.Register(rt, f.svc))

	var names []string
	for _, e := range rt.Registry().List() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"admin_signup", "business_signup", "signup"}, names)

	res, err := rt.Execute(ctx, "signup", runtime.Input{Data: map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, map[string][]string{
		"email":    {"can't be blank"},
		"password": {"can't be blank"},
	}, res.Errors)

	res, err = rt.Execute(ctx, "signup", runtime.Input{Data: map[string]any{
		"email":    "a@b.com",
		"password": "pw123456",
	}})
	require.NoError(t, err)
	assert.Equal(t, true, res.Outputs["perform_finished"])

	// signing up while signed in is refused
	_, err = rt.Execute(ctx, "signup", runtime.Input{
		Data: map[string]any{"email": "c@d.com", "password": "pw123456"},
		User: int64(1),
	})
	require.Error(t, err)
	_, failed := record.AsBearer(err)
	assert.False(t, failed)
}

func TestSignup_HTTP(t *testing.T) {
	f := setup(t)

	rt := runtime.New(runtime.Config{Env: f.env, Logger: zerolog.Nop()})
	require.NoError(t, accounts.Register(rt, f.svc))
	router := apihttp.NewRouter(apihttp.NewOperationHandler(rt, zerolog.Nop()), zerolog.Nop(), apihttp.RouterConfig{})

	post := func(body string) (int, jsonapi.Document) {
		req := httptest.NewRequest(http.MethodPost, "/ops/admin_signup", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		var doc jsonapi.Document
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
		return w.Code, doc
	}

	code, doc := post(`{"email":"foo@bar.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "Email has gotta be @admin.com", doc.Errors[0].Detail)
	require.NotNil(t, doc.Errors[0].Source)
	assert.Equal(t, "/data/attributes/email", doc.Errors[0].Source.Pointer)

	code, doc = post(`{"email":"root@admin.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, code)
	data := doc.Data.(map[string]any)
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, true, attrs["perform_finished"])
	created := attrs["created_user"].(map[string]any)
	assert.Equal(t, accounts.TypeAdmin, created["Type"])
}
