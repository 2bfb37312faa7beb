package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/schema"
)

type noop struct{ *op.Op }

func (noop) Perform(context.Context) error { return nil }

func makeEntry(name, source string) Entry {
	return Entry{Schema: schema.New(name).String("email").MustBuild(), Source: source}
}

func makeTyped(name string) Entry {
	e := makeEntry(name, "")
	e.Build = func(o *op.Op) op.Operation { return noop{o} }
	return e
}

func TestNew(t *testing.T) {
	r := New()
	if r.entries == nil {
		t.Error("entries map not initialized")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	if err := r.Register(makeTyped("signup")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	e, ok := r.Get("signup")
	if !ok {
		t.Fatal("Get() should find registered operation")
	}
	if e.Name() != "signup" {
		t.Errorf("Get().Name() = %s, want signup", e.Name())
	}
	if e.DataOnly() {
		t.Error("typed entry should not be data-only")
	}
}

func TestRegistry_Register_NoSchema(t *testing.T) {
	if err := New().Register(Entry{}); err == nil {
		t.Error("Register() should fail without a schema")
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := New()

	if err := r.Register(makeTyped("signup")); err != nil {
		t.Fatalf("First Register() error = %v", err)
	}

	err := r.Register(makeEntry("signup", "ops/signup.yaml"))
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Second Register() error = %v, want ConflictError", err)
	}
	if !ce.HasConflicts() {
		t.Error("HasConflicts() should be true")
	}
	if !strings.Contains(err.Error(), "registered by code and ops/signup.yaml") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRegistry_RegisterAll_Atomic(t *testing.T) {
	r := New()
	if err := r.Register(makeTyped("signup")); err != nil {
		t.Fatal(err)
	}

	err := r.RegisterAll([]Entry{makeEntry("invite", "a.yaml"), makeEntry("signup", "b.yaml")})
	if err == nil {
		t.Fatal("RegisterAll() should fail on a taken name")
	}
	if _, ok := r.Get("invite"); ok {
		t.Error("RegisterAll() should register nothing when it fails")
	}

	err = r.RegisterAll([]Entry{makeEntry("x", "a.yaml"), makeEntry("x", "b.yaml")})
	var ce *ConflictError
	if !errors.As(err, &ce) || len(ce.Conflicts) != 1 {
		t.Errorf("RegisterAll() duplicate in batch error = %v", err)
	}
}

func TestRegistry_ReplaceDataOnly(t *testing.T) {
	r := New()
	if err := r.RegisterAll([]Entry{makeTyped("signup"), makeEntry("old", "old.yaml")}); err != nil {
		t.Fatal(err)
	}

	if err := r.ReplaceDataOnly([]Entry{makeEntry("new", "new.yaml")}); err != nil {
		t.Fatalf("ReplaceDataOnly() error = %v", err)
	}
	if _, ok := r.Get("old"); ok {
		t.Error("old data-only entry should be gone")
	}
	if _, ok := r.Get("new"); !ok {
		t.Error("new entry should be registered")
	}
	if _, ok := r.Get("signup"); !ok {
		t.Error("typed entry should be kept")
	}

	if err := r.ReplaceDataOnly([]Entry{makeEntry("signup", "x.yaml")}); err == nil {
		t.Error("ReplaceDataOnly() should not shadow a typed entry")
	}
	if _, ok := r.Get("new"); !ok {
		t.Error("failed replace should keep the previous entries")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	if err := r.Register(makeTyped("signup")); err != nil {
		t.Fatal(err)
	}

	if err := r.Unregister("signup"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("signup"); ok {
		t.Error("Get() should not find unregistered operation")
	}
	if err := r.Unregister("signup"); err == nil {
		t.Error("Unregister() should fail for unknown operation")
	}
}

func TestRegistry_List(t *testing.T) {
	r := New()

	for _, name := range []string{"user", "plan", "key"} {
		if err := r.Register(makeEntry(name, "")); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d operations, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name() >= list[i].Name() {
			t.Error("List() should be sorted by name")
		}
	}

	schemas := r.Schemas()
	if len(schemas) != 3 || schemas[0].Name() != "key" {
		t.Errorf("Schemas() = %v", schemas)
	}
}
