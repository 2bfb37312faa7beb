package expression_test

import (
	"testing"

	"github.com/artpar/subroutine/core/expression"
)

func TestEvaluator_Bool(t *testing.T) {
	e := expression.New()

	tests := []struct {
		name string
		expr string
		env  map[string]any
		want bool
	}{
		{"field comparison", "strict == true", map[string]any{"strict": true}, true},
		{"false comparison", "strict == true", map[string]any{"strict": false}, false},
		{"undefined is nil", "missing == nil", map[string]any{}, true},
		{"nil result", "missing", map[string]any{}, false},
		{"present", "present(email)", map[string]any{"email": "a@b.com"}, true},
		{"blank", "blank(email)", map[string]any{"email": "  "}, true},
		{"truthy", "truthy(flag)", map[string]any{"flag": "yes"}, true},
		{"lower", `lower(plan) == "pro"`, map[string]any{"plan": "PRO"}, true},
		{"trim", `trim(name) == "x"`, map[string]any{"name": " x "}, true},
		{"coalesce", `coalesce(a, b) == "b"`, map[string]any{"a": "", "b": "b"}, true},
		{"env func", `provided("email")`, map[string]any{"provided": func(name string) bool { return name == "email" }}, true},
		{"arithmetic", "count > 2", map[string]any{"count": int64(3)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Bool(tt.expr, tt.env)
			if err != nil {
				t.Fatalf("Bool(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Bool(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluator_NonBoolResult(t *testing.T) {
	if _, err := expression.New().Bool(`"text"`, nil); err == nil {
		t.Error("expected error for a string result")
	}
}

func TestEvaluator_Compile(t *testing.T) {
	e := expression.New()

	if err := e.Compile("a == 1"); err != nil {
		t.Errorf("Compile valid: %v", err)
	}
	if err := e.Compile("a == == 1"); err == nil {
		t.Error("Compile should reject invalid syntax")
	}
}

func TestDefault_Shared(t *testing.T) {
	if expression.Default() != expression.Default() {
		t.Error("Default should return the same evaluator")
	}
}
