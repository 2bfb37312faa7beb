package typecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlank(t *testing.T) {
	var nilPtr *int
	tests := []struct {
		name  string
		input any
		want  bool
	}{
		{"nil", nil, true},
		{"false", false, true},
		{"true", true, false},
		{"empty string", "", true},
		{"whitespace", "  \t", true},
		{"string", "a", false},
		{"zero", 0, false},
		{"empty slice", []any{}, true},
		{"slice", []any{1}, false},
		{"empty map", map[string]any{}, true},
		{"nil pointer", nilPtr, true},
		{"empty bytes", []byte{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlank(tt.input))
		})
	}
}

func TestBag(t *testing.T) {
	bag, err := Bag(nil)
	assert.NoError(t, err)
	assert.Empty(t, bag)

	bag, err = Bag(fakeEnvelope{"a": fakeEnvelope{"b": 1}, "list": []any{fakeEnvelope{"c": 2}}})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a":    map[string]any{"b": 1},
		"list": []any{map[string]any{"c": 2}},
	}, bag)

	bag, err = Bag(map[string]string{"x": "y"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"x": "y"}, bag)

	_, err = Bag(42)
	assert.Error(t, err)
}
