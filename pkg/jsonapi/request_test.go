package jsonapi

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeAttributes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]any
		wantErr bool
	}{
		{"empty body", "", map[string]any{}, false},
		{"null", "null", map[string]any{}, false},
		{"plain object", `{"email":"a@example.com"}`, map[string]any{"email": "a@example.com"}, false},
		{"document", `{"data":{"type":"SignupOp","attributes":{"email":"a@example.com"}}}`, map[string]any{"email": "a@example.com"}, false},
		{"document with meta", `{"data":{"attributes":{"x":"y"}},"meta":{}}`, map[string]any{"x": "y"}, false},
		{"field named data", `{"data":{"attributes":{"x":"y"}},"email":"e"}`, nil, false},
		{"integers keep precision", `{"id":9007199254740993}`, map[string]any{"id": json.Number("9007199254740993")}, false},
		{"malformed", `{"email":`, nil, true},
		{"array", `[1,2]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAttributes(strings.NewReader(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeAttributes error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.want == nil {
				if _, ok := got["email"]; !ok {
					t.Errorf("got %v, want the whole object", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
