package tools

import (
	"errors"
	"testing"
)

func TestSchema_Validate(t *testing.T) {
	schema := Schema{
		Type: "object",
		Properties: map[string]Property{
			"query": {Type: "string"},
			"limit": {Type: "integer"},
			"level": {Type: "string", Enum: []string{"E", "W"}},
			"raw":   {Type: "boolean"},
		},
		Required: []string{"query"},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"valid", map[string]any{"query": "x", "limit": 5, "level": "E"}, ""},
		{"json float integer", map[string]any{"query": "x", "limit": float64(3)}, ""},
		{"unknown field ignored", map[string]any{"query": "x", "other": 1}, ""},
		{"missing required", map[string]any{}, "query"},
		{"wrong type", map[string]any{"query": 1}, "query"},
		{"fractional integer", map[string]any{"query": "x", "limit": 1.5}, "limit"},
		{"enum", map[string]any{"query": "x", "level": "I"}, "level"},
		{"bool", map[string]any{"query": "x", "raw": "yes"}, "raw"},
	}

	for _, tt := range tests {
		err := schema.Validate(tt.args)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
			continue
		}
		if ve.Field != tt.wantErr {
			t.Errorf("%s: field = %s, want %s", tt.name, ve.Field, tt.wantErr)
		}
	}
}

func TestSchema_ApplyDefaults(t *testing.T) {
	schema := Schema{
		Properties: map[string]Property{
			"limit": {Type: "integer", Default: 10},
			"query": {Type: "string"},
		},
	}
	args := map[string]any{"query": "x"}

	out := schema.ApplyDefaults(args)
	if out["limit"] != 10 {
		t.Fatalf("expected default limit, got %v", out["limit"])
	}
	if _, ok := args["limit"]; ok {
		t.Fatal("ApplyDefaults mutated its input")
	}
}

func TestSchemaFrom_RoundTrip(t *testing.T) {
	original := QuerySchema("search text")

	parsed, err := SchemaFrom(original.Map())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != "object" {
		t.Fatalf("expected object type, got %s", parsed.Type)
	}
	if parsed.Properties["query"].Type != "string" {
		t.Fatalf("expected string query, got %+v", parsed.Properties["query"])
	}
	if len(parsed.Required) != 1 || parsed.Required[0] != "query" {
		t.Fatalf("unexpected required %v", parsed.Required)
	}

	empty, err := SchemaFrom(nil)
	if err != nil || empty.Type != "object" {
		t.Fatalf("expected empty object schema, got %+v, %v", empty, err)
	}
}
