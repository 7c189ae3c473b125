package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Schema is the subset of JSON Schema used to describe tool arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// QuerySchema is the schema of tools that take a single free-text query.
func QuerySchema(description string) Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"query": {Type: "string", Description: description},
		},
		Required: []string{"query"},
	}
}

// Validate checks required fields, primitive types and enum membership.
// Unknown fields are accepted.
func (s Schema) Validate(args map[string]any) error {
	for _, field := range s.Required {
		if _, ok := args[field]; !ok {
			return &ValidationError{Field: field, Reason: "required"}
		}
	}

	// Sorted for deterministic error reporting.
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, ok := s.Properties[key]
		if !ok {
			continue
		}
		value := args[key]
		if prop.Type != "" {
			if err := checkType(value, prop.Type); err != nil {
				return &ValidationError{Field: key, Reason: err.Error()}
			}
		}
		if len(prop.Enum) > 0 {
			str, _ := value.(string)
			if !slices.Contains(prop.Enum, str) {
				return &ValidationError{Field: key, Reason: fmt.Sprintf("must be one of %v", prop.Enum)}
			}
		}
	}
	return nil
}

// ApplyDefaults returns a copy of args with defaults filled in for missing
// fields.
func (s Schema) ApplyDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for name, prop := range s.Properties {
		if _, ok := out[name]; !ok && prop.Default != nil {
			out[name] = prop.Default
		}
	}
	return out
}

// Map returns the schema as a generic JSON-schema document.
func (s Schema) Map() map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{}
		if p.Type != "" {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = append([]string(nil), p.Enum...)
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
	}
	m := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(s.Required) > 0 {
		m["required"] = append([]string(nil), s.Required...)
	}
	return m
}

// SchemaFrom converts an arbitrary JSON-schema value, such as the input
// schema advertised by a remote tool, into a Schema.
func SchemaFrom(v any) (Schema, error) {
	if v == nil {
		return Schema{Type: "object"}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Schema{}, fmt.Errorf("marshal schema: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("decode schema: %w", err)
	}
	if s.Type == "" {
		s.Type = "object"
	}
	return s, nil
}

func checkType(value any, expected string) error {
	ok := false
	switch expected {
	case "string":
		_, ok = value.(string)
	case "number":
		ok = isNumber(value)
	case "integer":
		ok = isInteger(value)
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]any)
	case "array":
		_, ok = value.([]any)
	case "null":
		ok = value == nil
	default:
		// Types outside the supported subset are not enforced.
		return nil
	}
	if !ok {
		return fmt.Errorf("expected %s but got %T", expected, value)
	}
	return nil
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
