package tools

import (
	"context"
	"errors"
	"testing"
)

// MockTool for testing the framework
type MockTool struct {
	name        string
	description string
	schema      Schema
	execFunc    func(ctx context.Context, args map[string]any) (string, error)
}

func (m *MockTool) Name() string        { return m.name }
func (m *MockTool) Description() string { return m.description }
func (m *MockTool) Schema() Schema      { return m.schema }
func (m *MockTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, args)
	}
	return "mock output", nil
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	tool := &MockTool{name: "test-tool", description: "A test tool"}

	if err := registry.Register(tool); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	err := registry.Register(tool)
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if dup.Name != "test-tool" || dup.Existing != LocalOwner {
		t.Fatalf("unexpected duplicate error fields: %+v", dup)
	}
}

func TestRegistry_RegisterRejectsEmptyName(t *testing.T) {
	if err := NewRegistry().Register(&MockTool{}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "test-tool"})

	found, err := registry.Resolve("test-tool")
	if err != nil {
		t.Fatalf("expected to find tool, got %v", err)
	}
	if found.Name() != "test-tool" {
		t.Fatalf("expected 'test-tool', got %s", found.Name())
	}

	_, err = registry.Resolve("nonexistent")
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) || unknown.Name != "nonexistent" {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
}

func TestRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		registry.MustRegister(&MockTool{name: name})
	}

	names := registry.List()
	want := []string{"c", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRegistry_MergeKeepsOwners(t *testing.T) {
	local := NewRegistry()
	local.MustRegister(&MockTool{name: "x"})
	local.MustRegister(&MockTool{name: "y"})

	remote := NewRegistry()
	if err := remote.RegisterFrom("splunk", &MockTool{name: "z"}); err != nil {
		t.Fatal(err)
	}

	merged, err := local.Merge(remote)
	if err != nil {
		t.Fatalf("expected merge to succeed, got %v", err)
	}
	if merged.Len() != 3 {
		t.Fatalf("expected 3 tools, got %d", merged.Len())
	}
	if owner, _ := merged.Owner("z"); owner != "splunk" {
		t.Fatalf("expected owner splunk, got %q", owner)
	}
	if owner, _ := merged.Owner("x"); owner != LocalOwner {
		t.Fatalf("expected owner local, got %q", owner)
	}
}

func TestRegistry_MergeCollisionFailsEitherOrder(t *testing.T) {
	a := NewRegistry()
	a.MustRegister(&MockTool{name: "x"})
	b := NewRegistry()
	if err := b.RegisterFrom("splunk", &MockTool{name: "x"}); err != nil {
		t.Fatal(err)
	}

	for _, pair := range [][2]*Registry{{a, b}, {b, a}} {
		_, err := pair[0].Merge(pair[1])
		var dup *DuplicateToolError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateToolError, got %v", err)
		}
	}
}

func TestRegistry_Subset(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "a"})
	registry.MustRegister(&MockTool{name: "b"})

	sub, err := registry.Subset("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", sub.Len())
	}

	if _, err := registry.Subset("missing"); err == nil {
		t.Fatal("expected error for missing tool")
	}
}

func TestNewQueryTool(t *testing.T) {
	tool := NewQueryTool("echo", "Echo the query", func(ctx context.Context, query string) (string, error) {
		return "got " + query, nil
	})

	if err := tool.Schema().Validate(map[string]any{}); err == nil {
		t.Fatal("expected query to be required")
	}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "errors"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "got errors" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRegistry_ListTools(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "a", description: "first", schema: QuerySchema("q")})

	infos := registry.ListTools()
	if len(infos) != 1 {
		t.Fatalf("expected 1 tool info, got %d", len(infos))
	}
	if infos[0].Owner != LocalOwner || infos[0].Description != "first" {
		t.Fatalf("unexpected info %+v", infos[0])
	}
	if infos[0].Schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", infos[0].Schema["type"])
	}
}

func TestRegistry_Definitions(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "b", description: "second", schema: QuerySchema("q")})
	registry.MustRegister(&MockTool{name: "a", description: "first"})

	defs := registry.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "b" || defs[1].Name != "a" {
		t.Fatalf("expected registration order, got %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[0].Parameters["type"] != "object" {
		t.Fatalf("expected object schema, got %v", defs[0].Parameters)
	}
}
