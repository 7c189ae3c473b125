// Package tools provides the tool framework for logpilot: typed tool
// capabilities, a registry that tracks which source owns each tool, and an
// executor that turns model tool calls into tool result messages.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/types"
)

// LocalOwner is the owner recorded for tools implemented in-process.
const LocalOwner = "local"

// Tool defines the interface that all tools must implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Schema returns the argument schema used for validation.
	Schema() Schema

	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	ToolName        string
	ToolDescription string
	ArgSchema       Schema
	Fn              func(ctx context.Context, args map[string]any) (string, error)
}

func (f *Func) Name() string        { return f.ToolName }
func (f *Func) Description() string { return f.ToolDescription }
func (f *Func) Schema() Schema      { return f.ArgSchema }
func (f *Func) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.Fn(ctx, args)
}

// NewQueryTool builds a tool taking a single required "query" string.
func NewQueryTool(name, description string, fn func(ctx context.Context, query string) (string, error)) Tool {
	return &Func{
		ToolName:        name,
		ToolDescription: description,
		ArgSchema:       QuerySchema("What to search for"),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			return fn(ctx, query)
		},
	}
}

// Registry manages tool registration and lookup. It is written during
// startup and only read once runs begin.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	owners map[string]string
	order  []string
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		owners: make(map[string]string),
	}
}

// Register adds a local tool to the registry.
func (r *Registry) Register(tool Tool) error {
	return r.RegisterFrom(LocalOwner, tool)
}

// RegisterFrom adds a tool owned by the named source.
func (r *Registry) RegisterFrom(owner string, tool Tool) error {
	if tool == nil {
		return errors.New("nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool from %s has an empty name", owner)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.owners[name]; exists {
		return &DuplicateToolError{Name: name, Owner: owner, Existing: existing}
	}
	r.tools[name] = tool
	r.owners[name] = owner
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a local tool to the registry, panicking on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Owner returns the source that registered name.
func (r *Registry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[name]
	return owner, ok
}

// List returns registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns registered tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Merge returns a new registry holding the tools of r followed by those of
// others, keeping each tool's owner. Any name collision fails the merge.
func (r *Registry) Merge(others ...*Registry) (*Registry, error) {
	merged := NewRegistry()
	for _, src := range append([]*Registry{r}, others...) {
		if src == nil {
			continue
		}
		for _, name := range src.List() {
			tool, _ := src.Get(name)
			owner, _ := src.Owner(name)
			if err := merged.RegisterFrom(owner, tool); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

// Subset returns a registry restricted to names, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		tool, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		owner, _ := r.Owner(name)
		if err := sub.RegisterFrom(owner, tool); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// ListTools returns metadata for all registered tools.
func (r *Registry) ListTools() []types.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]types.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		infos = append(infos, types.ToolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			Owner:       r.owners[name],
			Schema:      tool.Schema().Map(),
		})
	}
	return infos
}

// Definitions returns the model-facing descriptors in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema().Map(),
		})
	}
	return defs
}
