package tools

import "fmt"

// UnknownToolText is the result text recorded for a call to a tool that is
// not registered.
const UnknownToolText = "unknown tool"

// UnknownToolError reports a request for a tool absent from the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// DuplicateToolError reports a name collision while building a registry.
type DuplicateToolError struct {
	Name     string
	Owner    string
	Existing string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q from %s already registered by %s", e.Name, e.Owner, e.Existing)
}

// ToolExecutionError wraps a failure raised while invoking a resolved tool,
// including argument validation failures.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ValidationError reports arguments that do not satisfy a tool schema.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid argument %s for %s: %s", e.Field, e.Tool, e.Reason)
}
