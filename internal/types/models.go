// Package types defines shared data structures for logpilot.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry of a conversation. Messages are treated as values:
// once appended to a history they are never modified.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`

	// IsError marks a tool result that reports a failure.
	IsError bool `json:"is_error,omitempty"`
}

// SystemMessage returns a system instruction message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// ToolMessage returns the result message for the call with the given id.
func ToolMessage(callID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
		Timestamp:  time.Now(),
	}
}

// ToolErrorMessage returns a tool result reporting a failed call.
func ToolErrorMessage(callID, name, content string) Message {
	m := ToolMessage(callID, name, content)
	m.IsError = true
	return m
}

// HasToolCalls reports whether an assistant message requests tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// CloneMessages returns a copy of msgs that shares no slice backing array
// with the input.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Track is the backend category selected for a run.
type Track int

const (
	TrackDefault Track = iota
	TrackQueue
	TrackCache
)

// String returns the configuration name of the track.
func (t Track) String() string {
	switch t {
	case TrackQueue:
		return "queue"
	case TrackCache:
		return "cache"
	case TrackDefault:
		return "default"
	}
	return "unknown"
}

// ParseTrack parses a track name as produced by String.
func ParseTrack(s string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queue", "mq":
		return TrackQueue, nil
	case "cache", "redis":
		return TrackCache, nil
	case "default", "":
		return TrackDefault, nil
	}
	return TrackDefault, fmt.Errorf("unknown track %q", s)
}

// RetrievedChunk represents a log record retrieved from the vector store.
type RetrievedChunk struct {
	Content  string
	Score    float64
	Severity string
	Metadata map[string]interface{}
}

// AgentState represents the current state of an orchestrator run.
type AgentState int

const (
	StateIdle AgentState = iota
	StateRouting
	StateStepping
	StateToolExec
	StateDone
	StateError
)

// String returns a human-readable state name.
func (s AgentState) String() string {
	names := [...]string{
		"Idle",
		"Routing",
		"Thinking",
		"Executing tools",
		"Done",
		"Error",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// AgentEvent is emitted on every orchestrator transition to update the UI.
type AgentEvent struct {
	State       AgentState
	Track       Track
	Hop         int
	ToolCalls   []ToolCall
	ToolResults []Message
	FinalAnswer string
	Error       error
}

// ToolInfo contains metadata about a tool for display.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Schema      map[string]any `json:"schema"`
}
