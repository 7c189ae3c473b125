// Package llm adapts model providers to a single tool-calling interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/types"
	"go.uber.org/zap"
)

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one completion call. Messages may start with a system
// message; providers that keep the system prompt separate extract it.
type Request struct {
	Messages []types.Message
	Tools    []ToolDefinition
}

// Provider is a chat model able to request tool calls.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete returns the assistant reply to req.
	Complete(ctx context.Context, req Request) (types.Message, error)
}

// Pinger is implemented by providers that support a cheap health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelUnavailableError reports a failed model call.
type ModelUnavailableError struct {
	Provider string
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Provider, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err unless it already is a ModelUnavailableError.
func Unavailable(provider string, err error) error {
	if err == nil {
		return nil
	}
	var mu *ModelUnavailableError
	if errors.As(err, &mu) {
		return err
	}
	return &ModelUnavailableError{Provider: provider, Err: err}
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// New builds the provider named by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case "openai", "vllm", "":
		p = NewOpenAIProvider(cfg)
	case "anthropic":
		p = NewAnthropicProvider(cfg)
	case "ollama":
		p = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	logger.Debug("Model provider ready",
		zap.String("provider", p.Name()),
		zap.String("model", cfg.Model))
	return p, nil
}

// encodeArgs renders tool arguments as the JSON object string providers
// exchange on the wire.
func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeArgs parses a JSON argument string. Unparseable input is kept under
// "query" so a query-style tool still receives the text.
func decodeArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{"query": raw}
	}
	return args
}

// splitSystem separates leading system messages from the conversation.
func splitSystem(msgs []types.Message) (string, []types.Message) {
	var system []string
	rest := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
