package llm

import (
	"context"

	"github.com/ashutoshrp06/logpilot/internal/ollama"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/google/uuid"
)

// OllamaProvider uses Ollama's native chat API.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates an Ollama-backed provider.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	return &OllamaProvider{client: ollama.NewClient(ollama.Config{
		BaseURL:     cfg.Endpoint,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
	})}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Ping checks that the server answers.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Complete implements Provider. Ollama returns no call ids, so ids are
// generated here and mapped back to tool names on the next request.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (types.Message, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		om := ollama.Message{Role: string(m.Role), Content: m.Content}
		if m.Role == types.RoleTool {
			om.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollama.ToolCall{
				Function: ollama.ToolCallFunction{Name: tc.Name, Arguments: tc.Args},
			})
		}
		msgs = append(msgs, om)
	}

	tools := make([]ollama.Tool, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = ollama.Tool{
			Type: "function",
			Function: ollama.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	resp, err := p.client.Chat(ctx, msgs, tools)
	if err != nil {
		return types.Message{}, Unavailable(p.Name(), err)
	}

	out := types.Message{Role: types.RoleAssistant, Content: resp.Message.Content}
	for _, tc := range resp.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out, nil
}
