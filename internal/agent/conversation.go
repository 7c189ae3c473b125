package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/session"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/ashutoshrp06/logpilot/internal/validator"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultRunTimeout bounds one interactive question.
const DefaultRunTimeout = 120 * time.Second

// Conversation runs successive questions against one Orchestrator and
// keeps their history.
type Conversation struct {
	orch    *Orchestrator
	history *session.History
	input   *validator.InputValidator
	timeout time.Duration
	track   *types.Track
}

// NewConversation starts a conversation with history bounded to
// maxMessages.
func (o *Orchestrator) NewConversation(maxMessages int, timeout time.Duration) *Conversation {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Conversation{
		orch:    o,
		history: session.NewHistory(maxMessages),
		input:   validator.NewInputValidator(),
		timeout: timeout,
	}
}

// ForceTrack pins every following question to track.
func (c *Conversation) ForceTrack(track types.Track) {
	c.track = &track
}

// Unpin returns routing to the classifier.
func (c *Conversation) Unpin() {
	c.track = nil
}

// Ask validates query, runs it with the conversation history and records
// the new messages.
func (c *Conversation) Ask(ctx context.Context, query string) (*Result, error) {
	clean, err := c.input.Clean(query)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	prior := c.history.Messages()
	var res *Result
	if c.track != nil {
		res, err = c.orch.RunTrack(ctx, *c.track, clean, prior)
	} else {
		res, err = c.orch.Run(ctx, clean, prior)
	}
	if err != nil {
		return nil, err
	}

	c.history.Append(res.Messages[len(prior):]...)
	return res, nil
}

// ProcessQueryCmd returns a Bubble Tea command that answers query.
func (c *Conversation) ProcessQueryCmd(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		res, err := c.Ask(ctx, query)
		if err != nil {
			return types.AgentEvent{
				State: types.StateError,
				Error: err,
			}
		}
		ev := types.AgentEvent{
			State:       types.StateDone,
			Track:       res.Track,
			Hop:         res.Hops,
			FinalAnswer: res.Answer,
		}
		start := 0
		for i := len(res.Messages) - 1; i >= 0; i-- {
			if res.Messages[i].Role == types.RoleUser {
				start = i
				break
			}
		}
		for _, m := range res.Messages[start:] {
			switch {
			case m.Role == types.RoleTool:
				ev.ToolResults = append(ev.ToolResults, m)
			case m.HasToolCalls():
				ev.ToolCalls = append(ev.ToolCalls, m.ToolCalls...)
			}
		}
		return ev
	}
}

// History returns a copy of the conversation so far.
func (c *Conversation) History() []types.Message {
	return c.history.Messages()
}

// ClearHistory forgets earlier questions.
func (c *Conversation) ClearHistory() {
	c.history.Clear()
}
