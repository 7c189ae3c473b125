// Package session keeps the bounded conversation history of an interactive
// session.
package session

import (
	"sync"

	"github.com/ashutoshrp06/logpilot/internal/types"
)

// DefaultMaxMessages bounds history when no limit is configured.
const DefaultMaxMessages = 50

// History is a bounded, concurrency-safe message log. When trimmed, the
// oldest messages go first and tool results are never kept without the
// assistant message that requested them.
type History struct {
	messages    []types.Message
	maxMessages int
	mu          sync.RWMutex
}

func NewHistory(maxMessages int) *History {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &History{
		messages:    make([]types.Message, 0),
		maxMessages: maxMessages,
	}
}

// Append adds msgs and trims to the limit.
func (h *History) Append(msgs ...types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msgs...)

	if len(h.messages) > h.maxMessages {
		cut := len(h.messages) - h.maxMessages
		for cut < len(h.messages) && h.messages[cut].Role == types.RoleTool {
			cut++
		}
		h.messages = append([]types.Message(nil), h.messages[cut:]...)
	}
}

// Messages returns a copy of the history.
func (h *History) Messages() []types.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return types.CloneMessages(h.messages)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = make([]types.Message, 0)
}
