// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxToolOutput caps tool output shown in a tool box.
const maxToolOutput = 300

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	styles    Styles

	state    types.AgentState
	messages []chatMessage
	width    int
	height   int
	ready    bool
	quitting bool
	err      error

	processQuery func(query string) tea.Cmd
	clear        func()
	tools        []types.ToolInfo
}

type chatMessage struct {
	role    string // "user", "assistant", "system", "tool"
	content string
	track   types.Track
	tool    *toolExecution
}

type toolExecution struct {
	name   string
	args   map[string]any
	output string
	failed bool
}

// Option configures a Model.
type Option func(*Model)

// WithTools lists tools for the "tools" command.
func WithTools(infos []types.ToolInfo) Option {
	return func(m *Model) { m.tools = infos }
}

// WithClear is called by the "clear" command to reset conversation state.
func WithClear(fn func()) Option {
	return func(m *Model) { m.clear = fn }
}

// NewModel creates a new UI model.
func NewModel(processQuery func(query string) tea.Cmd, opts ...Option) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about your logs... (e.g., 'show the latest mq errors')"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80
	ti.TextStyle = styles.Input
	ti.Cursor.Style = styles.Cursor

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.DefaultKeyMap()

	m := Model{
		textInput:    ti,
		spinner:      s,
		viewport:     vp,
		styles:       styles,
		state:        types.StateIdle,
		messages:     make([]chatMessage, 0),
		processQuery: processQuery,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m Model) headerHeight() int {
	banner := m.styles.BannerTitle.Render(Banner())
	return lipgloss.Height(banner) + 2
}

// blank line, prompt, newline, help bar
func (m Model) footerHeight() int {
	return 4
}

// updateViewport rebuilds the viewport content and scrolls to the bottom.
func (m *Model) updateViewport() {
	var b strings.Builder

	for _, msg := range m.messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.state != types.StateIdle {
		b.WriteString(m.renderStatus())
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == types.StateIdle {
				m.quitting = true
				return m, tea.Quit
			}
			m.state = types.StateIdle
			return m, nil

		case tea.KeyEnter:
			if m.state != types.StateIdle {
				return m, nil
			}

			query := strings.TrimSpace(m.textInput.Value())
			if query == "" {
				return m, nil
			}

			if handled, cmd := m.handleCommand(query); handled {
				m.updateViewport()
				return m, cmd
			}

			m.messages = append(m.messages, chatMessage{
				role:    "user",
				content: query,
			})

			m.textInput.SetValue("")
			m.state = types.StateStepping
			m.updateViewport()

			if m.processQuery != nil {
				cmds = append(cmds, m.processQuery(query))
			}

			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10

		vpHeight := msg.Height - m.headerHeight() - m.footerHeight()
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.viewport.KeyMap = viewport.DefaultKeyMap()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}

		m.ready = true
		m.updateViewport()

	case types.AgentEvent:
		nm := m.handleAgentEvent(msg)
		nm.updateViewport()
		return nm, nm.spinner.Tick

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		m.updateViewport()
	}

	if m.state == types.StateIdle {
		var tiCmd tea.Cmd
		m.textInput, tiCmd = m.textInput.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleCommand processes built-in commands. It reports whether input was
// a command.
func (m *Model) handleCommand(input string) (bool, tea.Cmd) {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		m.quitting = true
		return true, tea.Quit

	case "clear":
		m.messages = make([]chatMessage, 0)
		if m.clear != nil {
			m.clear()
		}

	case "help", "?":
		m.messages = append(m.messages, chatMessage{
			role: "system",
			content: `Available commands:
  help, ?     Show this help
  tools       List available tools
  clear       Clear chat history
  exit, quit  Exit

Example queries:
  "Show the latest MQ errors for channel TO.QM2"
  "Any recent redis timeouts?"
  "Find critical errors in the ACE integration server"`,
		})

	case "tools":
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: formatTools(m.tools),
		})

	default:
		return false, nil
	}

	m.textInput.SetValue("")
	return true, nil
}

func formatTools(infos []types.ToolInfo) string {
	if len(infos) == 0 {
		return "No tools available."
	}

	byOwner := make(map[string][]types.ToolInfo)
	owners := make([]string, 0)
	for _, info := range infos {
		if _, ok := byOwner[info.Owner]; !ok {
			owners = append(owners, info.Owner)
		}
		byOwner[info.Owner] = append(byOwner[info.Owner], info)
	}
	sort.Strings(owners)

	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, owner := range owners {
		fmt.Fprintf(&b, "\n  %s:\n", owner)
		for _, info := range byOwner[owner] {
			fmt.Fprintf(&b, "    %-24s %s\n", info.Name, info.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// handleAgentEvent folds an orchestrator event into the transcript.
func (m Model) handleAgentEvent(event types.AgentEvent) Model {
	m.state = event.State

	switch event.State {
	case types.StateDone:
		results := make(map[string]types.Message, len(event.ToolResults))
		for _, r := range event.ToolResults {
			results[r.ToolCallID] = r
		}
		for _, call := range event.ToolCalls {
			r := results[call.ID]
			m.messages = append(m.messages, chatMessage{
				role: "tool",
				tool: &toolExecution{name: call.Name, args: call.Args, output: r.Content, failed: r.IsError},
			})
		}
		if event.FinalAnswer != "" {
			m.messages = append(m.messages, chatMessage{
				role:    "assistant",
				content: event.FinalAnswer,
				track:   event.Track,
			})
		}
		m.state = types.StateIdle

	case types.StateError:
		m.err = event.Error
		text := "An error occurred"
		if event.Error != nil {
			text = event.Error.Error()
		}
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: fmt.Sprintf("Error: %s", text),
		})
		m.state = types.StateIdle
	}

	return m
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return m.styles.SystemMessage.Render("Goodbye!\n")
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.styles.BannerTitle.Render(Banner()))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.styles.Prompt.Render("> "))
	if m.state == types.StateIdle {
		b.WriteString(m.textInput.View())
	} else {
		b.WriteString(m.styles.StatusText.Render("(processing...)"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return m.styles.App.Render(b.String())
}

func (m Model) renderMessage(msg chatMessage) string {
	switch msg.role {
	case "user":
		return m.styles.UserMessage.Render("You: " + msg.content)

	case "assistant":
		label := m.styles.TrackLabel.Render("[" + msg.track.String() + "]")
		return label + "\n" + m.styles.AssistantMessage.Render("Assistant: "+msg.content)

	case "system":
		return m.styles.SystemMessage.Render(msg.content)

	case "tool":
		if msg.tool != nil {
			return m.renderToolResult(msg.tool)
		}
	}
	return ""
}

func (m Model) renderToolResult(t *toolExecution) string {
	var b strings.Builder

	b.WriteString(m.styles.ToolName.Render("Tool: " + t.name))
	if params := formatArgs(t.args); params != "" {
		b.WriteString(" ")
		b.WriteString(m.styles.ToolParams.Render("(" + params + ")"))
	}

	output := t.output
	if t.failed {
		b.WriteString(" ")
		b.WriteString(m.styles.ToolError.Render("✗"))
		b.WriteString("\n")
		b.WriteString(m.styles.ToolError.Render("  Failed: " + output))
		b.WriteString("\n")
		return m.styles.ToolBox.Render(b.String())
	}
	b.WriteString(" ")
	b.WriteString(m.styles.ToolSuccess.Render("✓"))
	b.WriteString("\n")

	if len(output) > maxToolOutput {
		output = output[:maxToolOutput] + "..."
	}
	for _, line := range strings.Split(output, "\n") {
		if line != "" {
			b.WriteString(m.styles.ToolOutput.Render("  | " + line))
			b.WriteString("\n")
		}
	}

	return m.styles.ToolBox.Render(b.String())
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

func (m Model) renderStatus() string {
	return fmt.Sprintf("%s %s",
		m.spinner.View(),
		m.styles.StateLabel.Render(m.state.String()+"..."),
	)
}

func (m Model) renderHelpBar() string {
	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("ctrl+c") + m.styles.HelpValue.Render(" quit"),
		m.styles.HelpKey.Render("help") + m.styles.HelpValue.Render(" commands"),
		m.styles.HelpKey.Render("tools") + m.styles.HelpValue.Render(" list tools"),
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}
