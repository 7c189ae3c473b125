// Package mcp connects logpilot to Model Context Protocol servers. Remote
// tools are registered under the name of the server that provides them, and
// local tools can be served to other MCP clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/ashutoshrp06/logpilot/internal/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ClientName identifies logpilot during the MCP handshake.
const ClientName = "logpilot"

// ServerConfig describes one MCP server. Either Command or URL must be set.
type ServerConfig struct {
	Name      string            `mapstructure:"name" yaml:"name"`
	Command   string            `mapstructure:"command" yaml:"command,omitempty"`
	Args      []string          `mapstructure:"args" yaml:"args,omitempty"`
	Env       map[string]string `mapstructure:"env" yaml:"env,omitempty"`
	URL       string            `mapstructure:"url" yaml:"url,omitempty"`
	Transport string            `mapstructure:"transport" yaml:"transport,omitempty"` // sse or streamable
	Required  bool              `mapstructure:"required" yaml:"required,omitempty"`
}

// Validate checks that the entry can be connected.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("mcp server: name is required")
	}
	if c.Command == "" && c.URL == "" {
		return fmt.Errorf("mcp server %s: command or url is required", c.Name)
	}
	switch c.Transport {
	case "", "sse", "streamable":
	default:
		return fmt.Errorf("mcp server %s: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

// ConnectError reports a server that could not be reached or listed.
type ConnectError struct {
	Server string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mcp server %s: %v", e.Server, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Provider holds one session per connected server and the registry of
// their tools.
type Provider struct {
	mu       sync.Mutex
	client   *mcpsdk.Client
	sessions map[string]*mcpsdk.ClientSession
	registry *tools.Registry
	logger   *zap.Logger
}

// NewProvider returns an empty provider.
func NewProvider(version string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	return &Provider{
		client:   mcpsdk.NewClient(&mcpsdk.Implementation{Name: ClientName, Version: version}, nil),
		sessions: make(map[string]*mcpsdk.ClientSession),
		registry: tools.NewRegistry(),
		logger:   logger,
	}
}

// Connect dials every server. A failing server marked Required, or any tool
// name collision, aborts with an error and closes what was opened; other
// failures are logged and the server's tools are left out.
func Connect(ctx context.Context, servers []ServerConfig, version string, logger *zap.Logger) (*Provider, error) {
	p := NewProvider(version, logger)
	for _, srv := range servers {
		err := p.connect(ctx, srv)
		if err == nil {
			continue
		}
		if fatal(srv, err) {
			p.Close()
			return nil, err
		}
		p.logger.Warn("MCP server unavailable, continuing without its tools",
			zap.String("server", srv.Name),
			zap.Error(err))
	}
	return p, nil
}

// fatal reports whether a connection failure must stop startup.
func fatal(srv ServerConfig, err error) bool {
	var dup *tools.DuplicateToolError
	return srv.Required || errors.As(err, &dup)
}

func (p *Provider) connect(ctx context.Context, srv ServerConfig) error {
	if err := srv.Validate(); err != nil {
		return &ConnectError{Server: srv.Name, Err: err}
	}
	transport, err := newTransport(srv)
	if err != nil {
		return &ConnectError{Server: srv.Name, Err: err}
	}
	return p.Attach(ctx, srv.Name, transport)
}

// Attach connects over transport and registers the server's tools under
// name.
func (p *Provider) Attach(ctx context.Context, name string, transport mcpsdk.Transport) error {
	session, err := p.client.Connect(ctx, transport, nil)
	if err != nil {
		return &ConnectError{Server: name, Err: fmt.Errorf("connect: %w", err)}
	}

	resp, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		return &ConnectError{Server: name, Err: fmt.Errorf("list tools: %w", err)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.sessions[name]; exists {
		session.Close()
		return &ConnectError{Server: name, Err: errors.New("server already connected")}
	}

	// The whole batch is checked before anything is registered so a
	// collision leaves no tools bound to the closed session.
	batch := make([]*remoteTool, 0, len(resp.Tools))
	seen := make(map[string]bool, len(resp.Tools))
	for _, tl := range resp.Tools {
		schema, err := tools.SchemaFrom(tl.InputSchema)
		if err != nil {
			p.logger.Warn("Skipping MCP tool with unreadable schema",
				zap.String("server", name),
				zap.String("tool", tl.Name),
				zap.Error(err))
			continue
		}
		rt := &remoteTool{
			name:        tl.Name,
			description: tl.Description,
			schema:      schema,
			server:      name,
			session:     session,
		}
		if existing, ok := p.registry.Owner(tl.Name); ok {
			session.Close()
			return &tools.DuplicateToolError{Name: tl.Name, Owner: name, Existing: existing}
		}
		if seen[tl.Name] {
			session.Close()
			return &tools.DuplicateToolError{Name: tl.Name, Owner: name, Existing: name}
		}
		seen[tl.Name] = true
		batch = append(batch, rt)
	}

	for _, rt := range batch {
		if err := p.registry.RegisterFrom(name, rt); err != nil {
			session.Close()
			return err
		}
	}
	p.sessions[name] = session

	p.logger.Info("Connected to MCP server",
		zap.String("server", name),
		zap.Int("tools", len(batch)))
	return nil
}

// Registry returns the remote tools, owned by their server names.
func (p *Provider) Registry() *tools.Registry {
	return p.registry
}

// Servers lists connected server names.
func (p *Provider) Servers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close ends every session.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, s := range p.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(p.sessions, name)
	}
	return errors.Join(errs...)
}

func newTransport(srv ServerConfig) (mcpsdk.Transport, error) {
	switch {
	case srv.Command != "":
		cmd := exec.Command(srv.Command, srv.Args...)
		if len(srv.Env) > 0 {
			cmd.Env = os.Environ()
			keys := make([]string, 0, len(srv.Env))
			for k := range srv.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(srv.Env[k]))
			}
		}
		// Server diagnostics go to our stderr; stdout carries the protocol.
		cmd.Stderr = os.Stderr
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case srv.URL != "" && srv.Transport == "sse":
		return &mcpsdk.SSEClientTransport{Endpoint: srv.URL}, nil
	case srv.URL != "":
		return &mcpsdk.StreamableClientTransport{Endpoint: srv.URL}, nil
	}
	return nil, errors.New("command or url is required")
}

// remoteTool forwards calls to the owning server session.
type remoteTool struct {
	name        string
	description string
	schema      tools.Schema
	server      string
	session     *mcpsdk.ClientSession
}

func (t *remoteTool) Name() string         { return t.name }
func (t *remoteTool) Description() string  { return t.description }
func (t *remoteTool) Schema() tools.Schema { return t.schema }

func (t *remoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", t.name, t.server, err)
	}

	text := flatten(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// flatten joins text content; other content kinds are rendered as JSON.
func flatten(content []mcpsdk.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if data, err := json.Marshal(c); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
