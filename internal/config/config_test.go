package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/mcp"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Agent.MaxHops != 25 {
		t.Errorf("expected max hops 25, got %d", cfg.Agent.MaxHops)
	}
	if cfg.Qdrant.Enabled || cfg.Redis.Enabled {
		t.Error("optional backends should be disabled by default")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.LLM, cfg.LLM)
	assert.Equal(t, def.Agent, cfg.Agent)
	assert.Equal(t, def.Router, cfg.Router)
	assert.Equal(t, def.Qdrant, cfg.Qdrant)
	assert.Equal(t, def.Splunk.QueryTemplates, cfg.Splunk.QueryTemplates)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
llm:
  provider: anthropic
  model: claude-test
agent:
  max_hops: 5
  escalate: true
mq:
  log_dir: /var/mqm/errors
mcp:
  servers:
    - name: files
      command: mcp-files
      args: ["--root", "/tmp"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Agent.MaxHops)
	assert.True(t, cfg.Agent.Escalate)
	assert.Equal(t, "/var/mqm/errors", cfg.MQ.LogDir)
	// untouched keys keep their defaults
	assert.Equal(t, "AMQERR*.LOG", cfg.MQ.FileGlob)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	require.Len(t, cfg.MCP.Servers, 1)
	assert.Equal(t, "files", cfg.MCP.Servers[0].Name)
	assert.Equal(t, "mcp-files", cfg.MCP.Servers[0].Command)
	assert.Equal(t, []string{"--root", "/tmp"}, cfg.MCP.Servers[0].Args)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOGPILOT_LLM_MODEL", "from-env")
	t.Setenv("LOGPILOT_AGENT_MAX_HOPS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Agent.MaxHops)
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "saved-model"
	cfg.Redis.Enabled = true
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-model", loaded.LLM.Model)
	assert.True(t, loaded.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"zero hops", func(c *Config) { c.Agent.MaxHops = 0 }},
		{"negative concurrency", func(c *Config) { c.Agent.ToolConcurrency = -1 }},
		{"bad route track", func(c *Config) { c.Router.Routes = []RouteConfig{{Track: "bogus", Keywords: []string{"x"}}} }},
		{"bad embedder", func(c *Config) {
			c.Qdrant.Enabled = true
			c.Embedding.Provider = "onnx"
		}},
		{"zero top k", func(c *Config) { c.RAG.TopK = 0 }},
		{"mcp server without command", func(c *Config) { c.MCP.Servers = []mcp.ServerConfig{{Name: "x"}} }},
		{"duplicate mcp server", func(c *Config) {
			c.MCP.Servers = []mcp.ServerConfig{{Name: "x", Command: "a"}, {Name: "x", Command: "b"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	cfg := DefaultConfig()
	routes, err := cfg.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, types.TrackQueue, routes[0].Track)
	assert.Equal(t, types.TrackCache, routes[1].Track)
}

func TestLLMClientConfig_EnvKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.TimeoutSeconds = 10

	lc := cfg.LLMClientConfig()
	assert.Equal(t, "sk-ant", lc.APIKey)
	assert.Equal(t, 10*time.Second, lc.Timeout)

	cfg.LLM.APIKey = "explicit"
	assert.Equal(t, "explicit", cfg.LLMClientConfig().APIKey)
}

func TestNewEmbedder(t *testing.T) {
	cfg := DefaultConfig()

	e, err := cfg.NewEmbedder()
	require.NoError(t, err)
	assert.NotNil(t, e)

	cfg.Embedding.Provider = "openai"
	e, err = cfg.NewEmbedder()
	require.NoError(t, err)
	assert.NotNil(t, e)

	cfg.Embedding.Provider = "unknown"
	_, err = cfg.NewEmbedder()
	assert.Error(t, err)
}
