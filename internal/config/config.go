// Package config loads logpilot configuration from YAML files and
// LOGPILOT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/mcp"
	"github.com/ashutoshrp06/logpilot/internal/prompts"
	"github.com/ashutoshrp06/logpilot/internal/rag"
	"github.com/ashutoshrp06/logpilot/internal/redislog"
	"github.com/ashutoshrp06/logpilot/internal/router"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. LOGPILOT_LLM_MODEL.
const EnvPrefix = "LOGPILOT"

// Config holds all logpilot configuration.
type Config struct {
	LLM       LLMConfig            `mapstructure:"llm" yaml:"llm"`
	Agent     AgentConfig          `mapstructure:"agent" yaml:"agent"`
	Router    RouterConfig         `mapstructure:"router" yaml:"router"`
	MQ        MQConfig             `mapstructure:"mq" yaml:"mq"`
	Redis     RedisConfig          `mapstructure:"redis" yaml:"redis"`
	Qdrant    QdrantConfig         `mapstructure:"qdrant" yaml:"qdrant"`
	Embedding EmbeddingConfig      `mapstructure:"embedding" yaml:"embedding"`
	RAG       RAGConfig            `mapstructure:"rag" yaml:"rag"`
	Splunk    prompts.SplunkConfig `mapstructure:"splunk" yaml:"splunk"`
	Prompts   PromptsConfig        `mapstructure:"prompts" yaml:"prompts"`
	MCP       MCPConfig            `mapstructure:"mcp" yaml:"mcp"`
	Metrics   MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	LogParse  LogParseConfig       `mapstructure:"logparse" yaml:"logparse"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"` // openai, vllm, anthropic, ollama
	Model             string  `mapstructure:"model" yaml:"model"`
	Endpoint          string  `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// AgentConfig tunes the orchestrator.
type AgentConfig struct {
	MaxHops         int  `mapstructure:"max_hops" yaml:"max_hops"`
	Escalate        bool `mapstructure:"escalate" yaml:"escalate"`
	ToolConcurrency int  `mapstructure:"tool_concurrency" yaml:"tool_concurrency"`
	HistoryLimit    int  `mapstructure:"history_limit" yaml:"history_limit"`
	TimeoutSeconds  int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RouterConfig holds the ordered routing table.
type RouterConfig struct {
	Routes []RouteConfig `mapstructure:"routes" yaml:"routes"`
}

// RouteConfig is one routing entry.
type RouteConfig struct {
	Track    string   `mapstructure:"track" yaml:"track"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
}

// MQConfig points mq_search at queue manager error logs.
type MQConfig struct {
	LogDir     string `mapstructure:"log_dir" yaml:"log_dir"`
	FileGlob   string `mapstructure:"file_glob" yaml:"file_glob"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

// RedisConfig configures the log stream behind redis_search.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Stream   string `mapstructure:"stream" yaml:"stream"`
	MaxLen   int64  `mapstructure:"max_len" yaml:"max_len"`
	Window   int64  `mapstructure:"window" yaml:"window"`
	Limit    int    `mapstructure:"limit" yaml:"limit"`
}

// QdrantConfig configures the vector store.
type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls" yaml:"use_tls"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	VectorSize int    `mapstructure:"vector_size" yaml:"vector_size"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider       string `mapstructure:"provider" yaml:"provider"` // tei or openai
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	BatchSize      int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// RAGConfig tunes critical-error retrieval.
type RAGConfig struct {
	TopK          int      `mapstructure:"top_k" yaml:"top_k"`
	Keep          int      `mapstructure:"keep" yaml:"keep"`
	MinSimilarity float32  `mapstructure:"min_similarity" yaml:"min_similarity"`
	Severities    []string `mapstructure:"severities" yaml:"severities"`
}

// PromptsConfig optionally replaces the built-in instruction.
type PromptsConfig struct {
	InstructionFile string `mapstructure:"instruction_file" yaml:"instruction_file"`
}

// MCPConfig lists tool servers.
type MCPConfig struct {
	Servers []mcp.ServerConfig `mapstructure:"servers" yaml:"servers"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogParseConfig configures syslog parsing.
type LogParseConfig struct {
	Year int `mapstructure:"year" yaml:"year"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	routes := make([]RouteConfig, 0, 2)
	for _, r := range router.DefaultRoutes() {
		routes = append(routes, RouteConfig{Track: r.Track.String(), Keywords: r.Keywords})
	}

	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
			MaxTokens:      2048,
			Burst:          1,
		},
		Agent: AgentConfig{
			MaxHops:         25,
			ToolConcurrency: 1,
			HistoryLimit:    50,
			TimeoutSeconds:  120,
		},
		Router: RouterConfig{Routes: routes},
		MQ: MQConfig{
			FileGlob:   "AMQERR*.LOG",
			MaxResults: 20,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Stream: "logpilot:logs",
			MaxLen: 100000,
			Window: 500,
			Limit:  20,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "ace_logs",
			VectorSize: 384,
		},
		Embedding: EmbeddingConfig{
			Provider:       "tei",
			Endpoint:       "http://localhost:8080",
			Model:          "text-embedding-3-small",
			TimeoutSeconds: 30,
			BatchSize:      64,
		},
		RAG: RAGConfig{
			TopK:       10,
			Keep:       5,
			Severities: []string{"E", "W"},
		},
		Splunk: prompts.DefaultSplunkConfig(),
		Metrics: MetricsConfig{
			Addr: "",
		},
		LogParse: LogParseConfig{Year: 2025},
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".logpilot"), nil
}

// DefaultPath returns the per-user configuration file path.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path over the defaults and applies environment overrides. An
// empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads the first config file found in the working directory or
// the user config directory, falling back to defaults. It returns the path
// used, if any.
func LoadDefault() (*Config, string, error) {
	candidates := []string{"config.local.yaml", "config.yaml"}
	if p, err := DefaultPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	cfg, err := Load("")
	return cfg, "", err
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// API keys may be present.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "vllm", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.Agent.MaxHops <= 0 {
		return fmt.Errorf("agent.max_hops must be positive, got %d", c.Agent.MaxHops)
	}
	if c.Agent.ToolConcurrency < 0 {
		return fmt.Errorf("agent.tool_concurrency must not be negative, got %d", c.Agent.ToolConcurrency)
	}
	if _, err := c.Routes(); err != nil {
		return fmt.Errorf("router.routes: %w", err)
	}
	if c.Qdrant.Enabled {
		switch c.Embedding.Provider {
		case "tei", "openai":
		default:
			return fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider)
		}
	}
	if c.RAG.TopK <= 0 || c.RAG.Keep <= 0 {
		return errors.New("rag.top_k and rag.keep must be positive")
	}

	seen := make(map[string]bool, len(c.MCP.Servers))
	for i, srv := range c.MCP.Servers {
		if err := srv.Validate(); err != nil {
			return fmt.Errorf("mcp.servers[%d]: %w", i, err)
		}
		if seen[srv.Name] {
			return fmt.Errorf("mcp.servers[%d]: duplicate server name %q", i, srv.Name)
		}
		seen[srv.Name] = true
	}
	return nil
}

// Routes converts the routing table for the classifier.
func (c *Config) Routes() ([]router.Route, error) {
	routes := make([]router.Route, 0, len(c.Router.Routes))
	for i, r := range c.Router.Routes {
		track, err := types.ParseTrack(r.Track)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		routes = append(routes, router.Route{Track: track, Keywords: r.Keywords})
	}
	if _, err := router.NewClassifier(routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// LLMClientConfig returns provider settings, taking the API key from the
// provider's usual environment variable when none is configured.
func (c *Config) LLMClientConfig() llm.Config {
	key := c.LLM.APIKey
	if key == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "anthropic":
			key = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			key = os.Getenv("OPENAI_API_KEY")
		}
	}
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Endpoint:    c.LLM.Endpoint,
		APIKey:      key,
		Timeout:     time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
	}
}

// RedisStoreConfig returns the redislog settings.
func (c *Config) RedisStoreConfig() redislog.Config {
	return redislog.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Stream:   c.Redis.Stream,
		MaxLen:   c.Redis.MaxLen,
	}
}

// QdrantStoreConfig returns the vector store settings.
func (c *Config) QdrantStoreConfig() rag.StoreConfig {
	return rag.StoreConfig{
		Host:       c.Qdrant.Host,
		Port:       c.Qdrant.Port,
		APIKey:     c.Qdrant.APIKey,
		UseTLS:     c.Qdrant.UseTLS,
		Collection: c.Qdrant.Collection,
		VectorSize: c.Qdrant.VectorSize,
	}
}

// PipelineConfig returns the retrieval settings.
func (c *Config) PipelineConfig() rag.PipelineConfig {
	return rag.PipelineConfig{
		TopK:          c.RAG.TopK,
		Keep:          c.RAG.Keep,
		MinSimilarity: c.RAG.MinSimilarity,
		Severities:    c.RAG.Severities,
	}
}

// NewEmbedder builds the configured embedder.
func (c *Config) NewEmbedder() (rag.Embedder, error) {
	timeout := time.Duration(c.Embedding.TimeoutSeconds) * time.Second
	switch c.Embedding.Provider {
	case "tei":
		return rag.NewTEIEmbedder(c.Embedding.Endpoint, timeout), nil
	case "openai":
		key := c.Embedding.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		base := ""
		if c.Embedding.Endpoint != DefaultConfig().Embedding.Endpoint {
			base = c.Embedding.Endpoint
		}
		return rag.NewOpenAIEmbedder(key, base, c.Embedding.Model), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
}
