package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/agent"
	"github.com/ashutoshrp06/logpilot/internal/config"
	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/mcp"
	"github.com/ashutoshrp06/logpilot/internal/metrics"
	"github.com/ashutoshrp06/logpilot/internal/mqlog"
	"github.com/ashutoshrp06/logpilot/internal/prompts"
	"github.com/ashutoshrp06/logpilot/internal/rag"
	"github.com/ashutoshrp06/logpilot/internal/redislog"
	"github.com/ashutoshrp06/logpilot/internal/router"
	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/ashutoshrp06/logpilot/internal/tools/logtools"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"go.uber.org/zap"
)

// app owns every long-lived collaborator of a command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	local   *tools.Registry
	orch    *agent.Orchestrator

	closers []func() error
}

// buildLocal loads config and registers the log tools. Backends that fail
// to connect are logged and their tools fall back to placeholders.
func buildLocal() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  createLogger(),
		metrics: metrics.New(),
		local:   tools.NewRegistry(),
	}

	deps := logtools.Deps{
		RedisWindow: cfg.Redis.Window,
		RedisLimit:  cfg.Redis.Limit,
	}
	if cfg.MQ.LogDir != "" {
		deps.MQ = mqlog.NewSearcher(cfg.MQ.LogDir, cfg.MQ.FileGlob, cfg.MQ.MaxResults)
	}
	if cfg.Redis.Enabled {
		if store, err := redislog.New(cfg.RedisStoreConfig()); err != nil {
			a.logger.Warn("Redis unavailable, redis_search will not read the stream", zap.Error(err))
		} else {
			deps.Redis = store
			a.closers = append(a.closers, store.Close)
		}
	}
	if cfg.Qdrant.Enabled {
		if store, err := a.openStore(); err != nil {
			a.logger.Warn("Vector store unavailable, search_critical_errors disabled", zap.Error(err))
		} else {
			deps.Critical = rag.NewPipeline(store, cfg.PipelineConfig(), a.logger)
		}
	}

	if err := logtools.Register(a.local, deps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// buildApp extends buildLocal with MCP tools, the model provider and the
// orchestrator.
func buildApp(ctx context.Context, observer func(types.AgentEvent)) (*app, error) {
	a, err := buildLocal()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	remote, err := mcp.Connect(ctx, cfg.MCP.Servers, Version, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, remote.Close)

	registry, err := a.local.Merge(remote.Registry())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("merge tool registries: %w", err)
	}

	provider, err := llm.New(cfg.LLMClientConfig(), a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	provider = llm.WithRateLimit(provider, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)

	routes, err := cfg.Routes()
	if err != nil {
		a.Close()
		return nil, err
	}
	classifier, err := router.NewClassifier(routes)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orch, err = agent.New(agent.Deps{
		Classifier: classifier,
		Registry:   registry,
		Provider:   provider,
		Prompts:    prompts.NewBuilder(cfg.Splunk, cfg.Prompts.InstructionFile),
		Logger:     a.logger,
		Metrics:    a.metrics,
		Options: agent.Options{
			MaxHops:         cfg.Agent.MaxHops,
			Escalate:        cfg.Agent.Escalate,
			ToolConcurrency: cfg.Agent.ToolConcurrency,
		},
		Observer: observer,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.serveMetrics(cfg.Metrics.Addr)
	return a, nil
}

func (a *app) openStore() (*rag.Store, error) {
	embedder, err := a.cfg.NewEmbedder()
	if err != nil {
		return nil, err
	}
	store, err := rag.NewStore(a.cfg.QdrantStoreConfig(), embedder, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// serveMetrics exposes /metrics on addr in the background. An empty addr
// disables the endpoint.
func (a *app) serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Metrics endpoint stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.logger.Info("Serving metrics", zap.String("addr", addr))

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *app) conversation() *agent.Conversation {
	return a.orch.NewConversation(a.cfg.Agent.HistoryLimit, time.Duration(a.cfg.Agent.TimeoutSeconds)*time.Second)
}
