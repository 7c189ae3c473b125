package main

import (
	"context"
	"errors"
	"os"

	"github.com/ashutoshrp06/logpilot/internal/mcp"
	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local log tools over MCP on stdio",
	Long: `Expose mq_search, redis_search and search_critical_errors to any MCP
client over standard input and output. Logs go to standard error.

Examples:
  logpilot serve
  logpilot serve --metrics-addr :9090`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runServe() {
	ctx, stop := signalContext()
	defer stop()

	a, err := buildLocal()
	if err != nil {
		printError("Failed to initialize", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := a.cfg.Metrics.Addr
	if metricsAddr != "" {
		addr = metricsAddr
	}
	a.serveMetrics(addr)

	exec := tools.NewExecutor(a.local,
		tools.WithLogger(a.logger),
		tools.WithMetrics(a.metrics))
	srv := mcp.NewServer(exec, Version, a.logger)

	a.logger.Info("Serving MCP on stdio", zap.Strings("tools", a.local.List()))
	if err := mcp.Serve(ctx, srv); err != nil && !errors.Is(err, context.Canceled) {
		printError("MCP server stopped", err)
		os.Exit(1)
	}
}
