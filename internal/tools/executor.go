package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/metrics"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor resolves tool calls against a registry and runs them.
type Executor struct {
	registry    *Registry
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records tool outcomes on m.
func WithMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithConcurrency allows up to n sibling calls to run at once. Values below
// 2 keep execution sequential.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) { e.concurrency = n }
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:    registry,
		logger:      zap.NewNop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry calls are resolved against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs calls and returns exactly one tool message per call, in call
// order. Failures are reported in the message content and never stop
// sibling calls.
func (e *Executor) Execute(ctx context.Context, calls []types.ToolCall) []types.Message {
	results := make([]types.Message, len(calls))

	if e.concurrency < 2 || len(calls) < 2 {
		for i, call := range calls {
			results[i] = e.run(ctx, call)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.run(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Invoke resolves, validates and executes a single call.
func (e *Executor) Invoke(ctx context.Context, call types.ToolCall) (out string, err error) {
	tool, err := e.registry.Resolve(call.Name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &ToolExecutionError{Tool: call.Name, Err: err}
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	schema := tool.Schema()
	if err := schema.Validate(args); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Tool = call.Name
		}
		return "", &ToolExecutionError{Tool: call.Name, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = tool.Execute(ctx, schema.ApplyDefaults(args))
	if err != nil {
		return "", &ToolExecutionError{Tool: call.Name, Err: err}
	}
	return out, nil
}

// Call is Invoke with logging and metrics.
func (e *Executor) Call(ctx context.Context, call types.ToolCall) (string, error) {
	start := time.Now()
	owner, _ := e.registry.Owner(call.Name)

	out, err := e.Invoke(ctx, call)
	elapsed := time.Since(start)

	var unknown *UnknownToolError
	switch {
	case errors.As(err, &unknown):
		e.logger.Warn("Model requested unknown tool", zap.String("tool", call.Name))
		e.metrics.ObserveTool(call.Name, "none", "unknown", elapsed)
		return "", err

	case err != nil:
		e.logger.Warn("Tool execution failed",
			zap.String("tool", call.Name),
			zap.String("owner", owner),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		e.metrics.ObserveTool(call.Name, owner, "error", elapsed)
		return "", err
	}

	e.logger.Debug("Tool executed",
		zap.String("tool", call.Name),
		zap.String("owner", owner),
		zap.Duration("duration", elapsed),
		zap.Int("output_bytes", len(out)))
	e.metrics.ObserveTool(call.Name, owner, "ok", elapsed)
	return out, nil
}

func (e *Executor) run(ctx context.Context, call types.ToolCall) types.Message {
	out, err := e.Call(ctx, call)

	var unknown *UnknownToolError
	switch {
	case errors.As(err, &unknown):
		return types.ToolErrorMessage(call.ID, call.Name, UnknownToolText)
	case err != nil:
		return types.ToolErrorMessage(call.ID, call.Name, err.Error())
	}
	return types.ToolMessage(call.ID, call.Name, out)
}
