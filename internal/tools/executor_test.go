package tools

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/metrics"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry()
	registry.MustRegister(&MockTool{
		name:   "echo",
		schema: QuerySchema("text"),
		execFunc: func(ctx context.Context, args map[string]any) (string, error) {
			return "echo: " + args["query"].(string), nil
		},
	})
	registry.MustRegister(&MockTool{
		name: "fail",
		execFunc: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend down")
		},
	})
	registry.MustRegister(&MockTool{
		name: "boom",
		execFunc: func(ctx context.Context, args map[string]any) (string, error) {
			panic("boom")
		},
	})
	return registry
}

func TestExecutor_PreservesOrderWhenMiddleFails(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t))

	calls := []types.ToolCall{
		{ID: "1", Name: "echo", Args: map[string]any{"query": "a"}},
		{ID: "2", Name: "fail"},
		{ID: "3", Name: "echo", Args: map[string]any{"query": "c"}},
	}
	results := exec.Execute(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, msg := range results {
		if msg.Role != types.RoleTool {
			t.Errorf("result %d role = %s, want tool", i, msg.Role)
		}
		if msg.ToolCallID != calls[i].ID || msg.Name != calls[i].Name {
			t.Errorf("result %d correlates to %s/%s, want %s/%s",
				i, msg.ToolCallID, msg.Name, calls[i].ID, calls[i].Name)
		}
	}
	if results[0].Content != "echo: a" || results[2].Content != "echo: c" {
		t.Fatalf("unexpected outputs %q, %q", results[0].Content, results[2].Content)
	}
	if !strings.Contains(results[1].Content, "backend down") {
		t.Fatalf("expected stringified error, got %q", results[1].Content)
	}
	if results[0].IsError || !results[1].IsError || results[2].IsError {
		t.Fatalf("error flags = %v, %v, %v; want false, true, false",
			results[0].IsError, results[1].IsError, results[2].IsError)
	}
}

func TestExecutor_UnknownToolSentinelIsStable(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t))
	calls := []types.ToolCall{{ID: "x", Name: "missing"}, {ID: "y", Name: "echo", Args: map[string]any{"query": "b"}}}

	first := exec.Execute(context.Background(), calls)
	second := exec.Execute(context.Background(), calls)

	if first[0].Content != UnknownToolText || second[0].Content != UnknownToolText {
		t.Fatalf("expected sentinel both times, got %q and %q", first[0].Content, second[0].Content)
	}
	if !first[0].IsError || first[1].IsError {
		t.Fatalf("expected only the unknown tool result to be flagged")
	}
	if first[1].Content != "echo: b" {
		t.Fatalf("sibling call was affected: %q", first[1].Content)
	}
}

func TestExecutor_ValidationFailure(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t))

	_, err := exec.Invoke(context.Background(), types.ToolCall{Name: "echo", Args: map[string]any{"query": 42}})

	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Tool != "echo" {
		t.Fatalf("expected ValidationError for echo, got %v", err)
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t))

	results := exec.Execute(context.Background(), []types.ToolCall{{ID: "1", Name: "boom"}})
	if !strings.Contains(results[0].Content, "panic: boom") {
		t.Fatalf("expected panic text, got %q", results[0].Content)
	}
}

func TestExecutor_ConcurrentKeepsInputOrder(t *testing.T) {
	registry := NewRegistry()
	var inflight, peak int32
	registry.MustRegister(&MockTool{
		name:   "slow",
		schema: QuerySchema("delay"),
		execFunc: func(ctx context.Context, args map[string]any) (string, error) {
			n := atomic.AddInt32(&inflight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			defer atomic.AddInt32(&inflight, -1)
			d, _ := time.ParseDuration(args["query"].(string))
			time.Sleep(d)
			return args["query"].(string), nil
		},
	})

	exec := NewExecutor(registry, WithConcurrency(3))
	delays := []string{"30ms", "1ms", "15ms"}
	calls := make([]types.ToolCall, len(delays))
	for i, d := range delays {
		calls[i] = types.ToolCall{ID: d, Name: "slow", Args: map[string]any{"query": d}}
	}

	results := exec.Execute(context.Background(), calls)
	for i, d := range delays {
		if results[i].Content != d {
			t.Fatalf("result %d = %q, want %q", i, results[i].Content, d)
		}
	}
	if atomic.LoadInt32(&peak) > 3 {
		t.Fatalf("concurrency limit exceeded: %d", peak)
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := exec.Execute(ctx, []types.ToolCall{{ID: "1", Name: "echo", Args: map[string]any{"query": "a"}}})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if !strings.Contains(results[0].Content, context.Canceled.Error()) {
		t.Fatalf("expected cancellation text, got %q", results[0].Content)
	}
}

func TestExecutor_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	exec := NewExecutor(newTestRegistry(t), WithMetrics(m))

	exec.Execute(context.Background(), []types.ToolCall{
		{ID: "1", Name: "echo", Args: map[string]any{"query": "a"}},
		{ID: "2", Name: "fail"},
		{ID: "3", Name: "nope"},
	})

	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("echo", LocalOwner, "ok")); got != 1 {
		t.Fatalf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("fail", LocalOwner, "error")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("nope", "none", "unknown")); got != 1 {
		t.Fatalf("unknown count = %v", got)
	}
}

func TestExecutor_CallReturnsErrorsAndRecordsMetrics(t *testing.T) {
	m := metrics.New()
	exec := NewExecutor(newTestRegistry(t), WithMetrics(m))

	out, err := exec.Call(context.Background(), types.ToolCall{ID: "1", Name: "echo", Args: map[string]any{"query": "x"}})
	if err != nil || out != "echo: x" {
		t.Fatalf("Call echo = %q, %v", out, err)
	}

	_, err = exec.Call(context.Background(), types.ToolCall{ID: "2", Name: "missing"})
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}

	_, err = exec.Call(context.Background(), types.ToolCall{ID: "3", Name: "fail"})
	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}

	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("echo", LocalOwner, "ok")); got != 1 {
		t.Errorf("ok calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("missing", "none", "unknown")); got != 1 {
		t.Errorf("unknown calls = %v, want 1", got)
	}
}
