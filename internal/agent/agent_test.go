package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/metrics"
	"github.com/ashutoshrp06/logpilot/internal/prompts"
	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/ashutoshrp06/logpilot/internal/tools/logtools"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// scriptedProvider replays replies in order and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []types.Message
	err      error
	repeat   bool
	requests []llm.Request
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, req llm.Request) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.err != nil {
		return types.Message{}, s.err
	}
	if len(s.replies) == 0 {
		return types.Message{Role: types.RoleAssistant, Content: "no more replies"}, nil
	}
	reply := s.replies[0]
	if !s.repeat {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func answer(text string) types.Message {
	return types.Message{Role: types.RoleAssistant, Content: text}
}

func callTool(id, name string, args map[string]any) types.Message {
	return types.Message{
		Role:      types.RoleAssistant,
		ToolCalls: []types.ToolCall{{ID: id, Name: name, Args: args}},
	}
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	if err := logtools.Register(reg, logtools.Deps{}); err != nil {
		t.Fatalf("register log tools: %v", err)
	}
	if err := reg.RegisterFrom("splunk", tools.NewQueryTool("search_splunk", "Run a Splunk search",
		func(_ context.Context, q string) (string, error) { return "splunk: " + q, nil })); err != nil {
		t.Fatalf("register splunk tool: %v", err)
	}
	return reg
}

func newOrchestrator(t *testing.T, p llm.Provider, opts Options, observer func(types.AgentEvent)) *Orchestrator {
	t.Helper()
	o, err := New(Deps{
		Registry: newRegistry(t),
		Provider: p,
		Prompts:  prompts.NewBuilder(prompts.DefaultSplunkConfig(), ""),
		Options:  opts,
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRun_SingleHopAnswer(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{answer("4")}}
	o := newOrchestrator(t, p, Options{}, nil)

	res, err := o.Run(context.Background(), "What is 2+2", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Answer != "4" {
		t.Errorf("Answer = %q, want %q", res.Answer, "4")
	}
	if res.Track != types.TrackDefault {
		t.Errorf("Track = %s, want default", res.Track)
	}
	if res.Hops != 1 {
		t.Errorf("Hops = %d, want 1", res.Hops)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(res.Messages))
	}
	for _, m := range res.Messages {
		if m.Role == types.RoleTool {
			t.Error("expected no tool results")
		}
	}
}

func TestRun_QueueTrackToolLoop(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{
		callTool("call_1", logtools.MQSearch, map[string]any{"query": "errors"}),
		answer("No MQ errors in the last hour."),
	}}

	var mu sync.Mutex
	var states []types.AgentState
	o := newOrchestrator(t, p, Options{}, func(ev types.AgentEvent) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	})

	res, err := o.Run(context.Background(), "show recent errors", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Track != types.TrackQueue {
		t.Fatalf("Track = %s, want queue", res.Track)
	}
	if res.Hops != 2 {
		t.Errorf("Hops = %d, want 2", res.Hops)
	}

	first := p.requests[0]
	if first.Messages[0].Role != types.RoleSystem || !strings.Contains(first.Messages[0].Content, "ADDITIONAL MQ INSTRUCTIONS") {
		t.Errorf("expected MQ instruction first, got %+v", first.Messages[0])
	}
	if len(first.Tools) != 1 || first.Tools[0].Name != logtools.MQSearch {
		t.Errorf("expected only mq_search bound, got %+v", first.Tools)
	}

	second := p.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != types.RoleTool || last.ToolCallID != "call_1" {
		t.Fatalf("expected tool result for call_1, got %+v", last)
	}
	if !strings.HasPrefix(last.Content, "[MQ]") {
		t.Errorf("expected [MQ] prefix, got %q", last.Content)
	}

	want := []types.AgentState{
		types.StateRouting, types.StateStepping, types.StateToolExec,
		types.StateToolExec, types.StateStepping, types.StateDone,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestRun_RunawayLoop(t *testing.T) {
	p := &scriptedProvider{
		replies: []types.Message{callTool("", logtools.MQSearch, map[string]any{"query": "x"})},
		repeat:  true,
	}
	m := metrics.New()
	o, err := New(Deps{
		Registry: newRegistry(t),
		Provider: p,
		Metrics:  m,
		Options:  Options{MaxHops: 3},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = o.Run(context.Background(), "latest mq logs", nil)
	var runaway *RunawayLoopError
	if !errors.As(err, &runaway) {
		t.Fatalf("expected RunawayLoopError, got %v", err)
	}
	if runaway.Hops != 3 {
		t.Errorf("Hops = %d, want 3", runaway.Hops)
	}
	if len(p.requests) != 3 {
		t.Errorf("model calls = %d, want 3", len(p.requests))
	}
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("queue", "runaway")); got != 1 {
		t.Errorf("runaway runs = %v, want 1", got)
	}
}

func TestRun_ModelUnavailable(t *testing.T) {
	p := &scriptedProvider{err: errors.New("401 unauthorized")}

	var last types.AgentEvent
	o := newOrchestrator(t, p, Options{}, func(ev types.AgentEvent) { last = ev })

	_, err := o.Run(context.Background(), "hello", nil)
	var mu *llm.ModelUnavailableError
	if !errors.As(err, &mu) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if mu.Provider != "scripted" {
		t.Errorf("Provider = %q", mu.Provider)
	}
	if last.State != types.StateError || last.Error == nil {
		t.Errorf("expected final Error event, got %+v", last)
	}
}

func TestRun_RateLimitWaitIsNotModelFailure(t *testing.T) {
	// A limiter that cannot hand out a token before the deadline gives up
	// while the context is still live.
	p := llm.WithRateLimit(&scriptedProvider{replies: []types.Message{answer("first")}}, 0.001, 1)
	o := newOrchestrator(t, p, Options{}, nil)

	if _, err := o.Run(context.Background(), "hello", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := o.Run(ctx, "hello again", nil)
	if err == nil {
		t.Fatal("expected the second run to fail waiting for a token")
	}
	var mu *llm.ModelUnavailableError
	if errors.As(err, &mu) {
		t.Errorf("rate limit wait reported as model failure: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRun_UnknownAndUnboundToolsContinue(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{
		{
			Role: types.RoleAssistant,
			ToolCalls: []types.ToolCall{
				{ID: "a", Name: "does_not_exist"},
				{ID: "b", Name: logtools.RedisSearch, Args: map[string]any{"query": "x"}},
				{ID: "c", Name: logtools.MQSearch, Args: map[string]any{"query": "x"}},
			},
		},
		answer("done"),
	}}
	o := newOrchestrator(t, p, Options{}, nil)

	res, err := o.Run(context.Background(), "current mq state", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	results := res.Messages[2:5]
	wantIDs := []string{"a", "b", "c"}
	for i, m := range results {
		if m.Role != types.RoleTool || m.ToolCallID != wantIDs[i] {
			t.Fatalf("result %d = %+v, want tool result for %s", i, m, wantIDs[i])
		}
	}
	if results[0].Content != tools.UnknownToolText {
		t.Errorf("unknown tool result = %q", results[0].Content)
	}
	// redis_search is registered but not bound to the queue track.
	if results[1].Content != tools.UnknownToolText {
		t.Errorf("unbound tool result = %q", results[1].Content)
	}
	if !strings.HasPrefix(results[2].Content, "[MQ]") {
		t.Errorf("mq result = %q", results[2].Content)
	}
}

func TestRun_Escalation(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{
		answer("nothing recent in MQ"),
		callTool("s1", "search_splunk", map[string]any{"query": "index=ibmmq"}),
		answer("Splunk shows 3 errors"),
	}}
	o := newOrchestrator(t, p, Options{Escalate: true}, nil)

	res, err := o.Run(context.Background(), "latest errors", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Escalated {
		t.Error("expected escalation")
	}
	if res.Track != types.TrackQueue {
		t.Errorf("Track = %s, want queue", res.Track)
	}
	if res.Hops != 3 {
		t.Errorf("Hops = %d, want 3", res.Hops)
	}
	if res.Answer != "Splunk shows 3 errors" {
		t.Errorf("Answer = %q", res.Answer)
	}

	escalated := p.requests[1]
	names := make([]string, len(escalated.Tools))
	for i, d := range escalated.Tools {
		names[i] = d.Name
	}
	if len(names) != 1 || names[0] != "search_splunk" {
		t.Errorf("expected default track tools, got %v", names)
	}
}

func TestRun_NoEscalationByDefault(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{answer("from mq")}}
	o := newOrchestrator(t, p, Options{}, nil)

	res, err := o.Run(context.Background(), "latest errors", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Escalated || res.Hops != 1 || len(p.requests) != 1 {
		t.Errorf("expected a single queue hop, got %+v", res)
	}
}

func TestRun_Cancelled(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{answer("x")}}
	o := newOrchestrator(t, p, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, "hello", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(p.requests) != 0 {
		t.Errorf("expected no model call, got %d", len(p.requests))
	}
}

func TestRunTrack_SkipsClassifier(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{answer("ok")}}
	o := newOrchestrator(t, p, Options{}, nil)

	res, err := o.RunTrack(context.Background(), types.TrackCache, "hello", nil)
	if err != nil {
		t.Fatalf("RunTrack: %v", err)
	}
	if res.Track != types.TrackCache {
		t.Errorf("Track = %s, want cache", res.Track)
	}
	if p.requests[0].Tools[0].Name != logtools.RedisSearch {
		t.Errorf("expected redis_search bound, got %+v", p.requests[0].Tools)
	}
}

func TestStep_DoesNotMutateHistory(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{callTool("", logtools.MQSearch, nil)}}
	o := newOrchestrator(t, p, Options{}, nil)

	history := []types.Message{
		types.SystemMessage("stale instruction"),
		types.UserMessage("latest"),
	}
	before := len(history)

	reply, calls, err := o.Step(context.Background(), types.TrackQueue, history)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(history) != before || history[0].Content != "stale instruction" {
		t.Error("expected caller history to be untouched")
	}

	sent := p.requests[0].Messages
	if len(sent) != 2 || sent[0].Role != types.RoleSystem || sent[0].Content == "stale instruction" {
		t.Errorf("expected exactly the track instruction ahead of history, got %+v", sent)
	}
	if reply.Role != types.RoleAssistant || reply.Timestamp.IsZero() {
		t.Errorf("unexpected reply %+v", reply)
	}
	if len(calls) != 1 || !strings.HasPrefix(calls[0].ID, "call_") {
		t.Errorf("expected generated call id, got %+v", calls)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without provider")
	}

	_, err := New(Deps{
		Registry: newRegistry(t),
		Provider: &scriptedProvider{},
		Bindings: map[types.Track][]string{types.TrackQueue: {"nope"}},
	})
	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if be.Track != "queue" || be.Tool != "nope" {
		t.Errorf("unexpected binding error %+v", be)
	}
}

func TestDefaultBindings(t *testing.T) {
	b := DefaultBindings(newRegistry(t))

	if got := b[types.TrackQueue]; len(got) != 1 || got[0] != logtools.MQSearch {
		t.Errorf("queue = %v", got)
	}
	if got := b[types.TrackCache]; len(got) != 1 || got[0] != logtools.RedisSearch {
		t.Errorf("cache = %v", got)
	}
	if got := b[types.TrackDefault]; len(got) != 1 || got[0] != "search_splunk" {
		t.Errorf("default = %v", got)
	}
}

func TestAgentState_String(t *testing.T) {
	tests := []struct {
		state    types.AgentState
		expected string
	}{
		{types.StateIdle, "Idle"},
		{types.StateRouting, "Routing"},
		{types.StateStepping, "Thinking"},
		{types.StateToolExec, "Executing tools"},
		{types.StateDone, "Done"},
		{types.StateError, "Error"},
		{types.AgentState(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}
