package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/types"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"openai", "openai", false},
		{"", "openai", false},
		{"vllm", "openai", false},
		{"Anthropic", "anthropic", false},
		{"ollama", "ollama", false},
		{"bedrock", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(Config{Provider: tt.provider, Model: "m"}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for provider %q", tt.provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.want)
			}
		})
	}
}

func TestUnavailableWrapsOnce(t *testing.T) {
	base := errors.New("connection refused")
	err := Unavailable("openai", base)

	var mu *ModelUnavailableError
	if !errors.As(err, &mu) {
		t.Fatalf("expected ModelUnavailableError, got %T", err)
	}
	if mu.Provider != "openai" {
		t.Errorf("Provider = %q", mu.Provider)
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to unwrap to base")
	}
	if again := Unavailable("other", err); again != err {
		t.Error("expected existing ModelUnavailableError to be returned unchanged")
	}
	if Unavailable("x", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestDecodeArgs(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]any
	}{
		{"", map[string]any{}},
		{`{"query":"errors"}`, map[string]any{"query": "errors"}},
		{"recent errors", map[string]any{"query": "recent errors"}},
		{"null", map[string]any{"query": "null"}},
	}

	for _, tt := range tests {
		got := decodeArgs(tt.raw)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("decodeArgs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestEncodeArgs(t *testing.T) {
	if got := encodeArgs(nil); got != "{}" {
		t.Errorf("encodeArgs(nil) = %q", got)
	}
	if got := encodeArgs(map[string]any{"query": "x"}); got != `{"query":"x"}` {
		t.Errorf("encodeArgs = %q", got)
	}
}

func TestSplitSystem(t *testing.T) {
	msgs := []types.Message{
		types.SystemMessage("be brief"),
		types.UserMessage("hi"),
	}
	system, rest := splitSystem(msgs)
	if system != "be brief" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 1 || rest[0].Role != types.RoleUser {
		t.Errorf("rest = %+v", rest)
	}
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Complete(ctx context.Context, req Request) (types.Message, error) {
	c.calls++
	return types.Message{Role: types.RoleAssistant, Content: "ok"}, nil
}

func TestWithRateLimit(t *testing.T) {
	inner := &countingProvider{}
	if WithRateLimit(inner, 0, 1) != Provider(inner) {
		t.Fatal("expected zero rate to return provider unchanged")
	}

	limited := WithRateLimit(inner, 1, 1)
	if _, err := limited.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// burst is spent; the next call must wait and observe the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := limited.Complete(ctx, Request{})
	if err == nil {
		t.Fatal("expected rate limit wait to fail on short deadline")
	}
	var wait *WaitError
	if !errors.As(err, &wait) {
		t.Fatalf("expected *WaitError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected error to match context.DeadlineExceeded, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestWithRateLimit_CancelledContext(t *testing.T) {
	limited := WithRateLimit(&countingProvider{}, 1, 1)
	if _, err := limited.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := limited.Complete(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSDKProvidersMakeOneAttempt(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"overloaded_error"}}`))
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		provider Provider
	}{
		{"openai", NewOpenAIProvider(Config{Model: "m", APIKey: "k", Endpoint: srv.URL + "/v1/"})},
		{"anthropic", NewAnthropicProvider(Config{Model: "m", APIKey: "k", Endpoint: srv.URL + "/"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts.Store(0)
			_, err := tt.provider.Complete(context.Background(), Request{
				Messages: []types.Message{types.UserMessage("latest mq errors")},
			})
			if err == nil {
				t.Fatal("expected error from failing endpoint")
			}
			var mu *ModelUnavailableError
			if !errors.As(err, &mu) {
				t.Errorf("expected *ModelUnavailableError, got %T", err)
			}
			if got := attempts.Load(); got != 1 {
				t.Errorf("HTTP attempts = %d, want 1", got)
			}
		})
	}
}
