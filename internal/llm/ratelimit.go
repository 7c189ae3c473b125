package llm

import (
	"context"
	"fmt"

	"github.com/ashutoshrp06/logpilot/internal/types"
	"golang.org/x/time/rate"
)

// WaitError reports a call abandoned while waiting for a rate limit token.
// It unwraps to the context error, or to context.DeadlineExceeded when the
// limiter gave up early because the deadline would pass first.
type WaitError struct {
	Err    error
	reason error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("rate limit wait: %v", e.reason)
}

func (e *WaitError) Unwrap() error { return e.Err }

func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &WaitError{Err: ctxErr, reason: err}
	}
	return &WaitError{Err: context.DeadlineExceeded, reason: err}
}

// RateLimited throttles calls to an underlying provider.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that it issues at most rps calls per second with
// the given burst. A non-positive rps returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Complete waits for a token before delegating.
func (r *RateLimited) Complete(ctx context.Context, req Request) (types.Message, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return types.Message{}, waitError(ctx, err)
	}
	return r.Provider.Complete(ctx, req)
}

// Ping forwards to the wrapped provider when it supports health checks.
func (r *RateLimited) Ping(ctx context.Context) error {
	if p, ok := r.Provider.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
