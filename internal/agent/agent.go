// Package agent implements the routing and tool-calling loop that answers
// a user's question.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/metrics"
	"github.com/ashutoshrp06/logpilot/internal/router"
	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/ashutoshrp06/logpilot/internal/tools/logtools"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/ashutoshrp06/logpilot/internal/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxHops bounds a run when Options.MaxHops is unset.
const DefaultMaxHops = 25

// InstructionBuilder renders the system instruction for a track.
type InstructionBuilder interface {
	Build(track types.Track, tools []llm.ToolDefinition) string
}

// Options tunes a run.
type Options struct {
	MaxHops int

	// Escalate continues a queue or cache run once on the default track
	// after it produces its final answer. The hop budget is shared.
	Escalate bool

	ToolConcurrency int
}

// Deps are the collaborators of an Orchestrator. Registry must already hold
// every tool, local and remote.
type Deps struct {
	Classifier *router.Classifier
	Registry   *tools.Registry
	Provider   llm.Provider
	Prompts    InstructionBuilder

	// Bindings maps a track to the tool names it exposes. Missing tracks
	// get DefaultBindings.
	Bindings map[types.Track][]string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Options Options

	// Observer, when set, is called on every state transition.
	Observer func(types.AgentEvent)
}

// DefaultBindings binds mq_search to the queue track, redis_search to the
// cache track and every other registered tool to the default track.
func DefaultBindings(reg *tools.Registry) map[types.Track][]string {
	b := map[types.Track][]string{
		types.TrackQueue:   {logtools.MQSearch},
		types.TrackCache:   {logtools.RedisSearch},
		types.TrackDefault: {},
	}
	for _, name := range reg.List() {
		if name == logtools.MQSearch || name == logtools.RedisSearch {
			continue
		}
		b[types.TrackDefault] = append(b[types.TrackDefault], name)
	}
	return b
}

// binding is the immutable per-track view used during runs.
type binding struct {
	instruction string
	defs        []llm.ToolDefinition
	executor    *tools.Executor
}

// Orchestrator routes a question to a track and alternates model steps and
// tool execution until the model answers. It holds no per-run state and is
// safe for concurrent runs.
type Orchestrator struct {
	classifier *router.Classifier
	provider   llm.Provider
	registry   *tools.Registry
	bindings   map[types.Track]*binding
	output     *validator.OutputValidator
	opts       Options
	observer   func(types.AgentEvent)
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Result is the outcome of a run.
type Result struct {
	Answer    string
	Track     types.Track
	Hops      int
	Escalated bool

	// Messages is the full history: prior messages, the user turn and
	// every message the run produced.
	Messages []types.Message
}

// New validates deps and builds an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, errors.New("agent: model provider is required")
	}
	if deps.Registry == nil {
		deps.Registry = tools.NewRegistry()
	}
	if deps.Classifier == nil {
		deps.Classifier = router.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Options.MaxHops <= 0 {
		deps.Options.MaxHops = DefaultMaxHops
	}

	defaults := DefaultBindings(deps.Registry)
	o := &Orchestrator{
		classifier: deps.Classifier,
		provider:   deps.Provider,
		registry:   deps.Registry,
		bindings:   make(map[types.Track]*binding, 3),
		output:     validator.NewOutputValidator(),
		opts:       deps.Options,
		observer:   deps.Observer,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}

	for _, track := range []types.Track{types.TrackDefault, types.TrackQueue, types.TrackCache} {
		names, ok := deps.Bindings[track]
		if !ok {
			names = defaults[track]
		}
		sub, err := deps.Registry.Subset(names...)
		if err != nil {
			var unknown *tools.UnknownToolError
			if errors.As(err, &unknown) {
				return nil, &BindingError{Track: track.String(), Tool: unknown.Name}
			}
			return nil, fmt.Errorf("bind %s track: %w", track, err)
		}

		defs := sub.Definitions()
		instruction := ""
		if deps.Prompts != nil {
			instruction = deps.Prompts.Build(track, defs)
		}
		o.bindings[track] = &binding{
			instruction: instruction,
			defs:        defs,
			executor: tools.NewExecutor(sub,
				tools.WithLogger(deps.Logger),
				tools.WithMetrics(deps.Metrics),
				tools.WithConcurrency(deps.Options.ToolConcurrency)),
		}

		deps.Logger.Debug("Track bound",
			zap.String("track", track.String()),
			zap.Strings("tools", sub.List()))
	}

	return o, nil
}

// Run answers userText given prior history, choosing the track with the
// classifier.
func (o *Orchestrator) Run(ctx context.Context, userText string, prior []types.Message) (*Result, error) {
	history := append(types.CloneMessages(prior), types.UserMessage(userText))

	o.emit(types.AgentEvent{State: types.StateRouting})
	track := o.classifier.Classify(history)
	o.logger.Debug("Routed query", zap.String("track", track.String()))

	return o.loop(ctx, track, history)
}

// RunTrack answers userText on a fixed track, skipping the classifier.
func (o *Orchestrator) RunTrack(ctx context.Context, track types.Track, userText string, prior []types.Message) (*Result, error) {
	history := append(types.CloneMessages(prior), types.UserMessage(userText))
	return o.loop(ctx, track, history)
}

func (o *Orchestrator) loop(ctx context.Context, track types.Track, history []types.Message) (*Result, error) {
	o.metrics.RunStarted()
	start := time.Now()

	res := &Result{Track: track}
	escalated := false

	fail := func(err error) (*Result, error) {
		o.emit(types.AgentEvent{State: types.StateError, Track: track, Hop: res.Hops, Error: err})
		outcome := "error"
		var runaway *RunawayLoopError
		switch {
		case errors.As(err, &runaway):
			outcome = "runaway"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = "cancelled"
		}
		o.metrics.RunFinished(res.Track.String(), outcome, res.Hops)
		o.logger.Warn("Run failed",
			zap.String("track", track.String()),
			zap.Int("hops", res.Hops),
			zap.Error(err))
		return nil, err
	}

	for {
		if res.Hops >= o.opts.MaxHops {
			return fail(&RunawayLoopError{Hops: res.Hops, Track: track.String()})
		}
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run cancelled: %w", err))
		}
		res.Hops++

		o.emit(types.AgentEvent{State: types.StateStepping, Track: track, Hop: res.Hops})
		reply, calls, err := o.Step(ctx, track, history)
		if err != nil {
			return fail(err)
		}
		history = append(history, reply)

		if len(calls) == 0 {
			if o.opts.Escalate && !escalated && track != types.TrackDefault {
				escalated = true
				o.logger.Debug("Escalating to default track",
					zap.String("from", track.String()),
					zap.Int("hop", res.Hops))
				track = types.TrackDefault
				continue
			}
			break
		}

		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run cancelled: %w", err))
		}
		o.emit(types.AgentEvent{State: types.StateToolExec, Track: track, Hop: res.Hops, ToolCalls: calls})
		results := o.bindings[track].executor.Execute(ctx, calls)
		history = append(history, results...)
		o.emit(types.AgentEvent{State: types.StateToolExec, Track: track, Hop: res.Hops, ToolCalls: calls, ToolResults: results})
	}

	res.Answer = o.output.Clean(history[len(history)-1].Content)
	res.Escalated = escalated
	res.Messages = history

	o.emit(types.AgentEvent{State: types.StateDone, Track: track, Hop: res.Hops, FinalAnswer: res.Answer})
	o.metrics.RunFinished(res.Track.String(), "ok", res.Hops)
	o.logger.Info("Run complete",
		zap.String("track", res.Track.String()),
		zap.Int("hops", res.Hops),
		zap.Bool("escalated", escalated),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Step asks the model for the next reply on track. The track's instruction
// is placed in front of a copy of history; system messages already in
// history are left out so exactly one instruction leads the request.
func (o *Orchestrator) Step(ctx context.Context, track types.Track, history []types.Message) (types.Message, []types.ToolCall, error) {
	b, ok := o.bindings[track]
	if !ok {
		return types.Message{}, nil, fmt.Errorf("no binding for track %s", track)
	}

	msgs := make([]types.Message, 0, len(history)+1)
	if b.instruction != "" {
		msgs = append(msgs, types.SystemMessage(b.instruction))
	}
	for _, m := range history {
		if m.Role != types.RoleSystem {
			msgs = append(msgs, m)
		}
	}

	start := time.Now()
	reply, err := o.provider.Complete(ctx, llm.Request{Messages: msgs, Tools: b.defs})
	o.metrics.ObserveModel(o.provider.Name(), time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Message{}, nil, fmt.Errorf("model call cancelled: %w", ctxErr)
		}
		var wait *llm.WaitError
		if errors.As(err, &wait) {
			return types.Message{}, nil, fmt.Errorf("model call cancelled: %w", wait)
		}
		return types.Message{}, nil, llm.Unavailable(o.provider.Name(), err)
	}

	reply.Role = types.RoleAssistant
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now()
	}
	if len(reply.ToolCalls) > 0 {
		calls := make([]types.ToolCall, len(reply.ToolCalls))
		copy(calls, reply.ToolCalls)
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.NewString()
			}
		}
		reply.ToolCalls = calls
	}
	return reply, reply.ToolCalls, nil
}

// Tools returns metadata for every registered tool.
func (o *Orchestrator) Tools() []types.ToolInfo {
	return o.registry.ListTools()
}

// TrackTools returns the tool names bound to track.
func (o *Orchestrator) TrackTools(track types.Track) []string {
	b, ok := o.bindings[track]
	if !ok {
		return nil
	}
	return b.executor.Registry().List()
}

// Ping checks the model provider when it supports health checks.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if p, ok := o.provider.(llm.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("model not reachable: %w", err)
		}
	}
	return nil
}

// ProviderName names the configured model provider.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

func (o *Orchestrator) emit(ev types.AgentEvent) {
	if o.observer != nil {
		o.observer(ev)
	}
}
