package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/abdhe/textwise/pkg/batch"
	"github.com/abdhe/textwise/pkg/chunk"
	"github.com/abdhe/textwise/pkg/metrics"
	"github.com/abdhe/textwise/pkg/provider"
	"github.com/abdhe/textwise/pkg/resilience"
)

// Engine composes tier selection, chunk planning, batched execution and
// result merging behind one entry point. All collaborators are injected
// through the constructor; an Engine is safe for concurrent use.
type Engine struct {
	backends map[provider.Tier]provider.Backend

	retryBase      time.Duration
	retryAttempts  int
	callTimeout    time.Duration // Direct and final-merge calls
	perTaskTimeout time.Duration // Each chunk task
	concurrency    map[provider.Tier]int
	maxReduceDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetry sets the per-call retry attempt count and base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		e.retryAttempts = attempts
		e.retryBase = baseDelay
	}
}

// WithTimeouts sets the direct-call and per-chunk-task deadlines.
func WithTimeouts(call, perTask time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = call
		e.perTaskTimeout = perTask
	}
}

// WithConcurrency overrides the chunk concurrency for a tier.
func WithConcurrency(tier provider.Tier, n int) Option {
	return func(e *Engine) { e.concurrency[tier] = n }
}

// New creates an Engine over the given tier backends. A tier with no backend
// wired is treated as unavailable even when selection would pick it.
func New(backends map[provider.Tier]provider.Backend, opts ...Option) *Engine {
	e := &Engine{
		backends:       backends,
		retryAttempts:  3,
		retryBase:      500 * time.Millisecond,
		callTimeout:    120 * time.Second,
		perTaskTimeout: 60 * time.Second,
		concurrency: map[provider.Tier]int{
			// On-device runtimes are contention-sensitive; network tiers
			// tolerate a little more parallel load.
			provider.TierBuiltIn:      2,
			provider.TierCloudPrimary: 3,
			provider.TierCloudLocal:   3,
		},
		maxReduceDepth: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessText applies an AI operation to text. It selects one tier for the
// whole call, executes directly when the input fits a single backend call,
// and otherwise runs the plan → batch → merge pipeline. onProgress may be
// nil. The pipeline is straight-line: no state is revisited, and all retry
// happens inside the chosen tier.
func (e *Engine) ProcessText(ctx context.Context, req OperationRequest, cfg ProviderConfig, probe AvailabilityProbe, onProgress ProgressFunc) (*ProcessingResult, error) {
	start := time.Now()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	tier, err := SelectTier(req.Operation, cfg, probe)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	backend, ok := e.backends[tier]
	if !ok || backend == nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: tier %q selected but no backend wired", ErrNoProviderAvailable, tier)
	}
	metrics.TierSelectionsTotal.WithLabelValues(string(tier)).Inc()

	text, err := e.run(ctx, req, tier, backend, onProgress)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RequestsTotal.WithLabelValues(status).Inc()
	metrics.ProcessLatency.WithLabelValues(string(tier), string(req.Operation), status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return &ProcessingResult{Text: text, ProviderUsed: tier}, nil
}

// run executes the direct or chunked pipeline for an already-selected tier.
func (e *Engine) run(ctx context.Context, req OperationRequest, tier provider.Tier, backend provider.Backend, onProgress ProgressFunc) (string, error) {
	budget := chunk.BudgetFor(tier, backend.CapacityHint())

	// Direct path: the whole input fits one backend call.
	if len(req.Text) <= budget.TargetChunkSize {
		text, err := e.call(ctx, tier, backend, provider.Request{
			Operation:  req.Operation,
			Text:       req.Text,
			Params:     req.Params,
			UserPrompt: req.UserPrompt,
		})
		if err != nil {
			return "", fmt.Errorf("engine: %s call failed: %w", backend.Name(), err)
		}
		if text == "" {
			// Never report an empty string as success.
			return "", fmt.Errorf("engine: %s returned empty output", backend.Name())
		}
		return text, nil
	}

	plan, err := chunk.Plan(req.Text, budget)
	if err != nil {
		return "", err
	}
	metrics.ChunksPlannedTotal.Add(float64(len(plan.Chunks)))
	progress(onProgress, 0, fmt.Sprintf("splitting input into %d chunks", len(plan.Chunks)))
	log.Printf("[engine] input of %d chars planned into %d chunks of ~%d chars on %s",
		len(req.Text), len(plan.Chunks), plan.ChunkSize, tier)

	outcomes := e.runChunks(ctx, tier, backend, req, plan.Chunks, "", onProgress)

	progress(onProgress, 75, "merging partial results")
	return e.merge(ctx, tier, backend, req, outcomes, budget, 0)
}

// runChunks turns chunks into retry-wrapped backend tasks and executes them
// with the tier's concurrency bound. instruction, when non-empty, replaces
// the default per-operation prompt (used by reduction passes).
func (e *Engine) runChunks(ctx context.Context, tier provider.Tier, backend provider.Backend, req OperationRequest, chunks []chunk.Chunk, instruction string, onProgress ProgressFunc) []batch.TaskOutcome {
	tasks := make([]batch.Task, len(chunks))
	for i, c := range chunks {
		creq := provider.Request{
			Operation:   req.Operation,
			Text:        c.Text,
			Params:      req.Params,
			UserPrompt:  req.UserPrompt,
			Instruction: instruction,
		}
		tasks[i] = func(ctx context.Context) (string, error) {
			return e.callWithRetry(ctx, tier, backend, creq)
		}
	}

	outcomes := batch.Run(ctx, tasks, batch.Options{
		Concurrency:    e.concurrencyFor(tier),
		PerTaskTimeout: e.perTaskTimeout,
		OnTaskDone: func(done, total int) {
			// Chunk completion advances progress from 0 up to ~50%.
			progress(onProgress, done*50/total, fmt.Sprintf("processed chunk %d of %d", done, total))
		},
	})

	for _, o := range outcomes {
		kind := "success"
		if !o.OK {
			kind = string(o.FailureKind)
		}
		metrics.ChunkOutcomesTotal.WithLabelValues(kind).Inc()
	}
	return outcomes
}

// call runs one backend call with retry, racing the whole retry sequence
// against the call deadline.
func (e *Engine) call(ctx context.Context, tier provider.Tier, backend provider.Backend, req provider.Request) (string, error) {
	return resilience.RunWithTimeout(ctx, e.callTimeout, func(ctx context.Context) (string, error) {
		return e.callWithRetry(ctx, tier, backend, req)
	})
}

// callWithRetry wraps a single backend call in the tier's retry policy.
// First contact to a self-hosted endpoint is the most failure-prone path, so
// the local tier backs off exponentially; the others grow linearly.
func (e *Engine) callWithRetry(ctx context.Context, tier provider.Tier, backend provider.Backend, req provider.Request) (string, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: e.retryAttempts,
		BaseDelay:   e.retryBase,
		MaxDelay:    30 * time.Second,
		Schedule:    resilience.ScheduleLinear,
	}
	if tier == provider.TierCloudLocal {
		cfg.Schedule = resilience.ScheduleExponential
	}

	var resp provider.Response
	err := resilience.Retry(ctx, cfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = backend.Run(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}

	// Not every backend reports usage; Ollama and OpenAI do.
	if resp.PromptTokens > 0 {
		metrics.TokenUsageTotal.WithLabelValues(string(tier), "input").Add(float64(resp.PromptTokens))
	}
	if resp.OutputTokens > 0 {
		metrics.TokenUsageTotal.WithLabelValues(string(tier), "output").Add(float64(resp.OutputTokens))
	}

	return resp.Text, nil
}

func (e *Engine) concurrencyFor(tier provider.Tier) int {
	if n, ok := e.concurrency[tier]; ok && n > 0 {
		return n
	}
	return 2
}

func progress(fn ProgressFunc, percent int, message string) {
	if fn != nil {
		fn(percent, message)
	}
}
