package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/abdhe/textwise/pkg/batch"
	"github.com/abdhe/textwise/pkg/chunk"
	"github.com/abdhe/textwise/pkg/metrics"
	"github.com/abdhe/textwise/pkg/provider"
)

// merge folds per-chunk outcomes into one result. Failed chunks are simply
// absent from the fold — partial results are still useful, so gaps are
// logged, not surfaced. A single surviving outcome is returned unchanged.
// Otherwise the ordered concatenation becomes a reduce input: if it still
// exceeds the chunk threshold it goes back through planner → executor →
// merge (each pass strictly shrinks the text, with an explicit depth guard),
// and once it fits, one final backend call combines the partial results.
func (e *Engine) merge(ctx context.Context, tier provider.Tier, backend provider.Backend, req OperationRequest, outcomes []batch.TaskOutcome, budget chunk.Budget, depth int) (string, error) {
	// Outcomes are positional, so this preserves original chunk order.
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK && o.Result != "" {
			parts = append(parts, o.Result)
		}
	}

	if dropped := len(outcomes) - len(parts); dropped > 0 {
		log.Printf("[engine] merge: %d of %d chunks dropped", dropped, len(outcomes))
	}

	switch len(parts) {
	case 0:
		return "", ErrAllChunksFailed
	case 1:
		return parts[0], nil
	}

	combined := strings.Join(parts, "\n\n")
	instruction := provider.ReduceInstruction(req.Operation)

	if len(combined) > budget.TargetChunkSize {
		if depth >= e.maxReduceDepth {
			return "", fmt.Errorf("%w: still %d chars after %d passes", errReduceDiverged, len(combined), depth)
		}

		plan, err := chunk.Plan(combined, budget)
		if err != nil {
			return "", err
		}
		metrics.ReductionPassesTotal.Inc()
		log.Printf("[engine] reduce pass %d: %d chars re-planned into %d chunks", depth+1, len(combined), len(plan.Chunks))

		reduced := e.runChunks(ctx, tier, backend, req, plan.Chunks, instruction, nil)
		return e.merge(ctx, tier, backend, req, reduced, budget, depth+1)
	}

	text, err := e.call(ctx, tier, backend, provider.Request{
		Operation:   req.Operation,
		Text:        combined,
		Params:      req.Params,
		UserPrompt:  req.UserPrompt,
		Instruction: instruction,
	})
	if err != nil {
		return "", fmt.Errorf("engine: final merge call failed: %w", err)
	}
	if text == "" {
		// Never report an empty string as success.
		return "", fmt.Errorf("engine: final merge call returned empty output: %w", ErrAllChunksFailed)
	}
	return text, nil
}
