// Package batch runs chunk-processing tasks with bounded concurrency and a
// deadline per task, tolerating individual task failure.
package batch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/abdhe/textwise/pkg/resilience"
)

// FailureKind classifies why a task produced no result.
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureProvider FailureKind = "providerError"
)

// TaskOutcome is the per-task result. A task that failed has OK=false, an
// empty Result and a FailureKind; the merge step must tolerate such gaps.
type TaskOutcome struct {
	ChunkIndex  int
	Result      string
	OK          bool
	FailureKind FailureKind
	Err         error
}

// Task is one unit of chunk work.
type Task func(ctx context.Context) (string, error)

// Options bounds a batch run.
type Options struct {
	// Concurrency is the number of tasks started per batch. Batches run
	// strictly one after another, so this also bounds total simultaneous
	// backend load. Recommended: 2 for on-device tiers, 3 for network tiers.
	Concurrency int

	// PerTaskTimeout is the deadline each task races against.
	PerTaskTimeout time.Duration

	// OnTaskDone, when set, is invoked after each task settles with the
	// number of settled tasks so far and the total. Calls are serialized.
	OnTaskDone func(done, total int)
}

// Run partitions tasks into sequential batches of Options.Concurrency and
// executes each batch concurrently. Outcomes are collected positionally: the
// returned slice is indexed by task order regardless of completion order. A
// failed or timed-out task never aborts the batch; its outcome records the
// failure kind and the gap is logged, not surfaced.
func Run(ctx context.Context, tasks []Task, opts Options) []TaskOutcome {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PerTaskTimeout <= 0 {
		opts.PerTaskTimeout = 60 * time.Second
	}

	outcomes := make([]TaskOutcome, len(tasks))

	var progressMu sync.Mutex
	done := 0
	settle := func(idx int, result string, err error) {
		out := TaskOutcome{ChunkIndex: idx}
		switch {
		case err == nil:
			out.OK = true
			out.Result = result
		case errors.Is(err, resilience.ErrTimedOut):
			out.FailureKind = FailureTimeout
			out.Err = err
			log.Printf("[batch] task %d timed out after %s, dropping its chunk", idx, opts.PerTaskTimeout)
		default:
			out.FailureKind = FailureProvider
			out.Err = err
			log.Printf("[batch] task %d failed, dropping its chunk: %v", idx, err)
		}
		outcomes[idx] = out

		progressMu.Lock()
		done++
		if opts.OnTaskDone != nil {
			opts.OnTaskDone(done, len(tasks))
		}
		progressMu.Unlock()
	}

	for base := 0; base < len(tasks); base += opts.Concurrency {
		if err := ctx.Err(); err != nil {
			for idx := base; idx < len(tasks); idx++ {
				settle(idx, "", err)
			}
			break
		}

		endAt := base + opts.Concurrency
		if endAt > len(tasks) {
			endAt = len(tasks)
		}

		var wg sync.WaitGroup
		for idx := base; idx < endAt; idx++ {
			wg.Add(1)
			go func(idx int, task Task) {
				defer wg.Done()
				result, err := resilience.RunWithTimeout(ctx, opts.PerTaskTimeout, func(ctx context.Context) (string, error) {
					return task(ctx)
				})
				settle(idx, result, err)
			}(idx, tasks[idx])
		}
		wg.Wait()
	}

	return outcomes
}
