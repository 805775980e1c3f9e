package engine

import (
	"errors"

	"github.com/abdhe/textwise/pkg/chunk"
)

var (
	// ErrNoProviderAvailable means no tier passed selection. Fatal,
	// surfaced immediately rather than silently no-opping.
	ErrNoProviderAvailable = errors.New("engine: no provider available for this operation")

	// ErrAllChunksFailed means every chunk in a plan failed or timed out.
	ErrAllChunksFailed = errors.New("engine: all chunks failed; try shorter text")

	// ErrQuotaExceeded means the input exceeds what the planner can reduce
	// to within the chunk-count cap. Shorten the input.
	ErrQuotaExceeded = chunk.ErrQuotaExceeded

	// errReduceDiverged guards the recursive reduction against a merge
	// output that stops shrinking.
	errReduceDiverged = errors.New("engine: reduction passes did not converge")
)
