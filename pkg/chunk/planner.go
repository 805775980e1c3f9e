// Package chunk splits oversized input into bounded, overlapping chunks that
// prefer natural text boundaries, sized to each backend's input quota.
package chunk

import (
	"errors"
	"strings"
)

// ErrQuotaExceeded is returned when the input cannot be reduced to MaxChunks
// chunks without a chunk exceeding the backend's hard per-call cap.
var ErrQuotaExceeded = errors.New("chunk: input exceeds what the backend can accept; shorten the input")

// Budget bounds a chunking plan. All sizes are in characters.
type Budget struct {
	TargetChunkSize int
	Overlap         int // Characters shared between consecutive chunks
	MinChunkSize    int // Below this, input is never split
	MaxChunks       int
	HardCap         int // Absolute per-chunk maximum (0 = uncapped)
}

// Chunk is a bounded substring of the original input. Start and End are
// source offsets; consecutive chunks overlap by the plan's Overlap width.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// ChunkPlan is an ordered chunk sequence covering the full input exactly once
// (ignoring overlap regions).
type ChunkPlan struct {
	Chunks    []Chunk
	ChunkSize int
	Overlap   int
}

// Plan splits text according to budget.
//
// The walk computes a naive end index per chunk, then searches backward for
// the best break: paragraph break, then sentence break, then word break, each
// at least MinChunkSize into the chunk, else the naive index stands. The next
// chunk starts Overlap characters before the previous end, always making
// forward progress. If the estimated chunk count exceeds MaxChunks, the
// target size is raised once to fit; if that raise passes HardCap, the input
// is unplannable and ErrQuotaExceeded is returned.
func Plan(text string, budget Budget) (ChunkPlan, error) {
	n := len(text)

	if budget.MaxChunks <= 0 {
		budget.MaxChunks = defaultMaxChunks
	}
	if budget.TargetChunkSize <= 0 {
		budget.TargetChunkSize = defaultTargetCloud
	}
	if budget.Overlap >= budget.TargetChunkSize {
		budget.Overlap = budget.TargetChunkSize / 2
	}

	if n <= budget.MinChunkSize || n <= budget.TargetChunkSize {
		return ChunkPlan{
			Chunks:    []Chunk{{Index: 0, Text: text, Start: 0, End: n}},
			ChunkSize: budget.TargetChunkSize,
			Overlap:   budget.Overlap,
		}, nil
	}

	target := budget.TargetChunkSize
	step := target - budget.Overlap
	estimated := (n + step - 1) / step
	if estimated > budget.MaxChunks {
		// One recompute only: raise the target so MaxChunks suffices.
		target = (n+budget.MaxChunks-1)/budget.MaxChunks + budget.Overlap
		if budget.HardCap > 0 && target > budget.HardCap {
			return ChunkPlan{}, ErrQuotaExceeded
		}
		step = target - budget.Overlap
	}

	var chunks []Chunk
	start := 0
	for start < n {
		last := len(chunks)+1 == budget.MaxChunks

		// The final permitted chunk keeps the naive cut; boundary
		// shortening there could leave uncovered input behind.
		end := start + target
		switch {
		case end >= n:
			end = n
		case !last:
			// Boundary shortening compounds across chunks; a run of early
			// breaks could spend MaxChunks on input the size estimate deemed
			// plannable. Keep the naive cut once that would happen.
			if bp := breakPoint(text, start, end, budget.MinChunkSize); remainderFits(n, bp, start, step, budget, len(chunks)) {
				end = bp
			}
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  text[start:end],
			Start: start,
			End:   end,
		})

		if end >= n {
			break
		}
		if last {
			return ChunkPlan{}, ErrQuotaExceeded
		}

		next := end - budget.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return ChunkPlan{Chunks: chunks, ChunkSize: target, Overlap: budget.Overlap}, nil
}

// remainderFits reports whether ending the current chunk at end leaves enough
// of the chunk budget to cover the rest of the input with naive cuts. The
// final chunk covers a full target (step plus overlap) past its start.
func remainderFits(n, end, start, step int, budget Budget, planned int) bool {
	next := end - budget.Overlap
	if next <= start {
		next = start + 1
	}
	needed := (n - next - budget.Overlap + step - 1) / step
	return needed <= budget.MaxChunks-planned-1
}

// sentenceBreaks are searched as a group; the best (rightmost) match wins.
var sentenceBreaks = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// breakPoint finds the best end index in (start, naiveEnd] for a chunk,
// preferring paragraph > sentence > word boundaries. A break counts only when
// it leaves at least minChunkSize characters in the chunk.
func breakPoint(text string, start, naiveEnd, minChunkSize int) int {
	window := text[start:naiveEnd]

	if idx := strings.LastIndex(window, "\n\n"); idx >= minChunkSize {
		end := idx
		for end < len(window) && window[end] == '\n' {
			end++
		}
		return start + end
	}

	best := -1
	for _, sep := range sentenceBreaks {
		if idx := strings.LastIndex(window, sep); idx > best {
			best = idx
		}
	}
	if best >= minChunkSize {
		// Keep the punctuation, drop into the next chunk after the
		// separator's trailing character.
		return start + best + 2
	}

	if idx := strings.LastIndexByte(window, ' '); idx >= minChunkSize {
		return start + idx + 1
	}

	return naiveEnd
}
