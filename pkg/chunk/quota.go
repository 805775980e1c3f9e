package chunk

import "github.com/abdhe/textwise/pkg/provider"

// CharsPerToken approximates tokenizer density when no true token-measurement
// API exists: 1 token ≈ 3.5 characters.
const CharsPerToken = 3.5

// capacityHeadroom is the share of an advertised quota actually used for
// input, leaving room for prompt scaffolding.
const capacityHeadroom = 0.7

// Per-tier defaults, in characters, reflecting real-world context limits:
// cloud tiers take large inputs, on-device models considerably less.
const (
	defaultTargetBuiltIn = 8000
	defaultTargetCloud   = 24000
	defaultTargetLocal   = 16000

	defaultMinChunkSize = 500
	defaultMaxChunks    = 64
)

// BudgetFor derives a chunking budget for a tier. When the backend advertises
// an input quota (in tokens), the target chunk size is floor(quota_chars * 0.7)
// and the hard per-call cap is the full quota; otherwise a fixed conservative
// default per tier applies.
func BudgetFor(tier provider.Tier, capacityHintTokens int) Budget {
	b := Budget{
		MinChunkSize: defaultMinChunkSize,
		MaxChunks:    defaultMaxChunks,
	}

	switch tier {
	case provider.TierBuiltIn:
		b.TargetChunkSize = defaultTargetBuiltIn
		b.MaxChunks = 32
	case provider.TierCloudLocal:
		b.TargetChunkSize = defaultTargetLocal
	default:
		b.TargetChunkSize = defaultTargetCloud
	}

	if capacityHintTokens > 0 {
		quotaChars := int(float64(capacityHintTokens) * CharsPerToken)
		target := int(float64(quotaChars) * capacityHeadroom)
		if target > 2*b.MinChunkSize {
			b.TargetChunkSize = target
			b.HardCap = quotaChars
		}
	}
	if b.HardCap == 0 {
		b.HardCap = 4 * b.TargetChunkSize
	}

	// Overlap scales with chunk size so boundary context survives without
	// duplicating a meaningful share of each chunk.
	b.Overlap = b.TargetChunkSize / 20

	return b
}

// EstimateTokens estimates the token count of a text using the character
// approximation.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := int(float64(len(text)) / CharsPerToken)
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
