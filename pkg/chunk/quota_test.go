package chunk

import (
	"testing"

	"github.com/abdhe/textwise/pkg/provider"
)

func TestBudgetForTierDefaults(t *testing.T) {
	builtIn := BudgetFor(provider.TierBuiltIn, 0)
	cloud := BudgetFor(provider.TierCloudPrimary, 0)
	local := BudgetFor(provider.TierCloudLocal, 0)

	if builtIn.TargetChunkSize >= local.TargetChunkSize || local.TargetChunkSize >= cloud.TargetChunkSize {
		t.Errorf("expected built-in < local < cloud targets, got %d / %d / %d",
			builtIn.TargetChunkSize, local.TargetChunkSize, cloud.TargetChunkSize)
	}
	for _, b := range []Budget{builtIn, cloud, local} {
		if b.Overlap <= 0 || b.Overlap >= b.TargetChunkSize {
			t.Errorf("overlap %d out of range for target %d", b.Overlap, b.TargetChunkSize)
		}
		if b.MaxChunks <= 0 || b.MinChunkSize <= 0 || b.HardCap < b.TargetChunkSize {
			t.Errorf("incomplete budget: %+v", b)
		}
	}
}

func TestBudgetForCapacityHint(t *testing.T) {
	hint := 10000 // tokens
	b := BudgetFor(provider.TierCloudPrimary, hint)

	quotaChars := int(float64(hint) * CharsPerToken)
	wantTarget := int(float64(quotaChars) * capacityHeadroom)
	if b.TargetChunkSize != wantTarget {
		t.Errorf("target = %d, want %d", b.TargetChunkSize, wantTarget)
	}
	if b.HardCap != quotaChars {
		t.Errorf("hard cap = %d, want full quota %d", b.HardCap, quotaChars)
	}
}

func TestBudgetForTinyHintIgnored(t *testing.T) {
	// A hint too small for meaningful chunks falls back to tier defaults.
	b := BudgetFor(provider.TierCloudPrimary, 100)
	if b.TargetChunkSize != defaultTargetCloud {
		t.Errorf("target = %d, want default %d", b.TargetChunkSize, defaultTargetCloud)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}
	if got := EstimateTokens("hi"); got != 1 {
		t.Errorf("tiny text = %d tokens, want at least 1", got)
	}
	if got := EstimateTokens(make35(700)); got != 200 {
		t.Errorf("700 chars = %d tokens, want 200", got)
	}
}

func make35(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
