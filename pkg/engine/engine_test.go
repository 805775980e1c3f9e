package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abdhe/textwise/pkg/metrics"
	"github.com/abdhe/textwise/pkg/provider"
)

// fakeBackend records every request and delegates behavior to run.
type fakeBackend struct {
	hint         int
	run          func(req provider.Request) (string, error)
	promptTokens int32
	outputTokens int32

	mu   sync.Mutex
	reqs []provider.Request
}

func (f *fakeBackend) Name() string      { return "fake" }
func (f *fakeBackend) CapacityHint() int { return f.hint }

func (f *fakeBackend) Run(ctx context.Context, req provider.Request) (provider.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	text, err := f.run(req)
	if err != nil {
		return provider.Response{}, err
	}
	return provider.Response{Text: text, PromptTokens: f.promptTokens, OutputTokens: f.outputTokens}, nil
}

func (f *fakeBackend) requests() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.reqs...)
}

// testHint keeps chunk sizes small: 1000 tokens ≈ 3500 chars quota,
// 2450 chars target after headroom.
const testHint = 1000

func cloudConfig() ProviderConfig {
	return ProviderConfig{CloudFirst: true, CloudCredentials: "sk-test"}
}

func newTestEngine(f *fakeBackend) *Engine {
	return New(
		map[provider.Tier]provider.Backend{provider.TierCloudPrimary: f},
		WithRetry(1, time.Millisecond),
		WithTimeouts(5*time.Second, 2*time.Second),
	)
}

func TestProcessTextDirect(t *testing.T) {
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		return "a short summary", nil
	}}
	eng := newTestEngine(f)

	req := OperationRequest{Text: "a small input", Operation: provider.OpSummarize}
	result, err := eng.ProcessText(context.Background(), req, cloudConfig(), AvailabilityProbe{}, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if result.Text != "a short summary" {
		t.Errorf("text = %q", result.Text)
	}
	if result.ProviderUsed != provider.TierCloudPrimary {
		t.Errorf("provider = %q, want cloud-primary", result.ProviderUsed)
	}

	reqs := f.requests()
	if len(reqs) != 1 {
		t.Fatalf("backend called %d times, want 1", len(reqs))
	}
	if reqs[0].Text != req.Text || reqs[0].Instruction != "" {
		t.Errorf("backend request = %+v, want the raw input with no override", reqs[0])
	}
}

func TestProcessTextNoProviderAvailable(t *testing.T) {
	eng := newTestEngine(&fakeBackend{hint: testHint})

	_, err := eng.ProcessText(context.Background(), OperationRequest{Text: "x", Operation: provider.OpSummarize}, ProviderConfig{}, AvailabilityProbe{}, nil)
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err = %v, want ErrNoProviderAvailable", err)
	}
}

func TestProcessTextSelectedTierNotWired(t *testing.T) {
	eng := New(map[provider.Tier]provider.Backend{})

	_, err := eng.ProcessText(context.Background(), OperationRequest{Text: "x", Operation: provider.OpSummarize}, cloudConfig(), AvailabilityProbe{}, nil)
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err = %v, want ErrNoProviderAvailable", err)
	}
}

func TestProcessTextChunkedPipeline(t *testing.T) {
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		if req.Instruction != "" {
			return "final combined summary", nil
		}
		return "partial", nil
	}}
	eng := newTestEngine(f)

	text := strings.Repeat("many words fill the space here. ", 190) // ~6080 chars
	var mu sync.Mutex
	var percents []int

	result, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{},
		func(percent int, message string) {
			mu.Lock()
			percents = append(percents, percent)
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if result.Text != "final combined summary" {
		t.Errorf("text = %q", result.Text)
	}

	var chunkCalls, mergeCalls int
	for _, r := range f.requests() {
		if r.Instruction == "" {
			chunkCalls++
		} else {
			mergeCalls++
		}
	}
	if chunkCalls < 2 {
		t.Errorf("chunk calls = %d, want a multi-chunk fan-out", chunkCalls)
	}
	if mergeCalls != 1 {
		t.Errorf("merge calls = %d, want exactly one final combine", mergeCalls)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(percents) == 0 || percents[0] != 0 {
		t.Fatalf("progress = %v, want it to start at 0", percents)
	}
	saw75 := false
	for _, p := range percents {
		if p == 75 {
			saw75 = true
		}
		if p < 0 || p > 75 {
			t.Errorf("progress value %d out of range", p)
		}
	}
	if !saw75 {
		t.Errorf("progress = %v, want a 75%% merge checkpoint", percents)
	}
}

func TestProcessTextToleratesChunkGap(t *testing.T) {
	head := strings.Repeat("alpha beta gamma words. ", 125)[:3000]
	tail := strings.Repeat("delta epsilon words. ", 150)
	text := head + " xFAILx " + tail

	boom := errors.New("provider exploded")
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		if strings.Contains(req.Text, "xFAILx") && req.Instruction == "" {
			return "", boom
		}
		if req.Instruction != "" {
			return "merged without the gap", nil
		}
		return "partial", nil
	}}
	eng := newTestEngine(f)

	result, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if err != nil {
		t.Fatalf("a single failed chunk must not fail the call: %v", err)
	}
	if result.Text != "merged without the gap" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestProcessTextAllChunksFailed(t *testing.T) {
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		return "", errors.New("everything is down")
	}}
	eng := newTestEngine(f)

	text := strings.Repeat("words that will never be processed. ", 170)
	_, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("err = %v, want ErrAllChunksFailed", err)
	}
}

func TestMergeIdentityForSingleSurvivor(t *testing.T) {
	// Two chunks fail, one survives: its output must come back unchanged,
	// with no final combine call.
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		if req.Instruction != "" {
			return "", errors.New("unexpected merge call")
		}
		if strings.Contains(req.Text, "KEEPME") {
			return "the sole survivor", nil
		}
		return "", errors.New("dropped")
	}}
	eng := newTestEngine(f)

	text := "KEEPME " + strings.Repeat("filler words everywhere. ", 250)
	result, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if result.Text != "the sole survivor" {
		t.Errorf("text = %q, want the single outcome unchanged", result.Text)
	}
	for _, r := range f.requests() {
		if r.Instruction != "" {
			t.Error("identity merge must not issue a combine call")
		}
	}
}

func TestProcessTextRecursiveReduction(t *testing.T) {
	// Chunk outputs are so large that their fold exceeds the chunk
	// threshold, forcing a reduce pass before the final combine.
	longPartial := strings.Repeat("partial output words here. ", 120) // ~3240 chars
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		if req.Instruction != "" {
			return "done", nil
		}
		return longPartial, nil
	}}
	eng := newTestEngine(f)

	text := strings.Repeat("original input words to split. ", 200) // ~6200 chars
	result, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if result.Text != "done" {
		t.Errorf("text = %q", result.Text)
	}

	var reduceCalls int
	for _, r := range f.requests() {
		if r.Instruction != "" {
			reduceCalls++
		}
	}
	if reduceCalls < 2 {
		t.Errorf("reduce calls = %d, want a reduction pass plus the final combine", reduceCalls)
	}
}

func TestProcessTextNeverReturnsEmptySuccess(t *testing.T) {
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		return "", nil
	}}
	eng := newTestEngine(f)

	_, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: "small input", Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if err == nil {
		t.Fatal("an empty backend output must not be reported as success")
	}
}

func TestProcessTextRecordsTokenUsage(t *testing.T) {
	f := &fakeBackend{
		hint:         testHint,
		promptTokens: 42,
		outputTokens: 7,
		run: func(req provider.Request) (string, error) {
			return "a short summary", nil
		},
	}
	eng := newTestEngine(f)

	inputBefore := testutil.ToFloat64(metrics.TokenUsageTotal.WithLabelValues(string(provider.TierCloudPrimary), "input"))
	outputBefore := testutil.ToFloat64(metrics.TokenUsageTotal.WithLabelValues(string(provider.TierCloudPrimary), "output"))

	_, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: "a small input", Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}

	inputDelta := testutil.ToFloat64(metrics.TokenUsageTotal.WithLabelValues(string(provider.TierCloudPrimary), "input")) - inputBefore
	outputDelta := testutil.ToFloat64(metrics.TokenUsageTotal.WithLabelValues(string(provider.TierCloudPrimary), "output")) - outputBefore
	if inputDelta != 42 {
		t.Errorf("input token delta = %v, want 42", inputDelta)
	}
	if outputDelta != 7 {
		t.Errorf("output token delta = %v, want 7", outputDelta)
	}
}

func TestProcessTextQuotaExceeded(t *testing.T) {
	f := &fakeBackend{hint: testHint, run: func(req provider.Request) (string, error) {
		return "ok", nil
	}}
	// MaxChunks * HardCap bounds total plannable input: with the test hint
	// the hard cap is 3500 chars, so 64 chunks cannot cover ~350k chars
	// once the planner raises the target past the cap.
	eng := newTestEngine(f)

	text := strings.Repeat("x", 350000)
	_, err := eng.ProcessText(context.Background(),
		OperationRequest{Text: text, Operation: provider.OpSummarize},
		cloudConfig(), AvailabilityProbe{}, nil)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}
