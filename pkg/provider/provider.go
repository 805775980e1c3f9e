// Package provider defines the backend capability interface shared by all
// AI tiers, plus the adapters that implement it.
package provider

import "context"

// Tier identifies one of the interchangeable AI backends.
type Tier string

const (
	TierBuiltIn      Tier = "built-in"      // On-device capability runtime
	TierCloudPrimary Tier = "cloud-primary" // Managed cloud API
	TierCloudLocal   Tier = "cloud-local"   // Self-hosted HTTP endpoint
)

// Operation is the kind of text transformation being requested.
type Operation string

const (
	OpSummarize    Operation = "summarize"
	OpTranslate    Operation = "translate"
	OpValidate     Operation = "validate"
	OpRewrite      Operation = "rewrite"
	OpCustomPrompt Operation = "customPrompt"
)

// Capability is a probe-able on-device feature name.
type Capability string

const (
	CapSummarizer Capability = "summarizer"
	CapTranslator Capability = "translator"
	CapRewriter   Capability = "rewriter"
	CapPrompt     Capability = "prompt"
)

// CapabilityFor maps an operation to the on-device capability that serves it.
// Validation and free-form prompts both need the general language model.
func CapabilityFor(op Operation) Capability {
	switch op {
	case OpSummarize:
		return CapSummarizer
	case OpTranslate:
		return CapTranslator
	case OpRewrite:
		return CapRewriter
	default:
		return CapPrompt
	}
}

// CapabilityStatus is a point-in-time readiness state reported by a probe.
type CapabilityStatus string

const (
	StatusReady       CapabilityStatus = "ready"
	StatusDownloading CapabilityStatus = "downloading" // Usable, with first-call latency
	StatusUnavailable CapabilityStatus = "unavailable"
)

// Request represents one backend call. Params carries operation-specific
// options (length, tone, targetLanguage). Instruction, when set, overrides the
// default per-operation prompt scaffolding — the reduce pass uses it to ask
// for a combination of partial results instead of a fresh transformation.
type Request struct {
	Operation   Operation
	Text        string
	Params      map[string]string
	UserPrompt  string // Free-form prompt for OpCustomPrompt
	Instruction string
}

// Response represents a completed backend call.
type Response struct {
	Text         string
	PromptTokens int32
	OutputTokens int32
}

// Backend is the single capability interface every tier is adapted to.
// The orchestration core depends on nothing else.
type Backend interface {
	// Name returns a human-readable identifier for this backend
	// (e.g. "openai", "ollama", "ondevice").
	Name() string

	// Run performs one inference call for the given request.
	// The context should carry a deadline/timeout.
	Run(ctx context.Context, req Request) (Response, error)

	// CapacityHint returns the backend's advertised input budget in tokens,
	// or 0 when the backend does not advertise one.
	CapacityHint() int
}
