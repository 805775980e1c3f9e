// Package engine orchestrates text operations across interchangeable AI
// backends: it selects a tier, splits oversized input into quota-sized
// chunks, fans the chunks out with bounded concurrency, and folds the partial
// outputs back into one result.
package engine

import "github.com/abdhe/textwise/pkg/provider"

// OperationRequest describes one processText call. Immutable per call.
type OperationRequest struct {
	Text       string
	Operation  provider.Operation
	Params     map[string]string // e.g. length, tone, targetLanguage
	UserPrompt string            // Free-form prompt for customPrompt
}

// ProviderConfig is the resolved caller configuration consulted during tier
// selection. The engine never persists it.
type ProviderConfig struct {
	// LocalEnabled turns on the self-hosted tier. Once enabled, the local
	// tier always wins: the user explicitly opted in to offline inference.
	LocalEnabled bool
	LocalBaseURL string // Self-hosted endpoint; required for the tier to count as configured
	LocalModel   string

	// CloudFirst prefers the managed cloud API over the on-device runtime.
	CloudFirst bool

	// CloudCredentials is the opaque secret for the managed cloud tier.
	// Empty means the tier is unconfigured.
	CloudCredentials string
}

// localConfigured reports whether the self-hosted tier has valid configuration.
func (c ProviderConfig) localConfigured() bool {
	return c.LocalEnabled && c.LocalBaseURL != ""
}

// cloudConfigured reports whether the managed cloud tier has credentials.
func (c ProviderConfig) cloudConfigured() bool {
	return c.CloudCredentials != ""
}

// AvailabilityProbe is a point-in-time snapshot of on-device capability
// readiness. It may be stale; the engine treats it as advisory only — a live
// call can still fail even when the probe said ready.
type AvailabilityProbe struct {
	PerCapability map[provider.Capability]provider.CapabilityStatus
}

// StatusOf returns the probed status for a capability, defaulting to
// unavailable when the capability was never probed.
func (p AvailabilityProbe) StatusOf(c provider.Capability) provider.CapabilityStatus {
	if s, ok := p.PerCapability[c]; ok {
		return s
	}
	return provider.StatusUnavailable
}

// ProcessingResult is the externally visible value of a processText call.
// ProviderUsed lets the caller badge which tier produced the text.
type ProcessingResult struct {
	Text         string
	ProviderUsed provider.Tier
}

// ProgressFunc receives progress checkpoints: 0% when chunking begins,
// incrementally up to ~50% as chunks complete, ~75% when the final merge
// starts. Callers not needing progress pass nil.
type ProgressFunc func(percent int, message string)
