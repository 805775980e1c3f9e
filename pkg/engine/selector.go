package engine

import "github.com/abdhe/textwise/pkg/provider"

// SelectTier yields exactly one backend tier for a call. Pure function, no
// I/O. Precedence, each step guarded by valid configuration for the tier:
//
//  1. cloud-local when explicitly enabled — local providers always win once
//     the user opted in to self-hosted inference.
//  2. cloud-primary when CloudFirst is set and credentials exist.
//  3. built-in when the probe reports the operation's capability as ready,
//     or downloading (usable with first-call latency).
//  4. cloud-primary as fallback when built-in is unavailable and credentials
//     exist.
//  5. Otherwise ErrNoProviderAvailable.
//
// Selection happens once per call. A stale probe can make a selected tier
// fail at call time; the orchestrator retries within the chosen tier but
// never re-selects, so one call never blends output from two different
// models. This is a deliberate simplicity/latency trade-off.
func SelectTier(op provider.Operation, cfg ProviderConfig, probe AvailabilityProbe) (provider.Tier, error) {
	if cfg.localConfigured() {
		return provider.TierCloudLocal, nil
	}

	if cfg.CloudFirst && cfg.cloudConfigured() {
		return provider.TierCloudPrimary, nil
	}

	switch probe.StatusOf(provider.CapabilityFor(op)) {
	case provider.StatusReady, provider.StatusDownloading:
		return provider.TierBuiltIn, nil
	}

	if cfg.cloudConfigured() {
		return provider.TierCloudPrimary, nil
	}

	return "", ErrNoProviderAvailable
}
