// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessLatency tracks end-to-end processText latency in seconds.
	ProcessLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "process_latency_seconds",
			Help:    "End-to-end processText latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tier", "operation", "status"},
	)

	// TierSelectionsTotal counts which tier won selection.
	TierSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_selections_total",
			Help: "Total tier selections by tier.",
		},
		[]string{"tier"},
	)

	// ChunksPlannedTotal counts chunks produced by the planner.
	ChunksPlannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunks_planned_total",
			Help: "Total chunks produced by the chunk planner.",
		},
	)

	// ChunkOutcomesTotal counts per-chunk task outcomes.
	ChunkOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_outcomes_total",
			Help: "Chunk task outcomes by kind.",
		},
		[]string{"kind"}, // "success", "timeout", "providerError"
	)

	// TokenUsageTotal tracks the total number of tokens consumed, as
	// reported by backends that return usage data.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_usage_total",
			Help: "Total number of tokens consumed.",
		},
		[]string{"tier", "direction"}, // direction: "input" or "output"
	)

	// ReductionPassesTotal counts recursive merge passes beyond the first.
	ReductionPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reduction_passes_total",
			Help: "Total recursive reduction passes during merge.",
		},
	)

	// RequestsTotal counts processText calls by final status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total processText calls by status.",
		},
		[]string{"status"}, // "success", "error", "cache_hit"
	)

	// ActiveRequests tracks in-flight processText calls.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_requests",
			Help: "Number of in-flight processText calls.",
		},
	)

	// CircuitBreakerState tracks each tier's breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"tier"},
	)

	// CacheLookupsTotal counts result cache lookups.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)
)
