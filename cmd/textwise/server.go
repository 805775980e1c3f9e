package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/abdhe/textwise/pkg/cache"
	"github.com/abdhe/textwise/pkg/engine"
	"github.com/abdhe/textwise/pkg/metrics"
	"github.com/abdhe/textwise/pkg/provider"
	"github.com/abdhe/textwise/pkg/resilience"
)

// server exposes the engine over a JSON HTTP API.
type server struct {
	engine         *engine.Engine
	providerConfig engine.ProviderConfig
	onDevice       *provider.OnDevice
	resultCache    *cache.ResultCache
	breakers       map[provider.Tier]*resilience.CircuitBreaker
	requestTimeout time.Duration
}

type processRequest struct {
	Text       string            `json:"text"`
	Operation  string            `json:"operation"`
	Params     map[string]string `json:"params,omitempty"`
	UserPrompt string            `json:"userPrompt,omitempty"`
}

type processResponse struct {
	Text      string  `json:"text"`
	Provider  string  `json:"provider"`
	CacheHit  bool    `json:"cacheHit"`
	LatencyMs float64 `json:"latencyMs"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handleProcess serves POST /v1/process.
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	requestID := uuid.NewString()

	var body processRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidRequest", fmt.Sprintf("decode body: %v", err))
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "invalidRequest", "text is required")
		return
	}

	op, err := parseOperation(body.Operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalidRequest", err.Error())
		return
	}

	req := engine.OperationRequest{
		Text:       body.Text,
		Operation:  op,
		Params:     body.Params,
		UserPrompt: body.UserPrompt,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	// Result cache lookup
	var cacheKey string
	if s.resultCache != nil {
		cacheKey = cache.Key(req)
		cached, hit, lookupErr := s.resultCache.Get(ctx, cacheKey)
		switch {
		case lookupErr != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			log.Printf("[server] %s cache lookup error: %v", requestID, lookupErr)
		case hit:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			metrics.RequestsTotal.WithLabelValues("cache_hit").Inc()
			writeJSON(w, http.StatusOK, processResponse{
				Text:      cached.Text,
				Provider:  string(cached.ProviderUsed),
				CacheHit:  true,
				LatencyMs: float64(time.Since(start).Milliseconds()),
			})
			return
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	probe := s.probe(ctx)

	result, err := s.engine.ProcessText(ctx, req, s.providerConfig, probe, func(percent int, message string) {
		log.Printf("[server] %s progress %d%%: %s", requestID, percent, message)
	})

	s.exportBreakerStates()

	if err != nil {
		status, kind := classifyError(err)
		log.Printf("[server] %s %s failed after %s: %v", requestID, op, time.Since(start), err)
		writeError(w, status, kind, userMessage(err))
		return
	}

	// Store asynchronously; a cache write failure only costs a future hit.
	if s.resultCache != nil {
		go func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := s.resultCache.Set(sctx, cacheKey, *result); err != nil {
				log.Printf("[server] %s cache store error: %v", requestID, err)
			}
		}()
	}

	log.Printf("[server] %s %s via %s in %s", requestID, op, result.ProviderUsed, time.Since(start))
	writeJSON(w, http.StatusOK, processResponse{
		Text:      result.Text,
		Provider:  string(result.ProviderUsed),
		LatencyMs: float64(time.Since(start).Milliseconds()),
	})
}

// probe snapshots on-device capability readiness. Probe failures disable the
// built-in tier for this call only.
func (s *server) probe(ctx context.Context) engine.AvailabilityProbe {
	if s.onDevice == nil {
		return engine.AvailabilityProbe{}
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	statuses, err := s.onDevice.Probe(pctx)
	if err != nil {
		log.Printf("[server] on-device probe failed: %v", err)
		return engine.AvailabilityProbe{}
	}
	return engine.AvailabilityProbe{PerCapability: statuses}
}

func (s *server) exportBreakerStates() {
	for tier, cb := range s.breakers {
		metrics.CircuitBreakerState.WithLabelValues(string(tier)).Set(float64(cb.State()))
	}
}

func parseOperation(s string) (provider.Operation, error) {
	switch provider.Operation(s) {
	case provider.OpSummarize, provider.OpTranslate, provider.OpValidate,
		provider.OpRewrite, provider.OpCustomPrompt:
		return provider.Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// classifyError maps engine errors to HTTP status codes and error kinds.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable, "noProviderAvailable"
	case errors.Is(err, engine.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge, "quotaExceeded"
	case errors.Is(err, engine.ErrAllChunksFailed):
		return http.StatusBadGateway, "allChunksFailed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, resilience.ErrTimedOut):
		return http.StatusGatewayTimeout, "backendTimeout"
	default:
		return http.StatusBadGateway, "backendError"
	}
}

// userMessage renders a typed error as a short, specific message instead of
// the raw error chain.
func userMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoProviderAvailable):
		return "no AI provider is available for this operation; configure a provider or enable the on-device model"
	case errors.Is(err, engine.ErrQuotaExceeded):
		return "the input is too large to process; try shorter text"
	case errors.Is(err, engine.ErrAllChunksFailed):
		return "all parts of the input failed to process; try again or use shorter text"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, resilience.ErrTimedOut):
		return "the provider did not respond in time; try again"
	default:
		return "the provider returned an error; try again"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}
