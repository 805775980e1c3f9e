// textwise — AI text-processing service entry point
//
// Environment variables:
//   HTTP_PORT            — API server port (default: 8080)
//   METRICS_PORT         — Prometheus metrics HTTP port (default: 9090)
//   OPENAI_API_KEYS      — Comma-separated API keys for the managed cloud tier
//   OPENAI_BASE_URL      — Cloud API base URL (default: https://api.openai.com/v1)
//   OPENAI_MODEL         — Cloud model name (default: gpt-4o-mini)
//   LOCAL_BASE_URL       — Self-hosted endpoint; non-empty enables the cloud-local tier
//   LOCAL_MODEL          — Self-hosted model name (default: llama3)
//   CLOUD_FIRST          — Prefer the cloud tier over on-device (default: false)
//   ONDEVICE_URL         — On-device capability runtime URL (default: "", tier disabled)
//   REDIS_ADDR           — Redis address for the result cache (default: "", cache disabled)
//   REDIS_PASSWORD       — Redis password (default: "")
//   REDIS_DB             — Redis database (default: 0)
//   CACHE_TTL            — Result cache TTL (default: 1h)
//   REQUEST_TIMEOUT      — End-to-end request timeout (default: 5m)
//   CALL_TIMEOUT         — Single backend call timeout (default: 2m)
//   TASK_TIMEOUT         — Per-chunk task timeout (default: 1m)
//   MAX_RETRIES          — Attempts per backend call (default: 3)
//   RETRY_BASE_DELAY     — Base delay between attempts (default: 500ms)
//   CB_FAILURE_THRESHOLD — Circuit breaker failure threshold (default: 5)
//   CB_COOLDOWN          — Circuit breaker cooldown (default: 30s)
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdhe/textwise/pkg/cache"
	"github.com/abdhe/textwise/pkg/engine"
	"github.com/abdhe/textwise/pkg/provider"
	"github.com/abdhe/textwise/pkg/resilience"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting textwise...")

	// -------------------------------------------------------------------------
	// Configuration from environment
	// -------------------------------------------------------------------------
	httpPort := envOrDefault("HTTP_PORT", "8080")
	metricsPort := envOrDefault("METRICS_PORT", "9090")
	openaiKeys := splitKeys(os.Getenv("OPENAI_API_KEYS"))
	openaiBaseURL := envOrDefault("OPENAI_BASE_URL", "")
	openaiModel := envOrDefault("OPENAI_MODEL", "")
	localBaseURL := os.Getenv("LOCAL_BASE_URL")
	localModel := envOrDefault("LOCAL_MODEL", "llama3")
	cloudFirst := envBoolOrDefault("CLOUD_FIRST", false)
	onDeviceURL := os.Getenv("ONDEVICE_URL")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := envIntOrDefault("REDIS_DB", 0)
	cacheTTL := envDurationOrDefault("CACHE_TTL", 1*time.Hour)
	requestTimeout := envDurationOrDefault("REQUEST_TIMEOUT", 5*time.Minute)
	callTimeout := envDurationOrDefault("CALL_TIMEOUT", 2*time.Minute)
	taskTimeout := envDurationOrDefault("TASK_TIMEOUT", 1*time.Minute)
	maxRetries := envIntOrDefault("MAX_RETRIES", 3)
	retryBaseDelay := envDurationOrDefault("RETRY_BASE_DELAY", 500*time.Millisecond)
	cbFailureThreshold := envIntOrDefault("CB_FAILURE_THRESHOLD", 5)
	cbCooldown := envDurationOrDefault("CB_COOLDOWN", 30*time.Second)

	// -------------------------------------------------------------------------
	// Initialize tier backends
	// -------------------------------------------------------------------------
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cbFailureThreshold,
		Cooldown:         cbCooldown,
	}

	backends := make(map[provider.Tier]provider.Backend)
	breakers := make(map[provider.Tier]*resilience.CircuitBreaker)

	if len(openaiKeys) > 0 {
		cb := resilience.NewCircuitBreaker(cbCfg)
		backends[provider.TierCloudPrimary] = provider.WithBreaker(provider.NewOpenAI(provider.OpenAIConfig{
			BaseURL: openaiBaseURL,
			Model:   openaiModel,
			Keys:    openaiKeys,
		}), cb)
		breakers[provider.TierCloudPrimary] = cb
		log.Printf("cloud-primary tier enabled (%d keys)", len(openaiKeys))
	}

	if localBaseURL != "" {
		cb := resilience.NewCircuitBreaker(cbCfg)
		backends[provider.TierCloudLocal] = provider.WithBreaker(provider.NewOllama(localBaseURL, localModel), cb)
		breakers[provider.TierCloudLocal] = cb
		log.Printf("cloud-local tier enabled (%s, model=%s)", localBaseURL, localModel)
	}

	var onDevice *provider.OnDevice
	if onDeviceURL != "" {
		onDevice = provider.NewOnDevice(onDeviceURL)
		backends[provider.TierBuiltIn] = onDevice
		log.Printf("built-in tier enabled (%s)", onDeviceURL)
	}

	if len(backends) == 0 {
		log.Println("WARNING: no tier configured — every request will fail selection")
	}

	// -------------------------------------------------------------------------
	// Provider configuration for tier selection
	// -------------------------------------------------------------------------
	providerCfg := engine.ProviderConfig{
		LocalEnabled:     localBaseURL != "",
		LocalBaseURL:     localBaseURL,
		LocalModel:       localModel,
		CloudFirst:       cloudFirst,
		CloudCredentials: strings.Join(openaiKeys, ","),
	}

	// -------------------------------------------------------------------------
	// Initialize result cache
	// -------------------------------------------------------------------------
	var resultCache *cache.ResultCache
	if redisAddr != "" {
		rc := cache.NewResultCache(redisAddr, redisPassword, redisDB, cacheTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Printf("WARNING: Redis connection failed: %v (result cache disabled)", err)
		} else {
			resultCache = rc
			log.Printf("result cache enabled (TTL=%s)", cacheTTL)
		}
		cancel()
	}

	// -------------------------------------------------------------------------
	// Create the engine
	// -------------------------------------------------------------------------
	eng := engine.New(backends,
		engine.WithRetry(maxRetries, retryBaseDelay),
		engine.WithTimeouts(callTimeout, taskTimeout),
	)

	srv := &server{
		engine:         eng,
		providerConfig: providerCfg,
		onDevice:       onDevice,
		resultCache:    resultCache,
		breakers:       breakers,
		requestTimeout: requestTimeout,
	}

	// -------------------------------------------------------------------------
	// Start API server
	// -------------------------------------------------------------------------
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/v1/process", srv.handleProcess)
	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	apiServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      apiMux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 30*time.Second,
	}

	go func() {
		log.Printf("API server listening on :%s", httpPort)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start HTTP metrics server
	// -------------------------------------------------------------------------
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:         ":" + metricsPort,
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Metrics server listening on :%s/metrics", metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server error: %v", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Graceful shutdown
	// -------------------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	if resultCache != nil {
		if err := resultCache.Close(); err != nil {
			log.Printf("Result cache close error: %v", err)
		}
	}

	log.Println("textwise shut down successfully")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var keys []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
