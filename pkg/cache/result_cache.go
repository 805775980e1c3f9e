// Package cache provides an optional Redis-backed cache for completed
// processText results, keyed exactly by operation, params and input text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdhe/textwise/pkg/engine"
)

// ResultCache wraps a Redis client for storing whole processing results.
// Cache failures never fail a request; they degrade to a miss.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache creates a Redis-backed result cache.
func NewResultCache(addr, password string, db int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Key derives a deterministic cache key for a request. Params are folded in
// sorted order so equivalent maps hash identically.
func Key(req engine.OperationRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Operation))
	h.Write([]byte{0})

	names := make([]string, 0, len(req.Params))
	for name := range req.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\x00", name, req.Params[name])
	}

	h.Write([]byte(req.UserPrompt))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))

	return fmt.Sprintf("textwise:result:%x", h.Sum(nil)[:16])
}

// Get retrieves a cached result by key. Returns the result and true when
// found, or the zero value and false when not.
func (c *ResultCache) Get(ctx context.Context, key string) (engine.ProcessingResult, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return engine.ProcessingResult{}, false, nil
	}
	if err != nil {
		return engine.ProcessingResult{}, false, fmt.Errorf("result_cache: get: %w", err)
	}

	var result engine.ProcessingResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return engine.ProcessingResult{}, false, fmt.Errorf("result_cache: unmarshal: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		// Never replay an empty result as a hit.
		return engine.ProcessingResult{}, false, nil
	}

	return result, true, nil
}

// Set stores a result with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, key string, result engine.ProcessingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result_cache: marshal: %w", err)
	}

	if err := c.client.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("result_cache: set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
