package resilience

import (
	"fmt"
	"sync"
	"time"
)

// KeyPool manages a pool of API keys for a cloud tier with round-robin
// rotation and per-key rate-limit quarantine.
type KeyPool struct {
	mu      sync.Mutex
	keys    []keyEntry
	current int
}

type keyEntry struct {
	Key       string
	ResetAt   time.Time // When the rate-limit quarantine lifts
	Exhausted bool
}

// NewKeyPool creates a key pool from a list of API keys.
func NewKeyPool(keys []string) *KeyPool {
	entries := make([]keyEntry, len(keys))
	for i, k := range keys {
		entries[i] = keyEntry{Key: k}
	}
	return &KeyPool{keys: entries}
}

// Next returns the next usable API key in round-robin order, skipping keys
// still under rate-limit quarantine. Returns an error when every key is
// exhausted.
func (kp *KeyPool) Next() (string, error) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	n := len(kp.keys)
	if n == 0 {
		return "", fmt.Errorf("keypool: no keys configured")
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		idx := (kp.current + i) % n
		entry := &kp.keys[idx]

		if entry.Exhausted && now.After(entry.ResetAt) {
			entry.Exhausted = false
		}

		if !entry.Exhausted {
			kp.current = (idx + 1) % n
			return entry.Key, nil
		}
	}

	earliest := kp.keys[0].ResetAt
	for _, e := range kp.keys[1:] {
		if e.ResetAt.Before(earliest) {
			earliest = e.ResetAt
		}
	}
	return "", fmt.Errorf("keypool: all keys exhausted, earliest reset at %s", earliest.Format(time.RFC3339))
}

// MarkRateLimited quarantines a key until resetAt.
func (kp *KeyPool) MarkRateLimited(key string, resetAt time.Time) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	for i := range kp.keys {
		if kp.keys[i].Key == key {
			kp.keys[i].Exhausted = true
			kp.keys[i].ResetAt = resetAt
			return
		}
	}
}

// Size returns the number of keys in the pool.
func (kp *KeyPool) Size() int {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	return len(kp.keys)
}
