// Package cache memoizes analysis results by input fingerprint. Identical
// requests (same center, radius, columns, scenario) return the stored
// result without recomputation. The cache is safe under re-entrant calls
// with the same key; results are deterministic, so last-writer-wins.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ResultCache is a concurrent-safe LRU cache with TTL expiration.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	value     any
	createdAt time.Time
}

// Stats contains cache performance counters.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a ResultCache with the given capacity and TTL.
func New(maxEntries int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Key builds a cache key from an analysis kind and its parameters. The
// parameters are JSON-encoded and hashed, so any comparable request struct
// fingerprints deterministically.
func Key(kind string, params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable params never collide with real keys.
		return fmt.Sprintf("%s/unkeyed-%p", kind, params)
	}
	sum := sha256.Sum256(raw)
	return kind + "/" + hex.EncodeToString(sum[:16])
}

// Get retrieves a cached result. The second return is false on miss or
// expiration.
func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.value, true
}

// Put stores a result, evicting the oldest entry if at capacity.
func (c *ResultCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{value: value, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{value: value, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Invalidate removes every entry whose key starts with the given kind
// prefix. Callers invalidate on upstream changes, e.g. when scenario
// factors are edited.
func (c *ResultCache) Invalidate(kind string) {
	prefix := kind + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, key := range c.order {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

// Stats returns cache performance counters.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *ResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
