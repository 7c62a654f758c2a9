package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache stores serialized summaries and engine results keyed by company and inputs
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrSet returns the cached value for key, or computes and stores it if not present.
// Cache errors are not fatal: the value is computed and returned regardless.
func GetOrSet[T any](ctx context.Context, cache Cache, key string, compute func() (T, error)) (T, bool, error) {
	var value T
	if cache != nil {
		if data, ok, err := cache.Get(ctx, key); err == nil && ok {
			if err := json.Unmarshal(data, &value); err == nil {
				return value, true, nil
			}
		}
	}

	value, err := compute()
	if err != nil {
		return value, false, err
	}

	if cache != nil {
		if data, err := json.Marshal(value); err == nil {
			_ = cache.Set(ctx, key, data)
		}
	}
	return value, false, nil
}

// Key joins parts into a cache key
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}

// CompanyKey builds a key scoped to one company so InvalidateCompany can drop it
func CompanyKey(companyID fmt.Stringer, parts ...any) string {
	return Key(append([]any{"company", companyID.String()}, parts...)...)
}

// CompanyPrefix is the prefix shared by every CompanyKey of a company
func CompanyPrefix(companyID fmt.Stringer) string {
	return Key("company", companyID.String()) + ":"
}

// AggregateCache provides in-memory caching with per-entry expiration
type AggregateCache struct {
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      []byte
	expiration time.Time
}

// NewAggregateCache creates a new in-memory cache
func NewAggregateCache(ttl time.Duration) *AggregateCache {
	cache := &AggregateCache{
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a value from the cache
func (c *AggregateCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiration) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value in the cache
func (c *AggregateCache) Set(ctx context.Context, key string, value []byte) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL
func (c *AggregateCache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
	return nil
}

// DeleteByPrefix removes all entries with keys starting with the given prefix
func (c *AggregateCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// Size returns the number of entries in the cache
func (c *AggregateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// cleanupLoop periodically removes expired entries
func (c *AggregateCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *AggregateCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *AggregateCache) Stop() {
	c.cleanup.Stop()
	close(c.done)
}

// CacheStats reports hit and miss counts
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// HitObserver is told about every lookup
type HitObserver func(hit bool)

// StatsCache wraps a Cache with hit/miss statistics
type StatsCache struct {
	Cache
	hits     int64
	misses   int64
	observer HitObserver
	statsMu  sync.RWMutex
}

// NewStatsCache wraps cache. observer may be nil.
func NewStatsCache(cache Cache, observer HitObserver) *StatsCache {
	return &StatsCache{Cache: cache, observer: observer}
}

// Get retrieves a value and tracks statistics
func (c *StatsCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := c.Cache.Get(ctx, key)

	c.statsMu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.statsMu.Unlock()

	if c.observer != nil {
		c.observer(ok)
	}
	return value, ok, err
}

// GetStats returns cache statistics
func (c *StatsCache) GetStats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}
