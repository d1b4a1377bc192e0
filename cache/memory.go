package cache

import (
	"context"
	"sync"
	"time"
)

// cacheEntry holds a cached value with its expiry.
type cacheEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryCache is a thread-safe in-process store with per-entry TTL.
type InMemoryCache struct {
	cache map[string]cacheEntry
	mu    sync.RWMutex
	now   func() time.Time
}

// NewInMemoryCache creates an empty in-memory store.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// GetMany returns the non-expired values for keys.
func (c *InMemoryCache) GetMany(_ context.Context, keys []string) (map[string]string, error) {
	now := c.now()
	found := make(map[string]string, len(keys))
	var stale []string

	c.mu.RLock()
	for _, k := range keys {
		entry, ok := c.cache[k]
		if !ok {
			continue
		}
		if entry.expired(now) {
			stale = append(stale, k)
			continue
		}
		found[k] = entry.value
	}
	c.mu.RUnlock()

	if len(stale) > 0 {
		c.mu.Lock()
		for _, k := range stale {
			if entry, ok := c.cache[k]; ok && entry.expired(now) {
				delete(c.cache, k)
			}
		}
		c.mu.Unlock()
	}

	return found, nil
}

// SetMany stores entries. A non-positive ttl stores them without expiry.
func (c *InMemoryCache) SetMany(_ context.Context, entries map[string]string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		c.cache[k] = cacheEntry{value: v, expiresAt: expiresAt}
	}
	return nil
}

// Len returns the number of entries in the cache (including expired ones).
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear removes all entries from the cache.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// Ping always succeeds; the store lives in process.
func (c *InMemoryCache) Ping(context.Context) error {
	return nil
}

// Verify InMemoryCache implements Store
var _ Store = (*InMemoryCache)(nil)
