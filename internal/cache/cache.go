// Package cache provides a bounded, thread-safe TTL cache.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	expiry  time.Time
	touched time.Time
	value   V
}

// Cache maps keys to values that expire after a TTL. When full, the least
// recently written entry is evicted synchronously on Set.
type Cache[K comparable, V any] struct {
	entries    map[K]entry[V]
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces time.Now, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates a cache. A zero ttl defaults to 15 minutes; maxEntries <= 0
// means unbounded.
func New[K comparable, V any](ttl time.Duration, maxEntries int, opts ...Option[K, V]) *Cache[K, V] {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	c := &Cache[K, V]{
		entries:    make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiry) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, expiry: now.Add(c.ttl), touched: now}
}

// evictLocked drops expired entries, then the oldest one if still full.
func (c *Cache[K, V]) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.touched.Before(oldest) {
			oldestKey, oldest, found = k, e.touched, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
