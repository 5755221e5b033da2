// ABOUTME: Thread-safe TTL cache for session metadata.
// ABOUTME: Fast-path store in front of the filesystem; the filesystem stays authoritative.

package session

import (
	"sync"
	"time"
)

// cacheEntry stores one cached metadata value and its insertion time.
type cacheEntry struct {
	meta     *Metadata
	storedAt time.Time
}

// metaCache is a TTL-bounded cache keyed by the instance key string. Entries
// expire so a stale cache can never outlive the authoritative metadata.json
// for long; reads past the TTL fall through to the filesystem. A background
// goroutine sweeps expired entries.
type metaCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	done    chan struct{}
	closed  bool
}

// newMetaCache creates a cache with the given TTL and starts its janitor.
func newMetaCache(ttl time.Duration) *metaCache {
	c := &metaCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached metadata for a key, or nil on miss or expiry.
func (c *metaCache) Get(key string) *Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.storedAt) >= c.ttl {
		return nil
	}
	cp := *entry.meta
	return &cp
}

// Put stores metadata for a key, resetting its TTL.
func (c *metaCache) Put(key string, meta *Metadata) {
	cp := *meta
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{meta: &cp, storedAt: time.Now()}
}

// Delete drops the entry for a key.
func (c *metaCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *metaCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *metaCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *metaCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
