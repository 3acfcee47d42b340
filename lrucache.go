package fabrica

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is an in-memory Cache backed by a fixed-size LRU. Entries may
// carry a per-entry TTL, checked on read; expired entries report as missing
// and are evicted lazily.
type LRUCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, lruEntry]
}

type lruEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// NewLRUCache returns an LRUCache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	inner, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{inner: inner}, nil
}

// Get retrieves a value from the cache. Returns nil, nil on a miss or an
// expired entry.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.inner.Get(key)
	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.inner.Remove(key)
		return nil, nil
	}
	return entry.value, nil
}

// Set stores a value with an optional TTL. A zero ttl never expires.
func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := lruEntry{value: value}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, entry)
	return nil
}

// Delete removes a value from the cache.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key)
	return nil
}

// DeletePrefix removes all values whose key starts with prefix.
func (c *LRUCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.inner.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.inner.Remove(key)
		}
	}
	return nil
}

// Clear removes all values from the cache.
func (c *LRUCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
	return nil
}

// Len returns the number of live entries, counting expired but not yet
// evicted entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// Ensure the interface is implemented.
var _ Cache = (*LRUCache)(nil)
