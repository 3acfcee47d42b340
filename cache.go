package fabrica

import (
	"context"
	"time"
)

// Cache is the interface for caching rendered statement text and other
// byte-encoded artifacts of the persistence layer. Users may implement it
// with their preferred caching solution (e.g. Redis, Memcached, in-memory);
// NewLRUCache provides a process-local default.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a compiled statement in a Cache. Shape is a
// caller-defined discriminator for the statement form, typically a
// fingerprint of the query that produced it.
type CacheKey struct {
	Dialect   string
	Candidate string
	Shape     string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Dialect + ":" + k.Candidate + ":" + k.Shape
}
