package sql

import (
	"context"
	"time"

	"github.com/fabrica-orm/fabrica"
)

// TextCache stores rendered statement text in a byte-level cache, letting
// compiled statements be reused across statement instances and, with a
// shared cache backend, across processes.
type TextCache struct {
	cache fabrica.Cache
	ttl   time.Duration
}

// NewTextCache returns a text cache over the given backend. Entries live
// for ttl; zero means no expiry.
func NewTextCache(c fabrica.Cache, ttl time.Duration) *TextCache {
	return &TextCache{cache: c, ttl: ttl}
}

// Put stores the rendered text under the given key.
func (tc *TextCache) Put(ctx context.Context, key string, t *Text) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	return tc.cache.Set(ctx, key, data, tc.ttl)
}

// Get returns the text stored under the given key. Backend errors and
// decode failures count as misses; the cache is advisory.
func (tc *TextCache) Get(ctx context.Context, key string) (*Text, bool) {
	data, err := tc.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil, false
	}
	var t Text
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, false
	}
	return &t, true
}

// Delete removes the entry stored under the given key.
func (tc *TextCache) Delete(ctx context.Context, key string) error {
	return tc.cache.Delete(ctx, key)
}
