package cache

import (
	"bytes"
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/voxmux/voxmux/types"
)

// DefaultMaxEntries bounds the in-memory cache when no ceiling is configured.
const DefaultMaxEntries = 4096

// entry is an immutable cache record. Overwrites swap the whole entry
// pointer under the lock; an entry is never mutated after insertion, so
// a concurrent reader can never observe a torn write.
type entry struct {
	key       string
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is an in-memory Cache with TTL expiry and LRU eviction
// once the entry count exceeds its ceiling. Recency is updated on
// lookup hits only, not on stores.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	now        func() time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMaxEntries sets the entry ceiling. Values below 1 keep the default.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMemoryClock overrides the cache's time source for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns a live entry, refreshing its recency. Expired entries
// are purged lazily here.
func (c *MemoryCache) Lookup(_ context.Context, capability types.Capability, fingerprint string) ([]byte, bool, error) {
	key := entryKey(capability, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	e := elem.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeLocked(key, elem)
		return nil, false, nil
	}

	c.lru.MoveToFront(elem)
	return bytes.Clone(e.payload), true, nil
}

// Store inserts or overwrites an entry. An overwrite resets the TTL
// clock but does not refresh recency.
func (c *MemoryCache) Store(_ context.Context, capability types.Capability, fingerprint string, payload []byte, ttl time.Duration) error {
	key := entryKey(capability, fingerprint)
	e := &entry{
		key:       key,
		payload:   bytes.Clone(payload),
		expiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		return nil
	}

	c.entries[key] = c.lru.PushFront(e)

	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry).key, oldest)
	}
	return nil
}

// Invalidate removes an entry if present.
func (c *MemoryCache) Invalidate(_ context.Context, capability types.Capability, fingerprint string) error {
	key := entryKey(capability, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(key, elem)
	}
	return nil
}

// Len returns the number of entries, including any not yet swept.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

// Sweep removes all expired entries. Driven by an external maintenance
// tick; lookups also purge lazily.
func (c *MemoryCache) Sweep(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, elem := range c.entries {
		if now.After(elem.Value.(*entry).expiresAt) {
			c.removeLocked(key, elem)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) removeLocked(key string, elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, key)
}

func entryKey(capability types.Capability, fingerprint string) string {
	return string(capability) + ":" + fingerprint
}

var _ Cache = (*MemoryCache)(nil)
