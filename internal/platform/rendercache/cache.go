// Package rendercache caches rendered read responses keyed by logical page
// path, and propagates path invalidations after writes.
//
// A key is a path optionally followed by "?" and an encoded query string.
// Invalidating a path drops the bare path and every query variant of it.
package rendercache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject carries invalidated paths between replicas.
const DefaultSubject = "render.invalidate"

// Cache is the read/write interface of a render cache.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	InvalidatePaths(ctx context.Context, paths ...string)
}

// Key builds the cache key for a path and its query parameters.
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func covers(path, key string) bool {
	return key == path || strings.HasPrefix(key, path+"?")
}

type cacheItem struct {
	val       []byte
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &TTLCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Subscribe drops paths announced on subj by any replica, this one included.
// An empty payload or "ALL" clears the cache.
func (c *TTLCache) Subscribe(nc *nats.Conn, subj string) (*nats.Subscription, error) {
	return nc.Subscribe(subj, func(m *nats.Msg) {
		payload := strings.TrimSpace(string(m.Data))
		if payload == "" || strings.EqualFold(payload, "ALL") {
			c.Clear()
			return
		}
		c.InvalidatePaths(context.Background(), strings.Split(payload, "\n")...)
	})
}

func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return it.val, true
}

func (c *TTLCache) Set(_ context.Context, key string, val []byte) {
	c.mu.Lock()
	c.items[key] = cacheItem{val: val, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTLCache) InvalidatePaths(_ context.Context, paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		for _, p := range paths {
			if covers(p, key) {
				delete(c.items, key)
				break
			}
		}
	}
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
