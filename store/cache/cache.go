// Package cache provides the in-process response cache used by the library service.
//
// Cache is a bounded, recency-ordered map with a per-entry TTL. It bounds by entry
// count only. Expired entries are purged lazily when touched; CleanupExpired and
// Sweeper reclaim entries that are written but never read again.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfig is returned by New for a non-positive capacity or default TTL.
	ErrInvalidConfig = errors.New("invalid cache config")
	// ErrInvalidTTL is returned when a per-call TTL is negative.
	ErrInvalidTTL = errors.New("invalid cache ttl")
)

// Fetcher computes the value for a key on a cache miss.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Config configures a Cache.
type Config struct {
	Capacity   int           // Maximum number of live entries
	DefaultTTL time.Duration // Lifetime used when a caller passes ttl == 0

	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
	// Metrics receives hit/miss/eviction/expiry events. Defaults to NoopMetrics.
	Metrics Metrics
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Size         int     `json:"size"`
	Capacity     int     `json:"capacity"`
	Utilization  float64 `json:"utilization"`
	UsagePercent float64 `json:"usage_percent"`
}

// Cache implements an LRU cache with TTL support.
type Cache[V any] struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	metrics    Metrics

	mu    sync.Mutex
	items map[string]*entry[V]
	order *list.List // front is most recently used
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// New creates a new cache.
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.Capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "default ttl must be positive, got %s", cfg.DefaultTTL)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}

	return &Cache[V]{
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
		metrics:    cfg.Metrics,
		items:      make(map[string]*entry[V]),
		order:      list.New(),
	}, nil
}

// Get retrieves a value from the cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.metrics.Miss()
		return zero, false
	}

	if c.now().After(e.expiresAt) {
		c.removeEntry(e)
		c.metrics.Expire()
		c.metrics.Miss()
		return zero, false
	}

	c.order.MoveToFront(e.element)
	c.metrics.Hit()
	return e.value, true
}

// Set stores a value in the cache. A zero ttl selects the default TTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) error {
	ttl, err := c.resolveTTL(ttl)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
	} else if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.items[key] = e
	return nil
}

// Delete removes key and reports whether an entry was removed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeEntry(e)
	return true
}

// GetOrSet returns the cached value for key, or calls fetch and caches its result.
//
// fetch runs without the cache lock held. Concurrent misses on the same key may each
// call fetch; the last write wins. A failed fetch is returned unchanged and nothing is
// stored.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	var zero V
	if ttl < 0 {
		return zero, errors.Wrapf(ErrInvalidTTL, "ttl must not be negative, got %s", ttl)
	}

	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.Set(key, value, ttl); err != nil {
		return zero, err
	}
	return value, nil
}

// InvalidatePrefix removes every entry whose key was derived under namespace.
// Returns the number of entries removed.
func (c *Cache[V]) InvalidatePrefix(namespace string) int {
	prefix := namespace + keySeparator

	c.mu.Lock()
	defer c.mu.Unlock()

	var toDelete []*entry[V]
	for key, e := range c.items {
		if strings.HasPrefix(key, prefix) {
			toDelete = append(toDelete, e)
		}
	}
	for _, e := range toDelete {
		c.removeEntry(e)
	}
	return len(toDelete)
}

// Clear removes all entries from the cache and returns how many there were.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]*entry[V])
	c.order.Init()
	return n
}

// Len returns the number of entries in the cache, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the stored keys from most to least recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats reports the current size against capacity.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.items)
	c.mu.Unlock()

	ratio := float64(size) / float64(c.capacity)
	return Stats{
		Size:         size,
		Capacity:     c.capacity,
		Utilization:  ratio,
		UsagePercent: ratio * 100,
	}
}

// CleanupExpired removes all expired entries.
// Returns the number of entries removed.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Collect first to avoid modifying the map during iteration.
	var toDelete []*entry[V]
	now := c.now()
	for _, e := range c.items {
		if now.After(e.expiresAt) {
			toDelete = append(toDelete, e)
		}
	}

	for _, e := range toDelete {
		c.removeEntry(e)
		c.metrics.Expire()
	}
	return len(toDelete)
}

func (c *Cache[V]) resolveTTL(ttl time.Duration) (time.Duration, error) {
	switch {
	case ttl < 0:
		return 0, errors.Wrapf(ErrInvalidTTL, "ttl must not be negative, got %s", ttl)
	case ttl == 0:
		return c.defaultTTL, nil
	default:
		return ttl, nil
	}
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *Cache[V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry[V]))
	c.metrics.Eviction()
}

// removeEntry removes an entry from both the map and the recency list.
// Must be called with lock held.
func (c *Cache[V]) removeEntry(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
}
