package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type countingMetrics struct {
	hits, misses, evictions, expirations atomic.Int64
}

func (m *countingMetrics) Hit()      { m.hits.Add(1) }
func (m *countingMetrics) Miss()     { m.misses.Add(1) }
func (m *countingMetrics) Eviction() { m.evictions.Add(1) }
func (m *countingMetrics) Expire()   { m.expirations.Add(1) }

func newTestCache(t *testing.T, capacity int, clock *fakeClock) *Cache[string] {
	t.Helper()
	c, err := New[string](Config{
		Capacity:   capacity,
		DefaultTTL: time.Minute,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"ZeroCapacity", Config{Capacity: 0, DefaultTTL: time.Minute}},
		{"NegativeCapacity", Config{Capacity: -1, DefaultTTL: time.Minute}},
		{"ZeroTTL", Config{Capacity: 10}},
		{"NegativeTTL", Config{Capacity: 10, DefaultTTL: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New[string](tt.cfg)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestCache_BasicOperations(t *testing.T) {
	c := newTestCache(t, 100, newFakeClock())

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set("key1", "value1", 0))

		val, ok := c.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := c.Get("nonexistent")
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		require.NoError(t, c.Set("key2", "original", 0))
		require.NoError(t, c.Set("key2", "updated", 0))

		val, ok := c.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("NegativeTTLRejected", func(t *testing.T) {
		err := c.Set("key3", "value", -time.Second)
		assert.ErrorIs(t, err, ErrInvalidTTL)

		_, ok := c.Get("key3")
		assert.False(t, ok)
	})
}

func TestCache_NeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	c := newTestCache(t, capacity, newFakeClock())

	for i := 1; i <= 3*capacity; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key%d", i), "v", 0))
		assert.Equal(t, min(i, capacity), c.Len(), "after %d sets", i)
	}
}

func TestCache_Eviction(t *testing.T) {
	c := newTestCache(t, 3, newFakeClock())

	require.NoError(t, c.Set("A", "a", 0))
	require.NoError(t, c.Set("B", "b", 0))
	require.NoError(t, c.Set("C", "c", 0))

	// Touch A so B becomes least recently used.
	_, ok := c.Get("A")
	require.True(t, ok)

	require.NoError(t, c.Set("D", "d", 0))
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("B")
	assert.False(t, ok, "B should have been evicted")
	for _, key := range []string{"A", "C", "D"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "%s should remain", key)
	}
}

func TestCache_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c := newTestCache(t, 2, newFakeClock())

	require.NoError(t, c.Set("A", "a", 0))
	require.NoError(t, c.Set("B", "b", 0))
	require.NoError(t, c.Set("A", "a2", 0))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"A", "B"}, c.Keys())
}

func TestCache_RecencyOrder(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())

	require.NoError(t, c.Set("A", "a", 0))
	require.NoError(t, c.Set("B", "b", 0))
	require.NoError(t, c.Set("C", "c", 0))
	assert.Equal(t, []string{"C", "B", "A"}, c.Keys())

	c.Get("A")
	assert.Equal(t, []string{"A", "C", "B"}, c.Keys())

	require.NoError(t, c.Set("B", "b2", 0))
	assert.Equal(t, []string{"B", "A", "C"}, c.Keys())
}

func TestCache_Expiration(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 100, clock)

	require.NoError(t, c.Set("k", "v", time.Second))

	val, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	// Still live exactly at the deadline.
	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be purged on read")
}

func TestCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 100, clock)

	require.NoError(t, c.Set("k", "v", 0))

	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, 100, newFakeClock())
	require.NoError(t, c.Set("k", "v", 0))

	t.Run("Existing", func(t *testing.T) {
		assert.True(t, c.Delete("k"))
		_, ok := c.Get("k")
		assert.False(t, ok)
	})

	t.Run("Missing", func(t *testing.T) {
		require.NoError(t, c.Set("other", "v", 0))
		before := c.Len()

		assert.False(t, c.Delete("k"))
		assert.False(t, c.Delete("never-set"))
		assert.Equal(t, before, c.Len())
	})
}

func TestCache_GetOrSet(t *testing.T) {
	ctx := context.Background()

	t.Run("MissPopulates", func(t *testing.T) {
		c := newTestCache(t, 10, newFakeClock())
		calls := 0

		val, err := c.GetOrSet(ctx, "k", func(context.Context) (string, error) {
			calls++
			return "computed", nil
		}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "computed", val)
		assert.Equal(t, 1, calls)

		cached, ok := c.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "computed", cached)
	})

	t.Run("HitSkipsFetch", func(t *testing.T) {
		c := newTestCache(t, 10, newFakeClock())
		require.NoError(t, c.Set("k", "stored", 0))

		val, err := c.GetOrSet(ctx, "k", func(context.Context) (string, error) {
			t.Fatal("fetch must not run on a hit")
			return "", nil
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, "stored", val)
	})

	t.Run("FailureNotCached", func(t *testing.T) {
		c := newTestCache(t, 10, newFakeClock())
		fetchErr := errors.New("record not found")

		_, err := c.GetOrSet(ctx, "k", func(context.Context) (string, error) {
			return "", fetchErr
		}, 0)
		assert.Same(t, fetchErr, err)

		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("ExpiredRefetches", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(t, 10, clock)
		calls := 0
		fetch := func(context.Context) (string, error) {
			calls++
			return fmt.Sprintf("v%d", calls), nil
		}

		val, err := c.GetOrSet(ctx, "k", fetch, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "v1", val)

		clock.Advance(2 * time.Second)
		val, err = c.GetOrSet(ctx, "k", fetch, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "v2", val)
	})

	t.Run("NegativeTTLRejectedBeforeFetch", func(t *testing.T) {
		c := newTestCache(t, 10, newFakeClock())

		_, err := c.GetOrSet(ctx, "k", func(context.Context) (string, error) {
			t.Fatal("fetch must not run with an invalid ttl")
			return "", nil
		}, -time.Second)
		assert.ErrorIs(t, err, ErrInvalidTTL)
	})
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := newTestCache(t, 100, newFakeClock())

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(Key("search", Params{"query": q}), q, 0))
	}
	bookKey := Key("book", Params{"id": 1})
	require.NoError(t, c.Set(bookKey, "book", 0))
	// Shares the leading characters but not the namespace.
	require.NoError(t, c.Set(Key("searches", Params{"query": "a"}), "x", 0))

	removed := c.InvalidatePrefix("search")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get(bookKey)
	assert.True(t, ok)

	assert.Equal(t, 0, c.InvalidatePrefix("search"))
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, 10, newFakeClock())
	require.NoError(t, c.Set("a", "1", 0))
	require.NoError(t, c.Set("b", "2", 0))

	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())

	require.NoError(t, c.Set("c", "3", 0))
	assert.Equal(t, []string{"c"}, c.Keys())
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())
	require.NoError(t, c.Set("a", "1", 0))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
	assert.InDelta(t, 0.25, stats.Utilization, 1e-9)
	assert.InDelta(t, 25.0, stats.UsagePercent, 1e-9)

	// Reading stats has no side effects.
	assert.Equal(t, stats, c.Stats())
}

func TestCache_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, clock)

	require.NoError(t, c.Set("short1", "v", time.Second))
	require.NoError(t, c.Set("short2", "v", time.Second))
	require.NoError(t, c.Set("long", "v", time.Hour))

	assert.Equal(t, 0, c.CleanupExpired())

	clock.Advance(time.Minute)
	assert.Equal(t, 2, c.CleanupExpired())
	assert.Equal(t, []string{"long"}, c.Keys())
}

func TestCache_Metrics(t *testing.T) {
	clock := newFakeClock()
	m := &countingMetrics{}
	c, err := New[int](Config{Capacity: 1, DefaultTTL: time.Second, Clock: clock.Now, Metrics: m})
	require.NoError(t, err)

	require.NoError(t, c.Set("a", 1, 0))
	c.Get("a")
	c.Get("missing")
	require.NoError(t, c.Set("b", 2, 0))
	clock.Advance(2 * time.Second)
	c.Get("b")

	assert.Equal(t, int64(1), m.hits.Load())
	assert.Equal(t, int64(2), m.misses.Load())
	assert.Equal(t, int64(1), m.evictions.Load())
	assert.Equal(t, int64(1), m.expirations.Load())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, err := New[int](Config{Capacity: 16, DefaultTTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_ = c.Set(fmt.Sprintf("k%d", n%32), n, 0)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("k%d", n%32))
			c.Delete(fmt.Sprintf("k%d", (n+1)%32))
		}(i)
		go func(n int) {
			defer wg.Done()
			_, _ = c.GetOrSet(ctx, fmt.Sprintf("k%d", n%32), func(context.Context) (int, error) {
				return n, nil
			}, 0)
			c.InvalidatePrefix("k")
			c.CleanupExpired()
		}(i)
	}

	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
	assert.Len(t, c.Keys(), c.Len())
}

func TestCache_GenericValues(t *testing.T) {
	type book struct {
		ID    int
		Title string
	}
	c, err := New[*book](Config{Capacity: 2, DefaultTTL: time.Minute})
	require.NoError(t, err)

	b := &book{ID: 1, Title: "Dune"}
	require.NoError(t, c.Set("book:1", b, 0))

	got, ok := c.Get("book:1")
	require.True(t, ok)
	assert.Same(t, b, got)

	missing, ok := c.Get("book:2")
	assert.False(t, ok)
	assert.Nil(t, missing)
}
