package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrygo/libris/store/cache"
)

// Metrics counts HTTP requests and cache events. It implements cache.Metrics.
type Metrics struct {
	// Counters
	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	cacheEvictions atomic.Int64
	cacheExpired   atomic.Int64

	// Duration window (simplified for internal use)
	mu           sync.Mutex
	durations    []time.Duration
	maxDurations int
}

var _ cache.Metrics = (*Metrics)(nil)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RequestTotal   int64   `json:"request_total"`
	RequestFailed  int64   `json:"request_failed"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheEvictions int64   `json:"cache_evictions"`
	CacheExpired   int64   `json:"cache_expired"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
}

// NewMetrics creates a new metrics collector keeping the last maxDurations request durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(status int, duration time.Duration) {
	m.requestTotal.Add(1)
	if status >= 500 {
		m.requestFailed.Add(1)
	}

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		// FIFO
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// Hit records a cache hit.
func (m *Metrics) Hit() { m.cacheHits.Add(1) }

// Miss records a cache miss.
func (m *Metrics) Miss() { m.cacheMisses.Add(1) }

// Eviction records a capacity eviction.
func (m *Metrics) Eviction() { m.cacheEvictions.Add(1) }

// Expire records the removal of an expired entry.
func (m *Metrics) Expire() { m.cacheExpired.Add(1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		RequestTotal:   m.requestTotal.Load(),
		RequestFailed:  m.requestFailed.Load(),
		CacheHits:      m.cacheHits.Load(),
		CacheMisses:    m.cacheMisses.Load(),
		CacheEvictions: m.cacheEvictions.Load(),
		CacheExpired:   m.cacheExpired.Load(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) > 0 {
		var total time.Duration
		for _, d := range m.durations {
			total += d
		}
		s.AvgDurationMs = float64(total.Microseconds()) / float64(len(m.durations)) / 1000
	}
	return s
}
