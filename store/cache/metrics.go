package cache

// Metrics receives cache lifecycle events. Implementations must be safe for
// concurrent use; they are called with the cache lock held and must not call
// back into the cache.
type Metrics interface {
	// Hit is called when Get returns a live entry.
	Hit()
	// Miss is called when Get finds no live entry.
	Miss()
	// Eviction is called when an entry is dropped to make room.
	Eviction()
	// Expire is called when an entry is purged because its TTL passed.
	Expire()
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}
