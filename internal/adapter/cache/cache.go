// Package cache memoizes forecast results for repeated requests on the same
// dataset. It is a presentation concern only: the forecast itself stays a
// pure function of its input.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/observability"
	"github.com/couchcryptid/water-forecast-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// CachedForecaster wraps a Forecaster with an in-memory LRU cache keyed by the
// dataset fingerprint.
type CachedForecaster struct {
	inner   pipeline.Forecaster
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedForecaster creates a cache decorator around a forecaster. A ttl of
// zero keeps entries until they are evicted.
func NewCachedForecaster(inner pipeline.Forecaster, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedForecaster {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedForecaster{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

// Forecast returns the cached result for table when present, otherwise runs the
// inner forecaster. Failed forecasts are not cached.
func (c *CachedForecaster) Forecast(ctx context.Context, table domain.RawTable) (domain.Result, error) {
	key := domain.Fingerprint(table)
	if result, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	result, err := c.inner.Forecast(ctx, table)
	if err != nil {
		return result, err
	}
	c.cache.put(key, result)
	return result, nil
}

// Len reports the number of cached results.
func (c *CachedForecaster) Len() int {
	return c.cache.len()
}

// lruCache is a simple thread-safe LRU cache for forecast results.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key      string
	value    domain.Result
	storedAt time.Time
	prev     *entry
	next     *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Result{}, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.remove(e)
		return domain.Result{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Result) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = now
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, storedAt: now}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) expired(e *entry) bool {
	return c.ttl > 0 && c.clock.Since(e.storedAt) >= c.ttl
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
