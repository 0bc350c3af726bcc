package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// Cached wraps a Provider with an in-memory LRU cache. Entries live for the
// TTL but never past the end of the hour they were fetched in, because
// offsets are anchored to that hour. A cached horizon serves any shorter
// request for the same location by windowing its records.
type Cached struct {
	inner   domain.Provider
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a provider.
func NewCached(inner domain.Provider, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cached {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

func (c *Cached) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	key := cacheKey(req)
	now := c.clock.Now()
	if result, hours, ok := c.cache.get(key, now); ok && hours >= req.Hours {
		c.metrics.ForecastCache.WithLabelValues("hit").Inc()
		if hours > req.Hours {
			result.Records = domain.Range{Hours: req.Hours}.Window(result.Records)
		}
		return result, nil
	}
	c.metrics.ForecastCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so an upstream gap can be retried.
	if len(result.Records) > 0 {
		c.cache.put(key, result, req.Hours, c.expiry(now))
	}
	return result, nil
}

func (c *Cached) expiry(now time.Time) time.Time {
	exp := now.Add(c.ttl)
	if hourEnd := now.Truncate(time.Hour).Add(time.Hour); hourEnd.Before(exp) {
		return hourEnd
	}
	return exp
}

func cacheKey(req domain.FetchRequest) string {
	target := "none"
	if req.TargetElevation != nil {
		target = fmt.Sprintf("%.0f", *req.TargetElevation)
	}
	return fmt.Sprintf("%s|%.4f,%.4f|%s", req.Descriptor.ID, req.Location.Lat, req.Location.Lon, target)
}

// lruCache is a simple thread-safe LRU cache with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   domain.FetchResult
	hours   int
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// get returns a copy of the entry and the horizon it was fetched for.
func (c *lruCache) get(key string, now time.Time) (domain.FetchResult, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.FetchResult{}, 0, false
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return domain.FetchResult{}, 0, false
	}
	c.moveToFront(e)
	return cloneResult(e.value), e.hours, true
}

func (c *lruCache) put(key string, value domain.FetchResult, hours int, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = cloneResult(value)
		e.hours = hours
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: cloneResult(value), hours: hours, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
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
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

// cloneResult copies the record slice and missing set. Field pointers are
// shared; records replace pointers rather than writing through them.
func cloneResult(r domain.FetchResult) domain.FetchResult {
	out := r
	out.Records = append([]domain.NormalizedHourlyForecast(nil), r.Records...)
	out.Missing = domain.NewFieldSet()
	for f := range r.Missing {
		out.Missing.Add(f)
	}
	return out
}
