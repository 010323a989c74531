package usace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
)

// CachedProvider wraps a TelemetryProvider with an in-memory LRU cache whose
// entries expire after ttl.
type CachedProvider struct {
	inner   domain.TelemetryProvider
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner domain.TelemetryProvider, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// SetClock replaces the clock used for expiry. Intended for tests.
func (c *CachedProvider) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

func (c *CachedProvider) Fetch(ctx context.Context, q domain.TelemetryQuery) (domain.ProviderResponse, error) {
	key := cacheKey(q)
	now := c.clock.Now()
	if resp, ok := c.cache.get(key, now); ok {
		c.metrics.TelemetryCache.WithLabelValues("hit").Inc()
		return resp, nil
	}
	c.metrics.TelemetryCache.WithLabelValues("miss").Inc()

	resp, err := c.inner.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, resp, now.Add(c.ttl))
	return resp, nil
}

func cacheKey(q domain.TelemetryQuery) string {
	return q.Timezone + "|" + FormatBackward(q.Backward) + "|" + strings.Join(q.Series, ",")
}

// lruCache is a simple thread-safe LRU cache of provider responses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.ProviderResponse
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// get returns the live entry for key. Expired entries are dropped.
func (c *lruCache) get(key string, now time.Time) (domain.ProviderResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.ProviderResponse, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
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
