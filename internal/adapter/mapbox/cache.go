package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

// cachePrecision rounds coordinates to about 100 m before caching, so
// repeated predictions for the same spot share one lookup.
const cachePrecision = 1e3

// CachedResolver wraps a LocationResolver with an in-memory LRU cache.
type CachedResolver struct {
	inner   domain.LocationResolver
	cache   *lruCache
	metrics *observability.ServingMetrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.LocationResolver, maxEntries int, metrics *observability.ServingMetrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// ReverseGeocode implements domain.LocationResolver.
func (c *CachedResolver) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	key := cacheKey{lat: round(lat), lon: round(lon)}
	if place, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	place, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return place, err
	}
	// Empty answers are not cached so a transient miss can be retried.
	if place.FormattedAddress != "" || place.PlaceName != "" {
		c.cache.put(key, place)
	}
	return place, nil
}

func round(v float64) float64 {
	return math.Round(v*cachePrecision) / cachePrecision
}

type cacheKey struct {
	lat, lon float64
}

type cacheEntry struct {
	key   cacheKey
	place domain.Place
}

// lruCache is a thread-safe LRU of places. The list front is the most
// recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[cacheKey]*list.Element
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		order:      list.New(),
		entries:    make(map[cacheKey]*list.Element),
	}
}

func (c *lruCache) get(key cacheKey) (domain.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Place{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).place, true
}

func (c *lruCache) put(key cacheKey, place domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).place = place
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, place: place})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
