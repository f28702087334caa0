package reference

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"labops/internal/metrics"
)

// Fetcher loads one category from the backing store, optionally including
// deactivated items, ordered by sort_order then display_name.
type Fetcher func(ctx context.Context, category string, includeInactive bool) ([]Item, error)

const DefaultTTL = 5 * time.Minute

// Cache is a process-wide TTL cache over reference lookups, keyed by
// (category, includeInactive). Mutations must call Invalidate so the next
// Get re-fetches. A failed fetch leaves any previous entry untouched.
type Cache struct {
	ttl   time.Duration
	fetch Fetcher
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group // collapses concurrent misses per key
}

type cacheEntry struct {
	items     []Item
	fetchedAt time.Time
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the freshness clock (tests).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(fetch Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		fetch:   fetch,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func cacheKey(category string, includeInactive bool) string {
	return category + "_" + strconv.FormatBool(includeInactive)
}

// Get returns the category's items, fetching only when the cached entry is
// missing or older than the TTL.
func (c *Cache) Get(ctx context.Context, category string, includeInactive bool) ([]Item, error) {
	key := cacheKey(category, includeInactive)

	if items, ok := c.fresh(key); ok {
		metrics.CacheHits.WithLabelValues(category).Inc()
		return items, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have fetched while we waited on the group
		if items, ok := c.fresh(key); ok {
			return items, nil
		}
		metrics.CacheMisses.WithLabelValues(category).Inc()
		items, err := c.fetch(ctx, category, includeInactive)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{items: items, fetchedAt: c.now()}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Item), nil
}

func (c *Cache) fresh(key string) ([]Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out, true
}

// Invalidate drops every entry for the given categories (both the
// includeInactive variants); with no arguments it clears the whole cache.
func (c *Cache) Invalidate(categories ...string) {
	metrics.CacheInvalidations.Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(categories) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for _, cat := range categories {
		for key := range c.entries {
			if strings.HasPrefix(key, cat+"_") {
				delete(c.entries, key)
			}
		}
	}
}

// DisplayName resolves code -> label within a category. Falls back to the
// raw code when the item is unknown or the fetch fails; never errors.
func (c *Cache) DisplayName(ctx context.Context, category, code string) string {
	if it, ok := c.lookup(ctx, category, code); ok && it.DisplayName != "" {
		return it.DisplayName
	}
	return code
}

const neutralColor = "#9ca3af"

// Color resolves code -> color with a neutral gray fallback.
func (c *Cache) Color(ctx context.Context, category, code string) string {
	if it, ok := c.lookup(ctx, category, code); ok && it.Color != "" {
		return it.Color
	}
	return neutralColor
}

func (c *Cache) lookup(ctx context.Context, category, code string) (Item, bool) {
	items, err := c.Get(ctx, category, true)
	if err != nil {
		return Item{}, false
	}
	for _, it := range items {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}
