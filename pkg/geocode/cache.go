package geocode

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every provider lookup made by the cache.
const DefaultTimeout = 10 * time.Second

// Cache outcomes reported to an Observer.
const (
	OutcomeHit        = "hit"
	OutcomePersisted  = "persisted"
	OutcomeResolved   = "resolved"
	OutcomeUnresolved = "unresolved"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
)

// Observer receives cache and provider events, typically Prometheus
// collectors.
type Observer interface {
	CacheLookup(outcome string)
	ProviderLatency(provider string, d time.Duration)
}

// Persister stores definitive answers across process runs.
type Persister interface {
	Get(key string) (Location, bool, error)
	Put(key string, loc Location) error
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	ProviderCalls int64 `json:"provider_calls"`
	Unresolved    int64 `json:"unresolved"`
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPersister adds a durable layer consulted before the provider.
func WithPersister(p Persister) CacheOption {
	return func(c *Cache) {
		c.persister = p
	}
}

// WithObserver attaches an event observer.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) {
		c.observer = o
	}
}

// Cache memoizes definitive city/state answers (resolved or no match) for
// the life of the process. Entries are never evicted or overwritten, and
// concurrent requests for the same key share one provider call. Resolve
// never returns an error: a failed lookup degrades to Unresolved for that
// call and is retried by the next request for the key.
type Cache struct {
	provider  Provider
	timeout   time.Duration
	persister Persister
	observer  Observer

	mu      sync.RWMutex
	entries map[string]Location
	group   singleflight.Group

	hits, misses, calls, unresolved atomic.Int64
}

// NewCache wraps provider with memoization.
func NewCache(provider Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		provider: provider,
		timeout:  DefaultTimeout,
		entries:  make(map[string]Location),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the coordinates of city/state. A blank city is unresolved
// without consulting the provider.
func (c *Cache) Resolve(ctx context.Context, city, state string) Location {
	if strings.TrimSpace(city) == "" {
		c.observe(OutcomeSkipped)
		return Unresolved
	}

	key := Key(city, state)
	if loc, ok := c.Lookup(key); ok {
		c.hits.Add(1)
		c.observe(OutcomeHit)
		return loc
	}
	c.misses.Add(1)

	v, _, _ := c.group.Do(key, func() (any, error) {
		// A flight for this key may have finished between the map read
		// above and joining the group.
		if loc, ok := c.Lookup(key); ok {
			return loc, nil
		}
		loc, definitive := c.fill(ctx, key, city, state)
		if definitive {
			c.store(key, loc)
		}
		return loc, nil
	})
	return v.(Location)
}

// Lookup returns a memoized entry without resolving.
func (c *Cache) Lookup(key string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[key]
	return loc, ok
}

// Len returns the number of memoized keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		ProviderCalls: c.calls.Load(),
		Unresolved:    c.unresolved.Load(),
	}
}

// fill resolves key and reports whether the answer is definitive.
func (c *Cache) fill(ctx context.Context, key, city, state string) (Location, bool) {
	if c.persister != nil {
		loc, ok, err := c.persister.Get(key)
		switch {
		case err != nil:
			zap.L().Warn("geocode: persisted lookup failed", zap.String("key", key), zap.Error(err))
		case ok:
			c.observe(OutcomePersisted)
			if !loc.Valid() {
				c.unresolved.Add(1)
				return Unresolved, true
			}
			return loc, true
		}
	}

	// The flight is shared by every waiter on this key, so it must not die
	// with the first caller's context.
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	c.calls.Add(1)
	loc, err := c.provider.Resolve(lookupCtx, city, state)
	if err != nil {
		c.unresolved.Add(1)
		c.observe(OutcomeFailed)
		zap.L().Warn("geocode: lookup failed, treating as unresolved",
			zap.String("key", key),
			zap.String("provider", c.provider.Name()),
			zap.Error(err),
		)
		return Unresolved, false
	}
	if !loc.Valid() {
		loc = Unresolved
		c.unresolved.Add(1)
		c.observe(OutcomeUnresolved)
	} else {
		c.observe(OutcomeResolved)
	}

	if c.persister != nil {
		if err := c.persister.Put(key, loc); err != nil {
			zap.L().Warn("geocode: persist failed", zap.String("key", key), zap.Error(err))
		}
	}
	return loc, true
}

func (c *Cache) store(key string, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = loc
	}
}

func (c *Cache) observe(outcome string) {
	if c.observer != nil {
		c.observer.CacheLookup(outcome)
	}
}
