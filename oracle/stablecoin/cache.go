// Package stablecoin holds the process-wide USDT->USD rate cache that
// the usdt/usd pair observer refreshes on every successful aggregation.
// No adapter in this module reads it: binance converts USDT quotes with
// a companion USDTUSD quote fetched in the same request.
package stablecoin

import (
	"sync/atomic"
	"time"
)

const DefaultTTL = 300 * time.Second

type snapshot struct {
	rate  float64
	setAt time.Time
}

// Cache is a single-writer, many-reader rate cell. Go's sync/atomic.Value
// gives word-sized store/load atomicity over the whole snapshot, which is
// all the spec requires: no mutex, and readers may observe a value that
// is stale by up to one tick.
type Cache struct {
	ttl time.Duration
	v   atomic.Value // snapshot
}

// NewCache builds an empty cache with the given TTL (DefaultTTL if zero).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl}
}

// Set publishes a fresh rate, timestamped now.
func (c *Cache) Set(rate float64, now time.Time) {
	c.v.Store(snapshot{rate: rate, setAt: now})
}

// Get returns the cached rate, or ok=false if never set or older than
// the configured TTL.
func (c *Cache) Get(now time.Time) (rate float64, ok bool) {
	raw := c.v.Load()
	if raw == nil {
		return 0, false
	}

	s := raw.(snapshot)
	if now.Sub(s.setAt) > c.ttl {
		return 0, false
	}
	return s.rate, true
}

// IsStale reports whether the cache holds no rate, or one older than the TTL.
func (c *Cache) IsStale(now time.Time) bool {
	_, ok := c.Get(now)
	return !ok
}

// Age returns how long ago the cached rate was set, or -1 if never set.
func (c *Cache) Age(now time.Time) time.Duration {
	raw := c.v.Load()
	if raw == nil {
		return -1
	}
	return now.Sub(raw.(snapshot).setAt)
}
