// Package pricecache holds short-lived USD prices and the feed that fills
// them.
package pricecache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/metric"
)

type entry struct {
	price    decimal.Decimal
	storedAt time.Time
}

// Cache is a TTL cache. Expired entries are dropped when read.
type Cache struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New returns an empty Cache whose entries live for ttl.
func New(c clock.Clock, ttl time.Duration) *Cache {
	if c == nil {
		c = clock.New()
	}
	return &Cache{clock: c, ttl: ttl, entries: make(map[string]entry)}
}

// Get returns the cached price for key if it is younger than the TTL.
func (c *Cache) Get(key string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		metric.PriceCacheHits.WithLabelValues("miss").Inc()
		return decimal.Zero, false
	}
	if c.clock.Since(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		metric.PriceCacheHits.WithLabelValues("expired").Inc()
		return decimal.Zero, false
	}
	metric.PriceCacheHits.WithLabelValues("hit").Inc()
	return e.price, true
}

// Set stores price under key.
func (c *Cache) Set(key string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{price: price, storedAt: c.clock.Now()}
}

// Len reports how many entries are held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
