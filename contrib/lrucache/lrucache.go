// Package lrucache provides an in-process stackgen.Cache backed by a
// size-bounded, expiring LRU.
//
//	cache := lrucache.New(lrucache.WithSize(4096))
//	bridge, err := identity.NewBridge(store, providers, identity.WithCache(cache))
package lrucache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/syssam/stackgen"
)

const (
	// DefaultSize is the default maximum number of entries.
	DefaultSize = 1024
	// DefaultMaxTTL bounds the lifetime of every entry, including entries
	// stored without a TTL.
	DefaultMaxTTL = 10 * time.Minute
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero when only the cache-wide TTL applies
}

// Cache is a stackgen.Cache holding values in memory.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

type config struct {
	size   int
	maxTTL time.Duration
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*config)

// WithSize sets the maximum number of entries.
func WithSize(n int) Option {
	return func(c *config) {
		c.size = n
	}
}

// WithMaxTTL sets the upper bound on entry lifetime.
func WithMaxTTL(d time.Duration) Option {
	return func(c *config) {
		c.maxTTL = d
	}
}

// WithClock sets the time source for per-entry expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	cfg := config{size: DefaultSize, maxTTL: DefaultMaxTTL, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.size <= 0 {
		cfg.size = DefaultSize
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](cfg.size, nil, cfg.maxTTL),
		now: cfg.now,
	}
}

// Get implements stackgen.Cache.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, nil
	}
	return e.value, nil
}

// Set implements stackgen.Cache.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

// Delete implements stackgen.Cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// DeletePrefix implements stackgen.Cache.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}

// Clear implements stackgen.Cache.
func (c *Cache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	return c.lru.Len()
}

var _ stackgen.Cache = (*Cache)(nil)
