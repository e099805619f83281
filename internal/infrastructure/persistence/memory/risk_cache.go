package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// RiskCache implements risk.Cache with lazy expiry.
type RiskCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     timeutil.Clock
}

var _ risk.Cache = (*RiskCache)(nil)

// NewRiskCache creates an empty cache. A nil clock uses the system clock.
func NewRiskCache(clock timeutil.Clock) *RiskCache {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &RiskCache{entries: make(map[string]cacheEntry), now: clock}
}

// Get returns the stored bytes or risk.ErrCacheMiss when absent or expired.
func (c *RiskCache) Get(_ context.Context, key risk.CacheKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		return nil, risk.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, k)
		return nil, risk.ErrCacheMiss
	}
	return bytes.Clone(e.value), nil
}

// Set stores value. A non-positive ttl never expires.
func (c *RiskCache) Set(_ context.Context, key risk.CacheKey, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key.String()] = e
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *RiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
