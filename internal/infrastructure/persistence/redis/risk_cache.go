package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defi-academy/navigator/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK CACHE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRiskTTL is the lifetime of a cached assessment.
const DefaultRiskTTL = 300 * time.Second

// RiskCache implements risk.Cache on Redis strings.
type RiskCache struct {
	client *Client
}

var _ risk.Cache = (*RiskCache)(nil)

// NewRiskCache creates a RiskCache.
func NewRiskCache(client *Client) *RiskCache {
	return &RiskCache{client: client}
}

// Get returns the stored record or risk.ErrCacheMiss.
func (c *RiskCache) Get(ctx context.Context, key risk.CacheKey) ([]byte, error) {
	data, err := c.client.GetBytes(ctx, key.String())
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, risk.ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

// Set stores the record. A non-positive ttl falls back to DefaultRiskTTL.
func (c *RiskCache) Set(ctx context.Context, key risk.CacheKey, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultRiskTTL
	}
	return c.client.SetBytes(ctx, key.String(), value, ttl)
}

// Purge drops every cached assessment, for example after a catalog reload.
func (c *RiskCache) Purge(ctx context.Context) (int, error) {
	return c.client.DeleteByPattern(ctx, risk.CacheKeyPrefix+":*")
}
