// Package redis implements the Redis-backed cache used by the risk engine.
//
// Key components:
//   - Client: connection wrapper with health reporting
//   - RiskCache: tagged-record store for risk assessment results
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseURL overlays a redis:// or rediss:// URL onto DefaultConfig.
func ParseURL(rawURL string) (Config, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return Config{}, fmt.Errorf("parse redis url: %w", err)
	}
	cfg := DefaultConfig()
	host, port, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return Config{}, fmt.Errorf("parse redis address %q: %w", opts.Addr, err)
	}
	cfg.Host = host
	if cfg.Port, err = strconv.Atoi(port); err != nil {
		return Config{}, fmt.Errorf("parse redis port %q: %w", port, err)
	}
	cfg.Password = opts.Password
	cfg.DB = opts.DB
	return cfg, nil
}

// Options converts the config into go-redis options.
func (c Config) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolTimeout:  c.PoolTimeout,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheConnection is returned when Redis cannot be reached.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheInvalidTTL is returned when a negative TTL is provided.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client wraps a go-redis client.
type Client struct {
	rdb    redis.UniversalClient
	config Config
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(cfg.Options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Client{rdb: rdb, config: cfg}, nil
}

// NewClientFrom wraps an existing go-redis client without pinging it.
func NewClientFrom(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb, config: DefaultConfig()}
}

// Redis returns the underlying go-redis client.
func (c *Client) Redis() redis.UniversalClient {
	return c.rdb
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// HealthStatus describes Redis reachability and pool usage.
type HealthStatus struct {
	Healthy     bool          `json:"healthy"`
	Error       string        `json:"error,omitempty"`
	PingLatency time.Duration `json:"ping_latency"`
	TotalConns  uint32        `json:"total_conns"`
	IdleConns   uint32        `json:"idle_conns"`
	Hits        uint32        `json:"hits"`
	Misses      uint32        `json:"misses"`
}

// Health pings Redis and reports pool statistics.
func (c *Client) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{}

	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	status.PingLatency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Healthy = true
	}

	if stats := c.rdb.PoolStats(); stats != nil {
		status.TotalConns = stats.TotalConns
		status.IdleConns = stats.IdleConns
		status.Hits = stats.Hits
		status.Misses = stats.Misses
	}
	return status
}

// ══════════════════════════════════════════════════════════════════════════════
// BASIC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetBytes returns the raw value, or redis.Nil when the key is absent.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}
	return c.rdb.Get(ctx, key).Bytes()
}

// SetBytes stores a raw value. A zero TTL keeps the key forever.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteByPattern deletes all keys matching a pattern in batches of 100.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, ErrCacheKeyEmpty
	}

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var (
		keys    []string
		deleted int
	)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return deleted, err
		}
		deleted += len(keys)
	}
	return deleted, nil
}
