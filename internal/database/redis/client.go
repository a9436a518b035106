// Package redis provides the Redis client that keeps the live view of a
// run: the last block of every pool, per-pool block sets, credit
// leaderboards and the cached final result.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for poolsim
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration
type Config struct {
	URL          string
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TTL applies to every key written; zero keeps keys forever.
	TTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(cfg *Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key layout

// PoolKey returns the key of a per-pool value of an experiment
func PoolKey(experimentID, pool, name string) string {
	return fmt.Sprintf("poolsim:%s:pool:%s:%s", experimentID, pool, name)
}

// ExperimentKey returns the key of a per-experiment value
func ExperimentKey(experimentID, name string) string {
	return fmt.Sprintf("poolsim:%s:%s", experimentID, name)
}

// Blocks

// SetLatestBlock stores the last block of a pool and adds its event id to
// the pool's block set. Replaying the same event leaves the count as is.
func (c *Client) SetLatestBlock(ctx context.Context, experimentID, pool, eventID string, block any) error {
	jsonData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	blockKey := PoolKey(experimentID, pool, "last_block")
	setKey := PoolKey(experimentID, pool, "blocks")

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, blockKey, jsonData, c.ttl)
	pipe.SAdd(ctx, setKey, eventID)
	if c.ttl > 0 {
		pipe.Expire(ctx, setKey, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set latest block: %w", err)
	}

	return nil
}

// GetLatestBlock retrieves the last block of a pool. The bool is false
// when none was recorded.
func (c *Client) GetLatestBlock(ctx context.Context, experimentID, pool string, dest any) (bool, error) {
	jsonData, err := c.rdb.Get(ctx, PoolKey(experimentID, pool, "last_block")).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get latest block: %w", err)
	}

	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	return true, nil
}

// GetBlockCount returns the number of distinct blocks recorded for a pool
func (c *Client) GetBlockCount(ctx context.Context, experimentID, pool string) (int64, error) {
	n, err := c.rdb.SCard(ctx, PoolKey(experimentID, pool, "blocks")).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return n, nil
}

// Leaderboards

// Credit is one leaderboard entry
type Credit struct {
	Address string  `json:"address"`
	Credits float64 `json:"credits"`
}

// SetLeaderboard replaces the credit leaderboard of a pool
func (c *Client) SetLeaderboard(ctx context.Context, experimentID, pool string, credits []Credit) error {
	key := PoolKey(experimentID, pool, "credits")

	members := make([]redis.Z, len(credits))
	for i, cr := range credits {
		members[i] = redis.Z{Score: cr.Credits, Member: cr.Address}
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		pipe.ZAdd(ctx, key, members...)
	}
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set leaderboard: %w", err)
	}

	return nil
}

// TopCredits returns the n best credited addresses of a pool
func (c *Client) TopCredits(ctx context.Context, experimentID, pool string, n int64) ([]Credit, error) {
	values, err := c.rdb.ZRevRangeWithScores(ctx, PoolKey(experimentID, pool, "credits"), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	out := make([]Credit, 0, len(values))
	for _, z := range values {
		address, _ := z.Member.(string)
		out = append(out, Credit{Address: address, Credits: z.Score})
	}
	return out, nil
}

// Caching

// SetCache stores data in cache with expiration
func (c *Client) SetCache(ctx context.Context, key string, data any, expiration time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	cacheKey := fmt.Sprintf("cache:%s", key)
	if err := c.rdb.Set(ctx, cacheKey, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// GetCache retrieves data from cache. The bool is false on a miss.
func (c *Client) GetCache(ctx context.Context, key string, dest any) (bool, error) {
	cacheKey := fmt.Sprintf("cache:%s", key)
	jsonData, err := c.rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return true, nil
}

// SetResult caches the final result of a run
func (c *Client) SetResult(ctx context.Context, experimentID string, result any) error {
	return c.SetCache(ctx, ExperimentKey(experimentID, "result"), result, c.ttl)
}

// GetResult retrieves the cached final result of a run
func (c *Client) GetResult(ctx context.Context, experimentID string, dest any) (bool, error) {
	return c.GetCache(ctx, ExperimentKey(experimentID, "result"), dest)
}
