package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLs
const (
	TTLCounts  = 2 * time.Minute  // library tab counters
	TTLQueue   = 30 * time.Second // compliance review queue
	TTLDefault = 5 * time.Minute
)

// Key prefixes
const (
	PrefixCounts = "counts:"
	PrefixQueue  = "queue:"
)

// ErrUnavailable is returned by reads when no Redis client is configured
var ErrUnavailable = errors.New("redis not available")

// Service is the Redis cache used by the content services
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Library counters, scoped by organization and (optionally) advisor
	GetStatusCounts(ctx context.Context, orgID, advisorID string, dest interface{}) error
	SetStatusCounts(ctx context.Context, orgID, advisorID string, data interface{}) error
	InvalidateStatusCounts(ctx context.Context, orgID string) error

	// Compliance review queue
	GetQueue(ctx context.Context, orgID string, dest interface{}) error
	SetQueue(ctx context.Context, orgID string, data interface{}) error
	InvalidateQueue(ctx context.Context, orgID string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service. A nil client yields a cache that
// always misses and silently drops writes.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrUnavailable
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ========================================
// Status counters
// ========================================

func countsKey(orgID, advisorID string) string {
	if advisorID == "" {
		advisorID = "all"
	}
	return fmt.Sprintf("%s%s:%s", PrefixCounts, orgID, advisorID)
}

func (c *redisCache) GetStatusCounts(ctx context.Context, orgID, advisorID string, dest interface{}) error {
	return c.Get(ctx, countsKey(orgID, advisorID), dest)
}

func (c *redisCache) SetStatusCounts(ctx context.Context, orgID, advisorID string, data interface{}) error {
	return c.Set(ctx, countsKey(orgID, advisorID), data, TTLCounts)
}

func (c *redisCache) InvalidateStatusCounts(ctx context.Context, orgID string) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixCounts+orgID+":*")
}

// ========================================
// Review queue
// ========================================

func queueKey(orgID string) string {
	return PrefixQueue + orgID
}

func (c *redisCache) GetQueue(ctx context.Context, orgID string, dest interface{}) error {
	return c.Get(ctx, queueKey(orgID), dest)
}

func (c *redisCache) SetQueue(ctx context.Context, orgID string, data interface{}) error {
	return c.Set(ctx, queueKey(orgID), data, TTLQueue)
}

func (c *redisCache) InvalidateQueue(ctx context.Context, orgID string) error {
	return c.Delete(ctx, queueKey(orgID))
}

func (c *redisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
