package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spboyer/veracity/internal/models"
)

// DefaultRedisPrefix namespaces every key the cache writes.
const DefaultRedisPrefix = "veracity:result:"

// RedisCache stores entries in Redis with a native TTL, so several API
// servers can share one cache.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the server named by url
// (redis://[user:pass@]host:port/db).
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	return &RedisCache{
		client: redis.NewClient(opts),
		prefix: DefaultRedisPrefix,
		ttl:    ttl,
	}, nil
}

var _ Cache = (*RedisCache)(nil)

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.ConsensusResult, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Result == nil {
		return nil, ErrCacheMiss
	}

	return e.Result, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, result *models.ConsensusResult) error {
	data, err := json.Marshal(entry{StoredAt: time.Now().UTC(), Result: result})
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Clear deletes every key under the cache prefix and nothing else.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())

		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}

	return nil
}
