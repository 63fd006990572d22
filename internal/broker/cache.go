package broker

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/redis/go-redis/v9"
)

const cacheTimeout = 3 * time.Second

// URLCache remembers issued signed URLs for less than their lifetime
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisURLCache keeps signed URLs in Redis with TTL
type RedisURLCache struct {
	client *redis.Client
	prefix string
}

// NewRedisURLCache builds a Redis-backed URL cache
func NewRedisURLCache(addr, password string) *RedisURLCache {
	return &RedisURLCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "memoryland:url:",
	}
}

// Ping checks the Redis connection
func (c *RedisURLCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisURLCache) Close() error {
	return c.client.Close()
}

func (c *RedisURLCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisURLCache) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	return c.client.Set(ctx, c.prefix+key, url, ttl).Err()
}

func (c *RedisURLCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

type cachedURL struct {
	url     string
	expires time.Time
}

// MemoryURLCache keeps signed URLs in a sharded in-process map
type MemoryURLCache struct {
	entries cmap.ConcurrentMap[string, cachedURL]
	now     func() time.Time
}

// NewMemoryURLCache creates an empty in-process URL cache
func NewMemoryURLCache() *MemoryURLCache {
	return &MemoryURLCache{
		entries: cmap.New[cachedURL](),
		now:     time.Now,
	}
}

func (c *MemoryURLCache) Get(_ context.Context, key string) (string, bool, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expires) {
		c.entries.RemoveCb(key, func(_ string, v cachedURL, exists bool) bool {
			return exists && v.expires.Equal(entry.expires)
		})
		return "", false, nil
	}
	return entry.url, true, nil
}

func (c *MemoryURLCache) Set(_ context.Context, key, url string, ttl time.Duration) error {
	c.entries.Set(key, cachedURL{url: url, expires: c.now().Add(ttl)})
	return nil
}

func (c *MemoryURLCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}
