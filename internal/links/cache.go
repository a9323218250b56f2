package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache keeps short code lookups for the redirect path in Redis.
// Counters in a cached link go stale; only ID and URL are read from it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps an existing Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// NewCacheFromURL connects to redisURL. An empty URL disables caching and
// returns a nil cache, which every method accepts.
func NewCacheFromURL(redisURL string, ttl time.Duration) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewCache(redis.NewClient(opts), ttl), nil
}

func cacheKey(code string) string {
	return fmt.Sprintf("link:%s", code)
}

// Get returns the cached link, or nil on a miss.
func (c *Cache) Get(ctx context.Context, code string) (*Link, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var link Link
	if err := json.Unmarshal([]byte(data), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// Set stores the link under its short code.
func (c *Cache) Set(ctx context.Context, link *Link) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(link.ShortCode), data, c.ttl).Err()
}

// Invalidate drops the cached entry for code.
func (c *Cache) Invalidate(ctx context.Context, code string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(code)).Err()
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Resolve looks a short code up through the cache, falling back to the
// database and filling the cache on a miss. Cache errors are logged and
// never fail the lookup.
func Resolve(ctx context.Context, db *gorm.DB, cache *Cache, logger *slog.Logger, code string) (*Link, error) {
	if cached, err := cache.Get(ctx, code); err != nil {
		logger.Warn("Link cache read failed", slog.String("short_code", code), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	link, err := GetByShortCode(db, code)
	if err != nil {
		return nil, err
	}

	if err := cache.Set(ctx, link); err != nil {
		logger.Warn("Link cache write failed", slog.String("short_code", code), slog.Any("error", err))
	}
	return link, nil
}
