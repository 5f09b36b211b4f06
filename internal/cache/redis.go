package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oggyb/campus-match/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// GetInt reads an integer value. ok=false on a cache miss.
func (c *RedisCache) GetInt(ctx context.Context, key string) (n int64, ok bool, err error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// IncrIfExists bumps a cached counter without creating it, so a miss still
// falls back to the database instead of starting from 1.
func (c *RedisCache) IncrIfExists(ctx context.Context, key string, ttl time.Duration) error {
	return incrIfExists.Run(ctx, c.Client, []string{key}, ttl.Milliseconds()).Err()
}

var incrIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("INCR", KEYS[1])
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// SetIfAbsent stores value unless key already holds one. Cache fills from the
// database use it so they never replace a count written after their read.
func (c *RedisCache) SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, value, ttl).Result()
}

// Claim sets key only if absent. Used for fire-once guards across replicas.
func (c *RedisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, "1", ttl).Result()
}

// KeyForSwipeCount is the per-day cache key of a user's swipe count.
func (c *RedisCache) KeyForSwipeCount(userID string, day string) string {
	return fmt.Sprintf("swipes:count:%s:%s", userID, day)
}

// KeyForIncomingLikes is the cache key of how many users swiped right on userID.
func (c *RedisCache) KeyForIncomingLikes(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// KeyForDailyReset guards the scheduled counter reset of one calendar day.
func (c *RedisCache) KeyForDailyReset(day string) string {
	return fmt.Sprintf("jobs:swipe-reset:%s", day)
}
