package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached entries between replicas. Failures are logged and
// reported as misses so the caller falls back to the database.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedisCache(logger *slog.Logger, cfg RedisConfig) *RedisCache {
	return NewRedisCacheWithClient(logger, redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix, cfg.TTL)
}

func NewRedisCacheWithClient(logger *slog.Logger, client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger.With(slog.String("cache", "redis")),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		lookups.WithLabelValues(backendRedis, "miss").Inc()
		return nil, false
	}
	if err != nil {
		lookups.WithLabelValues(backendRedis, "error").Inc()
		c.logger.WarnContext(ctx, "failed to get key", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	lookups.WithLabelValues(backendRedis, "hit").Inc()
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to set key", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to delete key", slog.String("key", key), slog.Any("error", err))
	}
}

// Start checks that redis is reachable.
func (c *RedisCache) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
