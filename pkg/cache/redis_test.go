package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewRedisCacheWithClient(logger, client, "orders", time.Minute)
	defer c.Close()

	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	c.Delete(ctx, "a")

	assert.Error(t, c.Start(ctx))
	assert.Equal(t, "orders:a", c.key("a"))
}
