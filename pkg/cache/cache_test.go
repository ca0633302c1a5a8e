package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		capacity int
		ttl      time.Duration
		actions  func(c *LRUCache, clock *fakeClock, t *testing.T)
	}{
		{
			name:     "set and get within TTL",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *LRUCache, _ *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				if v, ok := c.Get(ctx, "a"); !ok || string(v) != "1" {
					t.Errorf("expected value=1, got=%v, ok=%v", v, ok)
				}
			},
		},
		{
			name:     "get after expiration",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *LRUCache, clock *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				clock.Advance(2 * time.Second)
				if _, ok := c.Get(ctx, "a"); ok {
					t.Errorf("expected key to be expired")
				}
				if c.Size() != 0 {
					t.Errorf("expected expired key to be removed, size=%d", c.Size())
				}
			},
		},
		{
			name:     "evict least recently used when over capacity",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *LRUCache, _ *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				c.Set(ctx, "b", []byte("2"))
				c.Get(ctx, "a")
				c.Set(ctx, "c", []byte("3"))
				if _, ok := c.Get(ctx, "b"); ok {
					t.Errorf("expected key 'b' to be evicted")
				}
				if v, ok := c.Get(ctx, "a"); !ok || string(v) != "1" {
					t.Errorf("expected a=1, got %v", v)
				}
				if v, ok := c.Get(ctx, "c"); !ok || string(v) != "3" {
					t.Errorf("expected c=3, got %v", v)
				}
			},
		},
		{
			name:     "update value resets TTL",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *LRUCache, clock *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				clock.Advance(600 * time.Millisecond)
				c.Set(ctx, "a", []byte("2"))
				clock.Advance(600 * time.Millisecond)
				if v, ok := c.Get(ctx, "a"); !ok || string(v) != "2" {
					t.Errorf("expected updated value=2, got=%v", v)
				}
			},
		},
		{
			name:     "delete removes entry",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *LRUCache, _ *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				c.Delete(ctx, "a")
				c.Delete(ctx, "missing")
				if _, ok := c.Get(ctx, "a"); ok {
					t.Errorf("expected key to be deleted")
				}
			},
		},
		{
			name:     "cleanup removes expired",
			capacity: 3,
			ttl:      time.Second,
			actions: func(c *LRUCache, clock *fakeClock, t *testing.T) {
				c.Set(ctx, "a", []byte("1"))
				c.Set(ctx, "b", []byte("2"))
				clock.Advance(2 * time.Second)
				c.Set(ctx, "c", []byte("3"))

				c.cleanup()

				if c.Size() != 1 {
					t.Errorf("expected only fresh key to remain, size=%d", c.Size())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			c := NewLRUCache(tt.capacity, tt.ttl)
			c.now = clock.Now
			tt.actions(c, clock, t)
		})
	}
}
