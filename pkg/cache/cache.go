package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const janitorInterval = 2 * time.Minute

type entry struct {
	key        string
	value      []byte
	expiration time.Time
}

// LRUCache is an in-process cache bounded by capacity, with per-entry TTL.
type LRUCache struct {
	capacity int
	mu       sync.Mutex
	ll       *list.List
	cache    map[string]*list.Element
	ttl      time.Duration
	now      func() time.Time
}

func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ll:       list.New(),
		cache:    make(map[string]*list.Element),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.cache[key]
	if !ok {
		lookups.WithLabelValues(backendMemory, "miss").Inc()
		return nil, false
	}
	ent := ele.Value.(*entry)
	if c.now().After(ent.expiration) {
		c.removeElement(ele)
		lookups.WithLabelValues(backendMemory, "expired").Inc()
		return nil, false
	}
	c.ll.MoveToFront(ele)
	lookups.WithLabelValues(backendMemory, "hit").Inc()
	return ent.value, true
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiration := c.now().Add(c.ttl)
	if ele, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ele)
		ent := ele.Value.(*entry)
		ent.value = value
		ent.expiration = expiration
		return
	}

	ele := c.ll.PushFront(&entry{key: key, value: value, expiration: expiration})
	c.cache[key] = ele

	if c.capacity > 0 && c.ll.Len() > c.capacity {
		c.removeOldest()
		evictions.WithLabelValues("capacity").Inc()
	}
}

func (c *LRUCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, ok := c.cache[key]; ok {
		c.removeElement(ele)
	}
}

func (c *LRUCache) removeOldest() {
	if ele := c.ll.Back(); ele != nil {
		c.removeElement(ele)
	}
}

func (c *LRUCache) removeElement(e *list.Element) {
	c.ll.Remove(e)
	delete(c.cache, e.Value.(*entry).key)
}

func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Start runs the janitor until ctx is done.
func (c *LRUCache) Start(ctx context.Context) error {
	c.StartJanitor(ctx)
	return nil
}

func (c *LRUCache) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *LRUCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for e := c.ll.Back(); e != nil; {
		prev := e.Prev()
		if now.After(e.Value.(*entry).expiration) {
			c.removeElement(e)
			evictions.WithLabelValues("ttl").Inc()
		}
		e = prev
	}
}
