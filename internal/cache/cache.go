package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache is a key -> string store with a sliding expiration. Callers treat
// every error as a miss and fall back to the durable store.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type entry struct {
	value     string
	expiresAt time.Time
}

// memoryCache guards the read-then-extend of an entry with mu so a Remove
// racing a Get cannot be undone by the refreshed entry.
type memoryCache struct {
	mu      sync.Mutex
	lru     *lru.Cache
	sliding time.Duration
	now     func() time.Time
}

// NewMemoryCache returns an in-process LRU bounded to size entries. Every
// successful read pushes the entry's expiry sliding further out.
func NewMemoryCache(size int, sliding time.Duration) (Cache, error) {
	return newMemoryCache(size, sliding, time.Now)
}

func newMemoryCache(size int, sliding time.Duration, now func() time.Time) (*memoryCache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	return &memoryCache{
		lru:     l,
		sliding: sliding,
		now:     now,
	}, nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.lru.Get(key)
	if !ok {
		return "", false, nil
	}

	e := raw.(*entry)
	now := c.now()
	if !now.Before(e.expiresAt) {
		c.lru.Remove(key)
		return "", false, nil
	}
	e.expiresAt = now.Add(c.sliding)

	return e.value, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{
		value:     value,
		expiresAt: c.now().Add(c.sliding),
	})
	return nil
}

func (c *memoryCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	return nil
}
