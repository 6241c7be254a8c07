package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
)

// MemoryCache is a process-local Cache backed by an S3-FIFO cache. Entries
// are lost on restart and may be evicted early once size is reached.
type MemoryCache struct {
	cache *sfcache.MemoryCache[string, []byte]
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = 16384
	}
	return &MemoryCache{cache: sfcache.New[string, []byte](sfcache.Size(size))}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.cache.Set(key, stored, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.cache.Len()
}

func (c *MemoryCache) Close() {
	c.cache.Close()
}
