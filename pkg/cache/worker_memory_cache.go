package cache

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryCache is an in-process JSON cache for runs without redis.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(item.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
