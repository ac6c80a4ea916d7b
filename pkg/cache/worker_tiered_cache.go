package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// =============================================================================
// TieredCache - L1 (process memory) in front of L2 (redis)
// =============================================================================

// Store is the JSON cache contract shared by every cache in this package.
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TieredConfig holds cache configuration.
type TieredConfig struct {
	L1MaxSize int           // entries kept in process (default: 1000)
	L1TTL     time.Duration // upper bound on an L1 entry's life (default: 5m)
}

func DefaultTieredConfig() TieredConfig {
	return TieredConfig{
		L1MaxSize: 1000,
		L1TTL:     5 * time.Minute,
	}
}

// TieredCache answers repeated lookups of the same page or prompt within a
// run from memory and falls back to the shared L2 store.
type TieredCache struct {
	l1 *L1Cache
	l2 Store
}

// NewTieredCache wraps l2. A nil l2 leaves a bounded memory cache.
func NewTieredCache(l2 Store, cfg TieredConfig) *TieredCache {
	def := DefaultTieredConfig()
	if cfg.L1MaxSize <= 0 {
		cfg.L1MaxSize = def.L1MaxSize
	}
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = def.L1TTL
	}
	return &TieredCache{l1: NewL1Cache(cfg.L1MaxSize, cfg.L1TTL), l2: l2}
}

func (c *TieredCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	// 1. L1
	if data, ok := c.l1.Get(key); ok {
		if err := json.Unmarshal(data, dest); err != nil {
			return false, err
		}
		return true, nil
	}

	// 2. L2
	if c.l2 == nil {
		return false, nil
	}
	var raw json.RawMessage
	hit, err := c.l2.GetJSON(ctx, key, &raw)
	if err != nil || !hit {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	c.l1.Set(key, raw, 0)
	return true, nil
}

func (c *TieredCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.l1.Set(key, data, ttl)
	if c.l2 == nil {
		return nil
	}
	return c.l2.SetJSON(ctx, key, json.RawMessage(data), ttl)
}

func (c *TieredCache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(key)
	if c.l2 == nil {
		return nil
	}
	return c.l2.Delete(ctx, key)
}

// =============================================================================
// L1Cache - LRU + TTL
// =============================================================================

type l1Entry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// L1Cache is a size-bounded LRU of raw JSON with a per-entry TTL.
type L1Cache struct {
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	mu      sync.Mutex
	now     func() time.Time
}

func NewL1Cache(maxSize int, ttl time.Duration) *L1Cache {
	return &L1Cache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *L1Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*l1Entry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.data, true
}

// Set stores data for the shorter of ttl and the cache TTL. ttl <= 0 means
// the cache TTL.
func (c *L1Cache) Set(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*l1Entry)
		entry.data = data
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&l1Entry{key: key, data: data, expiresAt: expiresAt})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*l1Entry).key)
	}
}

func (c *L1Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *L1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
