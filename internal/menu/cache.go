package menu

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache memoises a slow source for a fixed TTL. When a refresh fails and a
// previous value exists, the stale value is served.
type Cache struct {
	src     Source
	ttl     time.Duration
	nowFunc func() time.Time

	mu      sync.Mutex
	items   []string
	fetched time.Time
}

// NewCache wraps src with a TTL cache.
func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl, nowFunc: time.Now}
}

func (c *Cache) String() string { return c.src.String() }

func (c *Cache) Load(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	if c.items != nil && now.Sub(c.fetched) < c.ttl {
		return slices.Clone(c.items), nil
	}

	items, err := c.src.Load(ctx)
	if err != nil {
		if c.items != nil {
			zap.L().Warn("menu: refresh failed, serving cached menu",
				zap.String("source", c.src.String()),
				zap.Int("items", len(c.items)),
				zap.Error(err),
			)
			return slices.Clone(c.items), nil
		}
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	c.items = items
	c.fetched = now
	return slices.Clone(items), nil
}
