package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const DefaultMenuTTL = time.Minute

// MenuCache keeps menu items in memory so pricing an order does not hit the
// store once per line item. Entries older than ttl are reloaded.
type MenuCache struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]menuEntry
	repo   MenuItemRepo
	ttl    time.Duration
	logger aqm.Logger
	now    func() time.Time
}

type menuEntry struct {
	item     *MenuItem
	loadedAt time.Time
}

func NewMenuCache(repo MenuItemRepo, ttl time.Duration, logger aqm.Logger) *MenuCache {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if ttl <= 0 {
		ttl = DefaultMenuTTL
	}
	return &MenuCache{
		items:  make(map[uuid.UUID]menuEntry),
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Warm loads the whole menu.
func (c *MenuCache) Warm(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	items, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list menu items: %w", err)
	}
	for _, item := range items {
		c.Set(item)
	}
	c.logger.Debug("menu cache warmed", "items", len(items))
	return nil
}

// Ensure returns the item from the cache, loading it on a miss. A missing
// item yields nil, nil.
func (c *MenuCache) Ensure(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	if item, ok := c.Get(id); ok {
		return item, nil
	}
	return c.Refresh(ctx, id)
}

func (c *MenuCache) Refresh(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("menu cache uninitialized")
	}
	item, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu item %s: %w", id, err)
	}
	if item == nil {
		c.Invalidate(id)
		return nil, nil
	}
	c.Set(item)
	return item, nil
}

// Get returns a cached item that has not expired.
func (c *MenuCache) Get(id uuid.UUID) (*MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.items[id]
	if !ok || c.now().Sub(entry.loadedAt) > c.ttl {
		return nil, false
	}
	return entry.item, true
}

func (c *MenuCache) Set(item *MenuItem) {
	if item == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = menuEntry{item: item, loadedAt: c.now()}
}

func (c *MenuCache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *MenuCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
