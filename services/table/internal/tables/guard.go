package tables

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalSlotGuard serializes slot claims within one process.
type LocalSlotGuard struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*sync.Mutex
}

func NewLocalSlotGuard() *LocalSlotGuard {
	return &LocalSlotGuard{slots: map[uuid.UUID]*sync.Mutex{}}
}

func (g *LocalSlotGuard) WithSlot(ctx context.Context, branchID uuid.UUID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slot := g.slot(branchID)
	slot.Lock()
	defer slot.Unlock()

	return fn(ctx)
}

func (g *LocalSlotGuard) slot(branchID uuid.UUID) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.slots[branchID]
	if !ok {
		m = &sync.Mutex{}
		g.slots[branchID] = m
	}
	return m
}
