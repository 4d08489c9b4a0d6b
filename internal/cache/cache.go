package cache

import (
	"context"
	"errors"
	"slices"
	"sync"

	"warungpos/backend/internal/domain"
)

// HeldCartCache parks in-progress carts so a terminal can serve the next
// customer and resume later. Held carts are transient; losing them on a
// restart is acceptable.
type HeldCartCache interface {
	Save(ctx context.Context, held domain.HeldCart) error
	List(ctx context.Context, terminalID string) ([]domain.HeldCart, error)
	Pop(ctx context.Context, terminalID string, holdID string) (*domain.HeldCart, error)
}

// ErrHoldNotFound is returned by Pop when the hold id is unknown.
var ErrHoldNotFound = errors.New("held cart not found")

// MemoryHeldCartCache is the in-process fallback when Redis is not
// configured. Holds survive only as long as the server process.
type MemoryHeldCartCache struct {
	mu    sync.Mutex
	holds map[string]map[string]domain.HeldCart
}

func NewMemoryHeldCartCache() *MemoryHeldCartCache {
	return &MemoryHeldCartCache{holds: make(map[string]map[string]domain.HeldCart)}
}

func (c *MemoryHeldCartCache) Save(_ context.Context, held domain.HeldCart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID, ok := c.holds[held.TerminalID]
	if !ok {
		byID = make(map[string]domain.HeldCart)
		c.holds[held.TerminalID] = byID
	}
	lines := make([]domain.CartLine, len(held.Lines))
	copy(lines, held.Lines)
	held.Lines = lines
	byID[held.ID] = held
	return nil
}

func (c *MemoryHeldCartCache) List(_ context.Context, terminalID string) ([]domain.HeldCart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.holds[terminalID]
	helds := make([]domain.HeldCart, 0, len(byID))
	for _, held := range byID {
		helds = append(helds, held)
	}
	sortHeldCarts(helds)
	return helds, nil
}

func (c *MemoryHeldCartCache) Pop(_ context.Context, terminalID string, holdID string) (*domain.HeldCart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.holds[terminalID]
	held, ok := byID[holdID]
	if !ok {
		return nil, ErrHoldNotFound
	}
	delete(byID, holdID)
	return &held, nil
}

// sortHeldCarts orders newest first, id as tiebreaker.
func sortHeldCarts(helds []domain.HeldCart) {
	slices.SortFunc(helds, func(a, b domain.HeldCart) int {
		if a.HeldAt.Equal(b.HeldAt) {
			if a.ID == b.ID {
				return 0
			}
			if a.ID > b.ID {
				return -1
			}
			return 1
		}
		if a.HeldAt.After(b.HeldAt) {
			return -1
		}
		return 1
	})
}
