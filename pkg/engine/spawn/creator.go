package spawn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Creator materialises items for the host. The engine never builds item
// objects itself; it only asks for a handle and then commits the position.
type Creator interface {
	Create(ctx context.Context, kind catalog.ItemKind, pos grid.Position, rotated bool) (string, error)
}

// Releaser is implemented by creators that can discard an item whose grid
// commit was rejected.
type Releaser interface {
	Release(ctx context.Context, handle string) error
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, kind catalog.ItemKind, pos grid.Position, rotated bool) (string, error)

func (f CreatorFunc) Create(ctx context.Context, kind catalog.ItemKind, pos grid.Position, rotated bool) (string, error) {
	return f(ctx, kind, pos, rotated)
}

// MemoryCreator mints uuid handles and remembers what it created. It serves
// hosts without item visuals, the CLI and tests.
type MemoryCreator struct {
	mu      sync.Mutex
	created map[string]catalog.ItemKind
}

func NewMemoryCreator() *MemoryCreator {
	return &MemoryCreator{created: make(map[string]catalog.ItemKind)}
}

func (c *MemoryCreator) Create(ctx context.Context, kind catalog.ItemKind, pos grid.Position, rotated bool) (string, error) {
	h := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created[h] = kind
	return h, nil
}

func (c *MemoryCreator) Release(ctx context.Context, handle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.created, handle)
	return nil
}

// Live returns how many created items were not released.
func (c *MemoryCreator) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created)
}
