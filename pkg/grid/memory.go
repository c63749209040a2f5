package grid

import (
	"sync"
)

// MemoryGrid is an in-memory Grid for hosts without their own container
// model, and for tests.
type MemoryGrid struct {
	mu       sync.RWMutex
	width    int
	height   int
	kind     string
	blocked  []Rect
	items    []Placed
	onCommit func(Placed)
}

// NewMemoryGrid creates an empty grid of the given size.
func NewMemoryGrid(width, height int) *MemoryGrid {
	return &MemoryGrid{
		width:  width,
		height: height,
		items:  make([]Placed, 0, 16),
	}
}

// WithType sets the container type reported by Type.
func (g *MemoryGrid) WithType(kind string) *MemoryGrid {
	g.kind = kind
	return g
}

// OnCommit registers a hook called after every accepted placement.
func (g *MemoryGrid) OnCommit(fn func(Placed)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCommit = fn
}

func (g *MemoryGrid) Width() int  { return g.width }
func (g *MemoryGrid) Height() int { return g.height }
func (g *MemoryGrid) Type() string {
	return g.kind
}

// Block marks a rectangle as permanently occupied (walls, locked slots).
// Rectangles outside the grid or overlapping existing footprints are
// rejected.
func (g *MemoryGrid) Block(r Rect) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.fitsLocked(r) {
		return false
	}
	g.blocked = append(g.blocked, r)
	return true
}

// Fill blocks every cell of the grid.
func (g *MemoryGrid) Fill() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocked = []Rect{{Width: g.width, Height: g.height}}
	g.items = g.items[:0]
}

// Footprints returns a copy of all occupied rectangles.
func (g *MemoryGrid) Footprints() []Rect {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Rect, 0, len(g.blocked)+len(g.items))
	out = append(out, g.blocked...)
	for _, it := range g.items {
		out = append(out, it.Rect())
	}
	return out
}

// Items returns a copy of the committed items.
func (g *MemoryGrid) Items() []Placed {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make([]Placed, len(g.items))
	copy(result, g.items)
	return result
}

// CommitPlacement implements Grid. It rejects out-of-bounds and
// overlapping placements.
func (g *MemoryGrid) CommitPlacement(ref ItemRef, pos Position) bool {
	g.mu.Lock()
	if !ref.Size.Positive() || !g.fitsLocked(RectAt(pos, ref.Size)) {
		g.mu.Unlock()
		return false
	}
	p := Placed{Ref: ref, Position: pos}
	g.items = append(g.items, p)
	hook := g.onCommit
	g.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return true
}

// Remove deletes a committed item by id.
func (g *MemoryGrid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, it := range g.items {
		if it.Ref.ID == id {
			g.items = append(g.items[:i], g.items[i+1:]...)
			return true
		}
	}
	return false
}

func (g *MemoryGrid) fitsLocked(r Rect) bool {
	if r.Empty() || !(Rect{Width: g.width, Height: g.height}).ContainsRect(r) {
		return false
	}
	for _, b := range g.blocked {
		if b.Overlaps(r) {
			return false
		}
	}
	for _, it := range g.items {
		if it.Rect().Overlaps(r) {
			return false
		}
	}
	return true
}

// Ensure MemoryGrid implements Grid and Remover.
var (
	_ Grid    = (*MemoryGrid)(nil)
	_ Remover = (*MemoryGrid)(nil)
)
