// Package grid defines the geometry shared by the placement engine and the
// contract a host grid must satisfy.
package grid

import "fmt"

// Position is a cell coordinate. X grows to the right, Y grows downwards.
type Position struct {
	X int `json:"x" yaml:"x" hcl:"x"`
	Y int `json:"y" yaml:"y" hcl:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Size is a footprint extent in cells.
type Size struct {
	Width  int `json:"width" yaml:"width" hcl:"width"`
	Height int `json:"height" yaml:"height" hcl:"height"`
}

// Area returns the number of cells covered.
func (s Size) Area() int {
	return s.Width * s.Height
}

// Transposed swaps width and height.
func (s Size) Transposed() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// IsSquare reports whether rotation would not change the footprint.
func (s Size) IsSquare() bool {
	return s.Width == s.Height
}

// Positive reports whether both dimensions are at least one cell.
func (s Size) Positive() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect is an axis-aligned rectangle of cells.
type Rect struct {
	X      int `json:"x" yaml:"x" hcl:"x"`
	Y      int `json:"y" yaml:"y" hcl:"y"`
	Width  int `json:"width" yaml:"width" hcl:"width"`
	Height int `json:"height" yaml:"height" hcl:"height"`
}

// RectAt builds the rectangle covered by a footprint placed at pos.
func RectAt(pos Position, size Size) Rect {
	return Rect{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

// Origin returns the top-left cell.
func (r Rect) Origin() Position {
	return Position{X: r.X, Y: r.Y}
}

// Size returns the extent of the rectangle.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Area returns the number of cells covered.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the cell p lies inside r.
func (r Rect) Contains(p Position) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// Overlaps reports whether r and o share at least one cell.
func (r Rect) Overlaps(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Intersect returns the overlapping part of r and o (empty if disjoint).
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1 := min(r.X+r.Width, o.X+o.Width)
	y1 := min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.Width, r.Height, r.X, r.Y)
}

// ItemRef identifies an item being committed to a grid.
type ItemRef struct {
	ID     string
	Kind   string
	Handle string
	Size   Size
}

// Grid is the host-owned container the engine places items into.
//
// Footprints must lie within bounds and must not overlap. CommitPlacement
// returns false when pos is no longer valid for ref (for example because
// the host changed the grid after the engine analysed it).
type Grid interface {
	Width() int
	Height() int
	Footprints() []Rect
	CommitPlacement(ref ItemRef, pos Position) bool
}

// Typed is implemented by grids that know their container type.
type Typed interface {
	Type() string
}

// Placed is a committed item and where it sits.
type Placed struct {
	Ref      ItemRef
	Position Position
}

// Rect returns the cells covered by the placed item.
func (p Placed) Rect() Rect {
	return RectAt(p.Position, p.Ref.Size)
}

// Remover is implemented by grids whose committed items can be evicted.
// Items lists what Remove accepts; Remove reports false for an unknown id.
type Remover interface {
	Items() []Placed
	Remove(id string) bool
}

// Bounds returns the rectangle covering the whole grid.
func Bounds(g Grid) Rect {
	return Rect{Width: g.Width(), Height: g.Height()}
}
