// Package occupancy builds an occupancy bitmap of a grid and answers
// feasibility and free-space queries against it.
package occupancy

import (
	"reflect"

	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Stats summarises a snapshot.
type Stats struct {
	Total         int
	Occupied      int
	Available     int
	OccupancyRate float64
}

// Analyzer holds a W×H occupancy snapshot of one grid. It never tracks
// changes on its own; callers must re-run Analyze with force after every
// placement they commit.
type Analyzer struct {
	source   grid.Grid
	width    int
	height   int
	occupied []bool
	count    int
}

// NewAnalyzer returns an analyzer with no snapshot.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze builds the snapshot for g. Without force, an existing snapshot of
// the same grid is kept.
func (a *Analyzer) Analyze(g grid.Grid, force bool) {
	if !force && a.occupied != nil && sameGrid(a.source, g) {
		return
	}

	a.source = g
	a.width, a.height = g.Width(), g.Height()
	n := a.width * a.height
	if cap(a.occupied) >= n {
		a.occupied = a.occupied[:n]
		clear(a.occupied)
	} else {
		a.occupied = make([]bool, n)
	}

	a.count = 0
	bounds := grid.Rect{Width: a.width, Height: a.height}
	for _, fp := range g.Footprints() {
		r := fp.Intersect(bounds)
		for y := r.Y; y < r.Y+r.Height; y++ {
			for x := r.X; x < r.X+r.Width; x++ {
				i := y*a.width + x
				if !a.occupied[i] {
					a.occupied[i] = true
					a.count++
				}
			}
		}
	}
}

// Width of the analysed grid.
func (a *Analyzer) Width() int { return a.width }

// Height of the analysed grid.
func (a *Analyzer) Height() int { return a.height }

// Bounds returns the rectangle covering the analysed grid.
func (a *Analyzer) Bounds() grid.Rect {
	return grid.Rect{Width: a.width, Height: a.height}
}

// Occupied reports whether the cell is taken. Out-of-bounds cells count as
// occupied.
func (a *Analyzer) Occupied(x, y int) bool {
	if x < 0 || y < 0 || x >= a.width || y >= a.height {
		return true
	}
	return a.occupied[y*a.width+x]
}

// CanPlace reports whether every cell of size placed at pos is in bounds
// and free.
func (a *Analyzer) CanPlace(pos grid.Position, size grid.Size) bool {
	return a.CanPlaceWithin(pos, size, a.Bounds())
}

// CanPlaceWithin is CanPlace with the extra requirement that the footprint
// stays inside region.
func (a *Analyzer) CanPlaceWithin(pos grid.Position, size grid.Size, region grid.Rect) bool {
	if !size.Positive() {
		return false
	}
	r := grid.RectAt(pos, size)
	if !a.Bounds().ContainsRect(r) || !region.ContainsRect(r) {
		return false
	}
	for y := r.Y; y < r.Y+r.Height; y++ {
		row := y * a.width
		for x := r.X; x < r.X+r.Width; x++ {
			if a.occupied[row+x] {
				return false
			}
		}
	}
	return true
}

// Stats returns slot counts for the snapshot.
func (a *Analyzer) Stats() Stats {
	total := a.width * a.height
	s := Stats{
		Total:     total,
		Occupied:  a.count,
		Available: total - a.count,
	}
	if total > 0 {
		s.OccupancyRate = float64(a.count) / float64(total)
	}
	return s
}

// LargestAvailableSpace returns the size and area of the largest empty
// axis-aligned rectangle in the grid.
func (a *Analyzer) LargestAvailableSpace() (grid.Size, int) {
	r := a.LargestEmptyRect(a.Bounds(), nil)
	return r.Size(), r.Area()
}

// sameGrid compares grid identities without panicking on grids whose
// dynamic type is not comparable.
func sameGrid(a, b grid.Grid) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
