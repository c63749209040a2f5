package placement

import (
	"sort"

	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// Candidates lists the top-left cells of region in the order implied by
// pattern. size is only used to centre footprints for center_to_edge.
func (s *Strategy) Candidates(region grid.Rect, pattern template.ScanPattern, size grid.Size) []grid.Position {
	switch pattern {
	case template.ScanSpiralOut:
		return spiral(region)
	case template.ScanCenterToEdge:
		return centerOut(region, size)
	case template.ScanLargestGapFirst:
		return s.largestGapFirst(region)
	default:
		// left_to_right and top_to_bottom are both row-major.
		return rowMajor(region)
	}
}

func rowMajor(r grid.Rect) []grid.Position {
	out := make([]grid.Position, 0, max(r.Area(), 0))
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			out = append(out, grid.Position{X: x, Y: y})
		}
	}
	return out
}

// spiral walks Chebyshev rings around the region centre, clockwise from
// the top-left corner of each ring.
func spiral(r grid.Rect) []grid.Position {
	if r.Empty() {
		return nil
	}
	cx := r.X + (r.Width-1)/2
	cy := r.Y + (r.Height-1)/2
	maxRing := max(cx-r.X, r.X+r.Width-1-cx, cy-r.Y, r.Y+r.Height-1-cy)

	out := make([]grid.Position, 0, r.Area())
	add := func(x, y int) {
		p := grid.Position{X: x, Y: y}
		if r.Contains(p) {
			out = append(out, p)
		}
	}

	add(cx, cy)
	for ring := 1; ring <= maxRing; ring++ {
		top, bottom := cy-ring, cy+ring
		left, right := cx-ring, cx+ring
		for x := left; x <= right; x++ {
			add(x, top)
		}
		for y := top + 1; y <= bottom; y++ {
			add(right, y)
		}
		for x := right - 1; x >= left; x-- {
			add(x, bottom)
		}
		for y := bottom - 1; y > top; y-- {
			add(left, y)
		}
	}
	return out
}

// centerOut orders cells by the distance between the footprint centre and
// the region centre. Distances are compared on doubled coordinates so they
// stay integral; ties keep row-major order.
func centerOut(r grid.Rect, size grid.Size) []grid.Position {
	out := rowMajor(r)
	cx2 := 2*r.X + r.Width
	cy2 := 2*r.Y + r.Height
	dist := func(p grid.Position) int {
		dx := 2*p.X + size.Width - cx2
		dy := 2*p.Y + size.Height - cy2
		return dx*dx + dy*dy
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dist(out[i]) < dist(out[j])
	})
	return out
}

// largestGapFirst emits the cells of the largest empty rectangle first,
// then those of the largest rectangle among the remaining free cells, until
// no free cell is left. Occupied cells are never candidates.
func (s *Strategy) largestGapFirst(r grid.Rect) []grid.Position {
	a := s.analyzer
	visited := make(map[grid.Position]bool)
	exclude := func(x, y int) bool {
		return visited[grid.Position{X: x, Y: y}]
	}

	var out []grid.Position
	for {
		gap := a.LargestEmptyRect(r, exclude)
		if gap.Empty() {
			return out
		}
		for _, p := range rowMajor(gap) {
			visited[p] = true
			out = append(out, p)
		}
	}
}
