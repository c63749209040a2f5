package occupancy

import "github.com/DrSkyle/gridspawn/pkg/grid"

// LargestEmptyRect returns the largest rectangle inside region whose cells
// are all free and not excluded. exclude may be nil. Ties keep the
// rectangle found first in row-major order of its bottom edge.
//
// The scan keeps, per column, the height of the free run ending at the
// current row and solves "largest rectangle in a histogram" with a stack
// for every row: O(W·H).
func (a *Analyzer) LargestEmptyRect(region grid.Rect, exclude func(x, y int) bool) grid.Rect {
	region = region.Intersect(a.Bounds())
	if region.Empty() {
		return grid.Rect{}
	}

	heights := make([]int, region.Width)
	stack := make([]int, 0, region.Width+1)
	var best grid.Rect

	for y := region.Y; y < region.Y+region.Height; y++ {
		for i := range heights {
			x := region.X + i
			if a.Occupied(x, y) || (exclude != nil && exclude(x, y)) {
				heights[i] = 0
			} else {
				heights[i]++
			}
		}

		stack = stack[:0]
		for i := 0; i <= len(heights); i++ {
			h := 0
			if i < len(heights) {
				h = heights[i]
			}
			for len(stack) > 0 && heights[stack[len(stack)-1]] >= h {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				height := heights[top]
				left := 0
				if len(stack) > 0 {
					left = stack[len(stack)-1] + 1
				}
				width := i - left
				if width*height > best.Area() {
					best = grid.Rect{
						X:      region.X + left,
						Y:      y - height + 1,
						Width:  width,
						Height: height,
					}
				}
			}
			stack = append(stack, i)
		}
	}
	return best
}
