// Package placement finds a position for one footprint on an analysed grid.
package placement

import (
	"github.com/DrSkyle/gridspawn/pkg/engine/occupancy"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// Request is everything the strategy needs to place one unit.
type Request struct {
	Mode          template.Mode
	Pattern       template.ScanPattern
	Size          grid.Size
	Exact         grid.Position
	Region        grid.Rect // constrained or preferred area, by mode
	AllowRotation bool
}

// Sizes lists the footprints to try at each candidate: the normal one,
// then the transposed one when rotation is allowed.
func (r Request) Sizes() []grid.Size {
	sizes := []grid.Size{r.Size}
	if r.AllowRotation && !r.Size.IsSquare() {
		sizes = append(sizes, r.Size.Transposed())
	}
	return sizes
}

// Placement is a feasible position found by the strategy.
type Placement struct {
	Position grid.Position
	Size     grid.Size // footprint as placed, after rotation
	Rotated  bool
}

// RequestFor builds the request for a template unit with the given
// footprint. Rotation is allowed by the template flag or by the rotate
// conflict policy.
func RequestFor(t template.Template, size grid.Size) Request {
	req := Request{
		Mode:          t.Mode,
		Pattern:       t.ScanPattern,
		Size:          size,
		Exact:         t.ExactPosition,
		AllowRotation: t.AllowRotation || t.ConflictPolicy == template.ConflictRotate,
	}
	switch t.Mode {
	case template.ModeAreaConstrained:
		req.Region = t.ConstrainedArea
	case template.ModePriority:
		req.Region = t.PreferredArea
	}
	return req
}

// Strategy scans candidate positions against an Analyzer snapshot. It does
// not refresh the snapshot and does not retry.
type Strategy struct {
	analyzer *occupancy.Analyzer
}

// NewStrategy creates a strategy reading from a.
func NewStrategy(a *occupancy.Analyzer) *Strategy {
	return &Strategy{analyzer: a}
}

// ScanRegion returns the region candidates are drawn from, clipped to the
// grid. Priority mode without a preferred area scans the whole grid.
func (s *Strategy) ScanRegion(req Request) grid.Rect {
	bounds := s.analyzer.Bounds()
	switch req.Mode {
	case template.ModeExact:
		return grid.RectAt(req.Exact, grid.Size{Width: 1, Height: 1}).Intersect(bounds)
	case template.ModeAreaConstrained:
		return req.Region.Intersect(bounds)
	case template.ModePriority:
		if req.Region.Empty() {
			return bounds
		}
		return req.Region.Intersect(bounds)
	default:
		return bounds
	}
}

// FitRegion returns the rectangle a footprint must stay inside. Constrained
// and preferred areas bound it; exact and smart placements are only bounded
// by the grid.
func (s *Strategy) FitRegion(req Request) grid.Rect {
	if req.Mode == template.ModeAreaConstrained || (req.Mode == template.ModePriority && !req.Region.Empty()) {
		return s.ScanRegion(req)
	}
	return s.analyzer.Bounds()
}

// FindPosition returns the first feasible candidate in scan order. For
// each candidate the normal footprint is tried before the transposed one.
// false means the region has no room, which is a normal outcome.
func (s *Strategy) FindPosition(req Request) (Placement, bool) {
	if !req.Size.Positive() {
		return Placement{}, false
	}
	region := s.ScanRegion(req)
	if region.Empty() {
		return Placement{}, false
	}

	fit := s.FitRegion(req)
	sizes := req.Sizes()
	for _, pos := range s.Candidates(region, req.Pattern, req.Size) {
		for i, size := range sizes {
			if s.analyzer.CanPlaceWithin(pos, size, fit) {
				return Placement{Position: pos, Size: size, Rotated: i == 1}, true
			}
		}
	}
	return Placement{}, false
}
