package spawn

import (
	"context"

	"github.com/DrSkyle/gridspawn/pkg/engine/placement"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// evict frees room for a force_replace unit. It walks the first-choice
// candidates in scan order and stops at the first one whose only obstacles
// are committed items, which it removes from the grid and releases. Blocked
// cells are never evicted. It returns the ids of the evicted items, nil when
// the grid cannot remove items or no candidate qualifies.
func (r *Run) evict(ctx context.Context, t *template.Template, size grid.Size) []string {
	rm, ok := r.grid.(grid.Remover)
	if !ok {
		return nil
	}
	items := rm.Items()
	if len(items) == 0 || !size.Positive() {
		return nil
	}

	req := placement.RequestFor(*t, size)
	region := r.strategy.ScanRegion(req)
	if region.Empty() {
		return nil
	}
	fit := r.strategy.FitRegion(req)

	// Footprints not backed by an item are fixed obstacles.
	movable := make(map[grid.Rect]int, len(items))
	for _, it := range items {
		movable[it.Rect()]++
	}
	var fixed []grid.Rect
	for _, fp := range r.grid.Footprints() {
		if movable[fp] > 0 {
			movable[fp]--
			continue
		}
		fixed = append(fixed, fp)
	}

	for _, pos := range r.strategy.Candidates(region, req.Pattern, req.Size) {
		for _, s := range req.Sizes() {
			victims := evictable(grid.RectAt(pos, s), fit, fixed, items)
			if len(victims) == 0 {
				continue
			}
			return r.remove(ctx, rm, t, victims)
		}
	}
	return nil
}

// evictable returns the items overlapping target, or nil when target leaves
// fit or touches a fixed obstacle.
func evictable(target, fit grid.Rect, fixed []grid.Rect, items []grid.Placed) []grid.Placed {
	if !fit.ContainsRect(target) {
		return nil
	}
	for _, f := range fixed {
		if f.Overlaps(target) {
			return nil
		}
	}
	var victims []grid.Placed
	for _, it := range items {
		if it.Rect().Overlaps(target) {
			victims = append(victims, it)
		}
	}
	return victims
}

func (r *Run) remove(ctx context.Context, rm grid.Remover, t *template.Template, victims []grid.Placed) []string {
	rel, canRelease := r.o.creator.(Releaser)
	var evicted []string
	for _, v := range victims {
		if !rm.Remove(v.Ref.ID) {
			continue
		}
		evicted = append(evicted, v.Ref.ID)
		if canRelease && v.Ref.Handle != "" {
			if err := rel.Release(ctx, v.Ref.Handle); err != nil {
				r.logger.WarnContext(ctx, "failed to release item", "handle", v.Ref.Handle, "error", err)
			}
		}
		r.logger.InfoContext(ctx, "item evicted", "template_id", t.ID, "evicted_id", v.Ref.ID, "position", v.Position)
	}
	if len(evicted) > 0 {
		r.analyzer.Analyze(r.grid, true)
	}
	return evicted
}
