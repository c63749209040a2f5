// Package capacity estimates whether unit instances can fit the free cells
// of one or more containers. It counts area only and ignores fragmentation,
// so a fit is necessary but not sufficient for placement.
package capacity

import (
	"cmp"
	"slices"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine/occupancy"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// Pack performs Best Fit Decreasing over the given bins. Items are taken
// largest first and go to the bin they leave the least residual space in.
// Items no bin can take are returned as overflow.
func Pack(items []*Item, bins []*Bin) (overflow []*Item) {
	items = slices.Clone(items)
	slices.SortStableFunc(items, func(a, b *Item) int {
		return cmp.Compare(b.Size.Area(), a.Size.Area())
	})

	for _, item := range items {
		best := -1
		minResidual := 0
		for i, bin := range bins {
			if !item.fitsWithin(bin.Bounds) || bin.Used+item.Size.Area() > bin.Capacity {
				continue
			}
			residual := bin.Capacity - bin.Used - item.Size.Area()
			if best == -1 || residual < minResidual {
				best, minResidual = i, residual
			}
		}
		if best == -1 {
			overflow = append(overflow, item)
			continue
		}
		bins[best].AddItem(item)
	}
	return overflow
}

// Estimate is the area-based outlook of a config on one grid.
type Estimate struct {
	Instances   int
	Fits        int
	Overflow    []string
	Utilization float64
}

// Items expands cfg into one item per unit instance. Templates whose
// footprint cannot be resolved are left out.
func Items(cfg *template.SpawnConfig, cat catalog.Catalog) []*Item {
	var items []*Item
	for _, t := range cfg.Templates {
		size, err := t.ResolveFootprint(cat)
		if err != nil {
			continue
		}
		for k := 1; k <= max(t.Quantity, 1); k++ {
			items = append(items, &Item{ID: t.InstanceID(k), Size: size, Rotatable: t.AllowRotation})
		}
	}
	return items
}

// EstimateGrid packs cfg into the free cells of g.
func EstimateGrid(cfg *template.SpawnConfig, cat catalog.Catalog, g grid.Grid) Estimate {
	a := occupancy.NewAnalyzer()
	a.Analyze(g, true)
	bin := &Bin{
		ID:       "grid",
		Bounds:   grid.Size{Width: g.Width(), Height: g.Height()},
		Capacity: a.Stats().Available,
	}

	items := Items(cfg, cat)
	overflow := Pack(items, []*Bin{bin})

	est := Estimate{
		Instances:   len(items),
		Fits:        len(bin.Items),
		Utilization: bin.Efficiency(),
	}
	for _, it := range overflow {
		est.Overflow = append(est.Overflow, it.ID)
	}
	return est
}
