package report

import (
	"fmt"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

const symbols = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Map draws the grid as text. Cells placed by res carry one letter per
// template, other footprints are '#', free cells are '.'. A legend
// follows the map.
func Map(g grid.Grid, res *spawn.Result) string {
	w, h := g.Width(), g.Height()
	cells := make([][]byte, h)
	for y := range cells {
		cells[y] = []byte(strings.Repeat(".", w))
	}
	paint := func(r grid.Rect, c byte) {
		r = r.Intersect(grid.Bounds(g))
		for y := r.Y; y < r.Y+r.Height; y++ {
			for x := r.X; x < r.X+r.Width; x++ {
				cells[y][x] = c
			}
		}
	}
	for _, fp := range g.Footprints() {
		paint(fp, '#')
	}

	type legend struct {
		symbol   byte
		template string
		kind     string
		count    int
	}
	var order []*legend
	byTemplate := make(map[string]*legend)
	if res != nil {
		for _, o := range res.Outcomes {
			if o.Status != spawn.StatusSuccess {
				continue
			}
			l, ok := byTemplate[o.TemplateID]
			if !ok {
				sym := byte('*')
				if len(order) < len(symbols) {
					sym = symbols[len(order)]
				}
				l = &legend{symbol: sym, template: o.TemplateID, kind: o.ItemKind}
				byTemplate[o.TemplateID] = l
				order = append(order, l)
			}
			l.count++
			paint(o.Rect(), l.symbol)
		}
	}

	var b strings.Builder
	others := false
	for _, row := range cells {
		b.Write(row)
		b.WriteByte('\n')
		others = others || strings.IndexByte(string(row), '#') >= 0
	}
	if len(order) > 0 || others {
		b.WriteByte('\n')
	}
	for _, l := range order {
		fmt.Fprintf(&b, "%c  %s (%s) x%d\n", l.symbol, l.template, l.kind, l.count)
	}
	if others {
		b.WriteString("#  other footprints\n")
	}
	return b.String()
}
