package spawn

import (
	"math/rand/v2"
	"sort"

	"github.com/DrSkyle/gridspawn/pkg/template"
)

// planned is a template with its resolved footprint area, in the order it
// will be processed.
type planned struct {
	index int // position in the config
	tpl   template.Template
	area  int
}

// sortTemplates orders ps in place. Ties always fall back to declaration
// order because the sort is stable. Each strategy is named after its keys
// in order: priority_then_area ranks by priority and uses descending area
// only between templates of equal priority.
func sortTemplates(ps []planned, strategy template.SortStrategy, rng *rand.Rand) {
	byPriority := func(a, b planned) int { return a.tpl.Priority.Rank() - b.tpl.Priority.Rank() }
	byArea := func(a, b planned) int { return b.area - a.area }

	var cmps []func(a, b planned) int
	switch strategy {
	case template.SortPriorityThenArea:
		cmps = append(cmps, byPriority, byArea)
	case template.SortAreaThenPriority:
		cmps = append(cmps, byArea, byPriority)
	case template.SortPriority:
		cmps = append(cmps, byPriority)
	case template.SortArea:
		cmps = append(cmps, byArea)
	case template.SortRandom:
		rng.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
		return
	default:
		return
	}

	sort.SliceStable(ps, func(i, j int) bool {
		for _, cmp := range cmps {
			if c := cmp(ps[i], ps[j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}
