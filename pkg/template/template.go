// Package template holds the declarative spawn model: placement templates
// and the configs that group them.
package template

import (
	"fmt"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Template declares how many items of one kind to place, where, and with
// which priority and fallback.
type Template struct {
	ID       string    `yaml:"id" json:"id"`
	ItemKind string    `yaml:"item_kind" json:"item_kind"`
	// Footprint overrides the catalog size when set.
	Footprint grid.Size `yaml:"footprint" json:"footprint"`
	Quantity  int       `yaml:"quantity" json:"quantity"`

	Mode            Mode          `yaml:"mode" json:"mode"`
	ExactPosition   grid.Position `yaml:"exact_position" json:"exact_position"`
	ConstrainedArea grid.Rect     `yaml:"constrained_area" json:"constrained_area"`
	PreferredArea   grid.Rect     `yaml:"preferred_area" json:"preferred_area"`

	Priority       Priority       `yaml:"priority" json:"priority"`
	ScanPattern    ScanPattern    `yaml:"scan_pattern" json:"scan_pattern"`
	AllowRotation  bool           `yaml:"allow_rotation" json:"allow_rotation"`
	ConflictPolicy ConflictPolicy `yaml:"conflict_policy" json:"conflict_policy"`
	UniqueSpawn    bool           `yaml:"unique_spawn" json:"unique_spawn"`

	// MaxRetryAttempts is reserved; no retry loop consumes it.
	MaxRetryAttempts int `yaml:"max_retry_attempts" json:"max_retry_attempts"`

	// SpawnChance is the per-instance probability used by the chance
	// filter. Nil means 1.
	SpawnChance *float64 `yaml:"spawn_chance" json:"spawn_chance,omitempty"`

	// Condition is an optional CEL expression; the template only spawns
	// when it evaluates to true.
	Condition string `yaml:"condition" json:"condition,omitempty"`
}

// Chance returns the effective per-instance spawn probability.
func (t Template) Chance() float64 {
	if t.SpawnChance == nil {
		return 1
	}
	return *t.SpawnChance
}

// UnitSeparator joins a template id and a unit number into an instance
// id. Template ids may not contain it, so unit and template records never
// share a ledger key.
const UnitSeparator = "#"

// InstanceID returns the ledger id of the k-th unit (1-based).
func (t Template) InstanceID(k int) string {
	return fmt.Sprintf("%s%s%d", t.ID, UnitSeparator, k)
}

// ResolveFootprint returns the template's footprint, falling back to the
// catalog entry of its item kind.
func (t Template) ResolveFootprint(cat catalog.Catalog) (grid.Size, error) {
	if t.Footprint.Positive() {
		return t.Footprint, nil
	}
	if cat == nil {
		return grid.Size{}, fmt.Errorf("template %s: no footprint and no catalog", t.ID)
	}
	k, ok := cat.Resolve(t.ItemKind)
	if !ok {
		return grid.Size{}, fmt.Errorf("template %s: unknown item kind %q", t.ID, t.ItemKind)
	}
	if !k.Size.Positive() {
		return grid.Size{}, fmt.Errorf("template %s: item kind %q has size %s", t.ID, t.ItemKind, k.Size)
	}
	return k.Size, nil
}

// SpawnConfig is an ordered set of templates plus run policy.
type SpawnConfig struct {
	Name              string        `yaml:"name" json:"name"`
	ContainerType     string        `yaml:"container_type" json:"container_type,omitempty"`
	MinGridSize       grid.Size     `yaml:"min_grid_size" json:"min_grid_size"`
	SortStrategy      SortStrategy  `yaml:"sort_strategy" json:"sort_strategy"`
	ContinueOnFailure bool          `yaml:"continue_on_failure" json:"continue_on_failure"`
	TimeBudget        time.Duration `yaml:"time_budget" json:"time_budget"`
	Templates         []Template    `yaml:"templates" json:"templates"`

	// Filtered marks a config derived by the spawn-chance filter. It may
	// hold no templates when every instance was rejected.
	Filtered bool `yaml:"-" json:"-"`
}

// ApplyDefaults fills unset enums and sizes with their defaults.
func (c *SpawnConfig) ApplyDefaults() {
	if c.SortStrategy == "" {
		c.SortStrategy = SortPriorityThenArea
	}
	if c.MinGridSize == (grid.Size{}) {
		c.MinGridSize = grid.Size{Width: 1, Height: 1}
	}
	for i := range c.Templates {
		t := &c.Templates[i]
		if t.Mode == "" {
			t.Mode = ModeSmart
		}
		if t.Priority == "" {
			t.Priority = PriorityMedium
		}
		if t.ScanPattern == "" {
			t.ScanPattern = ScanLeftToRight
		}
		if t.ConflictPolicy == "" {
			t.ConflictPolicy = ConflictSkip
		}
	}
}

// Clone returns a deep copy.
func (c *SpawnConfig) Clone() *SpawnConfig {
	out := *c
	out.Templates = make([]Template, len(c.Templates))
	for i, t := range c.Templates {
		if t.SpawnChance != nil {
			p := *t.SpawnChance
			t.SpawnChance = &p
		}
		out.Templates[i] = t
	}
	return &out
}

// TotalUnits is the sum of all template quantities.
func (c *SpawnConfig) TotalUnits() int {
	n := 0
	for _, t := range c.Templates {
		n += max(t.Quantity, 1)
	}
	return n
}
