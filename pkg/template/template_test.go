package template

import (
	"testing"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(
		catalog.ItemKind{ID: "coin", Size: grid.Size{Width: 1, Height: 1}},
		catalog.ItemKind{ID: "sword", Size: grid.Size{Width: 1, Height: 3}},
	)
}

func validConfig() *SpawnConfig {
	cfg := &SpawnConfig{
		Name:        "chest",
		MinGridSize: grid.Size{Width: 2, Height: 2},
		Templates: []Template{
			{ID: "gold", ItemKind: "coin", Quantity: 3},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestParseEnums(t *testing.T) {
	m, err := ParseMode("AreaConstrained")
	require.NoError(t, err)
	assert.Equal(t, ModeAreaConstrained, m)

	s, err := ParseScanPattern("center-to-edge")
	require.NoError(t, err)
	assert.Equal(t, ScanCenterToEdge, s)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)

	assert.Less(t, PriorityCritical.Rank(), PriorityOptional.Rank())
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate(testCatalog()))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &SpawnConfig{
		Templates: []Template{
			{ID: "", ItemKind: "coin", Quantity: 0, Mode: ModeSmart, Priority: PriorityLow, ScanPattern: ScanLeftToRight, ConflictPolicy: ConflictSkip},
			{ID: "area", ItemKind: "ghost", Quantity: 1, Mode: ModeAreaConstrained, Priority: PriorityLow, ScanPattern: ScanLeftToRight, ConflictPolicy: ConflictSkip},
		},
		SortStrategy: SortArea,
	}

	err := cfg.Validate(testCatalog())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config name is empty")
	assert.Contains(t, msg, "minimum grid size")
	assert.Contains(t, msg, "id is empty")
	assert.Contains(t, msg, "quantity 0")
	assert.Contains(t, msg, `"ghost" is not in the catalog`)
	assert.Contains(t, msg, "constrained area")
}

func TestValidate_SpawnChanceRange(t *testing.T) {
	cfg := validConfig()
	p := 1.5
	cfg.Templates[0].SpawnChance = &p
	assert.ErrorContains(t, cfg.Validate(testCatalog()), "spawn chance")
}

func TestValidate_DuplicateIDs(t *testing.T) {
	cfg := validConfig()
	cfg.Templates = append(cfg.Templates, cfg.Templates[0])
	assert.ErrorContains(t, cfg.Validate(testCatalog()), "duplicate id")
}

func TestValidate_IDWithUnitSeparator(t *testing.T) {
	cfg := validConfig()
	cfg.Templates[0].ID = "relic#1"
	assert.ErrorContains(t, cfg.Validate(testCatalog()), `id "relic#1" may not contain "#"`)
}

func TestValidate_EmptyTemplates(t *testing.T) {
	cfg := validConfig()
	cfg.Templates = nil
	assert.ErrorContains(t, cfg.Validate(testCatalog()), "config has no templates")

	cfg.Filtered = true
	assert.NoError(t, cfg.Validate(testCatalog()))
}

func TestResolveFootprint(t *testing.T) {
	tpl := Template{ID: "s", ItemKind: "sword"}
	size, err := tpl.ResolveFootprint(testCatalog())
	require.NoError(t, err)
	assert.Equal(t, grid.Size{Width: 1, Height: 3}, size)

	tpl.Footprint = grid.Size{Width: 2, Height: 2}
	size, err = tpl.ResolveFootprint(nil)
	require.NoError(t, err)
	assert.Equal(t, grid.Size{Width: 2, Height: 2}, size)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := validConfig()
	p := 0.5
	cfg.Templates[0].SpawnChance = &p

	cp := cfg.Clone()
	cp.Templates[0].Quantity = 99
	*cp.Templates[0].SpawnChance = 0.1

	assert.Equal(t, 3, cfg.Templates[0].Quantity)
	assert.Equal(t, 0.5, *cfg.Templates[0].SpawnChance)
}

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
name: chest
container_type: chest
min_grid_size: {width: 4, height: 4}
sort_strategy: AreaThenPriority
continue_on_failure: true
time_budget: 16ms
templates:
  - id: gold
    item_kind: coin
    quantity: 3
    mode: area_constrained
    constrained_area: {x: 0, y: 0, width: 2, height: 2}
    priority: high
    spawn_chance: 0.25
    condition: "grid_width >= 4"
  - id: blade
    item_kind: sword
    quantity: 1
`))
	require.NoError(t, err)

	assert.Equal(t, SortAreaThenPriority, cfg.SortStrategy)
	assert.Equal(t, 16*time.Millisecond, cfg.TimeBudget)
	require.Len(t, cfg.Templates, 2)
	assert.Equal(t, ModeAreaConstrained, cfg.Templates[0].Mode)
	assert.Equal(t, 0.25, cfg.Templates[0].Chance())
	assert.Equal(t, ModeSmart, cfg.Templates[1].Mode, "defaults applied")
	assert.Equal(t, PriorityMedium, cfg.Templates[1].Priority)
	assert.NoError(t, cfg.Validate(testCatalog()))
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestParseHCL(t *testing.T) {
	src := []byte(`
name           = "chest"
sort_strategy  = "priority"
time_budget    = "8ms"

min_grid_size {
  width  = 3
  height = 3
}

template "gold" {
  item_kind    = "coin"
  quantity     = var.gold
  scan_pattern = "spiral_out"
  unique_spawn = true
}

template "blade" {
  item_kind      = "sword"
  quantity       = 1
  mode           = "exact"
  allow_rotation = true

  exact_position {
    x = 1
    y = 0
  }
}
`)
	cfg, err := ParseHCL(src, "chest.hcl", map[string]cty.Value{"gold": cty.NumberIntVal(4)})
	require.NoError(t, err)

	assert.Equal(t, SortPriority, cfg.SortStrategy)
	assert.Equal(t, 8*time.Millisecond, cfg.TimeBudget)
	assert.Equal(t, grid.Size{Width: 3, Height: 3}, cfg.MinGridSize)
	require.Len(t, cfg.Templates, 2)
	assert.Equal(t, 4, cfg.Templates[0].Quantity)
	assert.Equal(t, ScanSpiralOut, cfg.Templates[0].ScanPattern)
	assert.True(t, cfg.Templates[0].UniqueSpawn)
	assert.Equal(t, grid.Position{X: 1, Y: 0}, cfg.Templates[1].ExactPosition)
	assert.NoError(t, cfg.Validate(testCatalog()))
}

func TestParseHCL_BadEnum(t *testing.T) {
	_, err := ParseHCL([]byte(`
name = "x"
template "a" {
  item_kind = "coin"
  quantity  = 1
  mode      = "teleport"
}
`), "x.hcl", nil)
	assert.ErrorContains(t, err, "unknown mode")
}
