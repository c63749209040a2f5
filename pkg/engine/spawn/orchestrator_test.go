package spawn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine/chance"
	"github.com/DrSkyle/gridspawn/pkg/engine/ledger"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

func testCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(
		catalog.ItemKind{ID: "crate", Size: grid.Size{Width: 2, Height: 2}},
		catalog.ItemKind{ID: "coin", Size: grid.Size{Width: 1, Height: 1}, Tags: map[string]string{"rarity": "common"}},
		catalog.ItemKind{ID: "plank", Size: grid.Size{Width: 3, Height: 1}},
		catalog.ItemKind{ID: "chest", Size: grid.Size{Width: 3, Height: 3}},
	)
}

func newOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(append([]Option{WithCatalog(testCatalog()), WithRandSource(chance.NewSource(1))}, opts...)...)
	require.NoError(t, err)
	return o
}

func config(templates ...template.Template) *template.SpawnConfig {
	return &template.SpawnConfig{Name: "loot", ContinueOnFailure: true, Templates: templates}
}

func positions(outcomes []Outcome) []grid.Position {
	var out []grid.Position
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			out = append(out, o.Position)
		}
	}
	return out
}

func TestSpawn_RowMajorFill(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(10, 10)

	res, err := o.Spawn(context.Background(), g, config(template.Template{
		ID: "crates", ItemKind: "crate", Quantity: 3,
		Mode: template.ModeSmart, ScanPattern: template.ScanLeftToRight, Priority: template.PriorityMedium,
	}), "room-1")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Successful)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, []grid.Position{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 4, Y: 0}}, positions(res.Outcomes))
	assert.Equal(t, []string{"crates#1", "crates#2", "crates#3"}, []string{
		res.Outcomes[0].InstanceID, res.Outcomes[1].InstanceID, res.Outcomes[2].InstanceID,
	})
	assert.Equal(t, 3, res.PerTemplate["crates"])
	assert.Len(t, g.Items(), 3)
	assert.True(t, res.OK())
	assert.Contains(t, res.Summary(), "loot @ room-1: 3/3 spawned, 0 skipped, 0 failed")
}

func TestSpawn_FullGridNoPosition(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(10, 10)
	g.Fill()
	cfg := config(template.Template{ID: "crates", ItemKind: "crate", Quantity: 1})

	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, ReasonNoPosition, res.Outcomes[0].Reason)
	assert.True(t, o.ShouldSpawn(g, cfg, "room-1"))
	assert.Empty(t, o.Ledger().Entries("room-1"))
}

func TestSpawn_NoOverlap(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(12, 9)
	g.Block(grid.Rect{X: 3, Y: 3, Width: 4, Height: 2})
	g.Block(grid.Rect{X: 10, Y: 0, Width: 1, Height: 9})

	cfg := config(
		template.Template{ID: "chests", ItemKind: "chest", Quantity: 3, ScanPattern: template.ScanCenterToEdge},
		template.Template{ID: "crates", ItemKind: "crate", Quantity: 6, ScanPattern: template.ScanSpiralOut},
		template.Template{ID: "planks", ItemKind: "plank", Quantity: 6, AllowRotation: true, ScanPattern: template.ScanLargestGapFirst},
		template.Template{ID: "coins", ItemKind: "coin", Quantity: 20, ScanPattern: template.ScanTopToBottom},
		template.Template{
			ID: "corner", ItemKind: "crate", Quantity: 2, Mode: template.ModeAreaConstrained,
			ConstrainedArea: grid.Rect{X: 7, Y: 5, Width: 3, Height: 4},
		},
	)
	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)
	require.Positive(t, res.Successful)

	var placed []grid.Rect
	for _, out := range res.Outcomes {
		if out.Status != StatusSuccess {
			continue
		}
		r := out.Rect()
		assert.True(t, grid.Bounds(g).ContainsRect(r), "%s out of bounds at %s", out.InstanceID, r)
		for _, other := range placed {
			assert.False(t, r.Overlaps(other), "%s at %s overlaps %s", out.InstanceID, r, other)
		}
		assert.False(t, r.Overlaps(grid.Rect{X: 3, Y: 3, Width: 4, Height: 2}))
		placed = append(placed, r)
	}
	assert.Len(t, g.Items(), res.Successful)

	for _, out := range res.ByTemplate("corner") {
		if out.Status == StatusSuccess {
			assert.True(t, grid.Rect{X: 7, Y: 5, Width: 3, Height: 4}.ContainsRect(out.Rect()))
		}
	}
}

func TestSpawn_QuantityConservation(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(5, 5)

	res, err := o.Spawn(context.Background(), g, config(template.Template{ID: "chests", ItemKind: "chest", Quantity: 10}), "room-1")
	require.NoError(t, err)

	got := res.ByTemplate("chests")
	assert.Len(t, got, 10)
	assert.Equal(t, 10, res.Successful+res.Failed+res.Skipped)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 9, res.Failed)
}

func TestSpawn_PriorityOrder(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(10, 10)

	cfg := config(
		template.Template{ID: "B", ItemKind: "chest", Quantity: 1, Priority: template.PriorityLow},
		template.Template{ID: "A", ItemKind: "coin", Quantity: 1, Priority: template.PriorityCritical},
	)
	cfg.SortStrategy = template.SortPriorityThenArea

	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "A", res.Outcomes[0].TemplateID)
	assert.Equal(t, "B", res.Outcomes[1].TemplateID)
	assert.Equal(t, grid.Position{X: 0, Y: 0}, res.Outcomes[0].Position)
}

func TestSpawn_SortStrategies(t *testing.T) {
	templates := []template.Template{
		{ID: "small-high", ItemKind: "coin", Quantity: 1, Priority: template.PriorityHigh},
		{ID: "big-low", ItemKind: "chest", Quantity: 1, Priority: template.PriorityLow},
		{ID: "mid-high", ItemKind: "crate", Quantity: 1, Priority: template.PriorityHigh},
	}
	tests := []struct {
		strategy template.SortStrategy
		want     []string
	}{
		{template.SortPriorityThenArea, []string{"mid-high", "small-high", "big-low"}},
		{template.SortAreaThenPriority, []string{"big-low", "mid-high", "small-high"}},
		{template.SortPriority, []string{"small-high", "mid-high", "big-low"}},
		{template.SortArea, []string{"big-low", "mid-high", "small-high"}},
		{template.SortDeclaration, []string{"small-high", "big-low", "mid-high"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			o := newOrchestrator(t)
			cfg := config(templates...)
			cfg.SortStrategy = tt.strategy

			res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(10, 10), cfg, "room-1")
			require.NoError(t, err)
			var got []string
			for _, out := range res.Outcomes {
				got = append(got, out.TemplateID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpawn_RandomSortIsSeeded(t *testing.T) {
	var templates []template.Template
	for i := range 8 {
		templates = append(templates, template.Template{ID: fmt.Sprintf("t%d", i), ItemKind: "coin", Quantity: 1})
	}
	order := func(seed uint64) []string {
		o := newOrchestrator(t, WithRandSource(chance.NewSource(seed)))
		cfg := config(templates...)
		cfg.SortStrategy = template.SortRandom
		res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(10, 10), cfg, "room-1")
		require.NoError(t, err)
		var ids []string
		for _, out := range res.Outcomes {
			ids = append(ids, out.TemplateID)
		}
		return ids
	}
	assert.Equal(t, order(9), order(9))
	assert.ElementsMatch(t, order(9), order(10))
}

func TestSpawn_ConfigInvalid(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(4, 4)

	cfg := &template.SpawnConfig{Templates: []template.Template{
		{ID: "ghost", ItemKind: "unknown", Quantity: 2},
		{ID: "crates", ItemKind: "crate", Quantity: 1},
	}}
	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "config name is empty")
	assert.Contains(t, err.Error(), `item kind "unknown" is not in the catalog`)

	require.NotNil(t, res)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Failed)
	for _, out := range res.Outcomes {
		assert.Equal(t, ReasonConfigInvalid, out.Reason)
	}
	assert.Empty(t, g.Items(), "nothing runs")
}

func TestSpawn_UnitSeparatorInTemplateID(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(5, 5)
	cfg := config(
		template.Template{ID: "relic", ItemKind: "coin", Quantity: 1, UniqueSpawn: true},
		template.Template{ID: "relic#1", ItemKind: "coin", Quantity: 1, UniqueSpawn: true},
	)
	cfg.SortStrategy = template.SortDeclaration

	assert.False(t, o.ShouldSpawn(g, cfg, "room-1"))
	err := o.Validate(g, cfg)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.ErrorContains(t, err, `id "relic#1" may not contain "#"`)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, g.Items())
	assert.Empty(t, o.Ledger().Entries("room-1"))

	cfg.Templates[1].ID = "relic-1"
	require.NoError(t, o.Validate(g, cfg))
	res, err = o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Successful)
	assert.Zero(t, res.Skipped)
}

func TestSpawn_GridSmallerThanMinimum(t *testing.T) {
	o := newOrchestrator(t)
	cfg := config(template.Template{ID: "coins", ItemKind: "coin", Quantity: 1})
	cfg.MinGridSize = grid.Size{Width: 5, Height: 5}

	_, err := o.Spawn(context.Background(), grid.NewMemoryGrid(4, 8), cfg, "room-1")
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestSpawn_BadConditionIsInvalid(t *testing.T) {
	o := newOrchestrator(t)
	cfg := config(template.Template{ID: "coins", ItemKind: "coin", Quantity: 1, Condition: "grid_width +"})

	_, err := o.Spawn(context.Background(), grid.NewMemoryGrid(4, 4), cfg, "room-1")
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestSpawn_CriticalFailureAborts(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(2, 2)

	cfg := config(
		template.Template{ID: "key", ItemKind: "crate", Quantity: 2, Priority: template.PriorityCritical},
		template.Template{ID: "coins", ItemKind: "coin", Quantity: 3, Priority: template.PriorityLow},
	)
	cfg.ContinueOnFailure = false

	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Unprocessed())
	assert.Empty(t, res.ByTemplate("coins"))
	assert.Contains(t, res.Summary(), "aborted with 3 unprocessed")
}

func TestSpawn_CriticalFailureContinues(t *testing.T) {
	o := newOrchestrator(t)
	cfg := config(
		template.Template{ID: "key", ItemKind: "chest", Quantity: 2, Priority: template.PriorityCritical},
		template.Template{ID: "coins", ItemKind: "coin", Quantity: 3, Priority: template.PriorityLow},
	)

	res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(3, 4), cfg, "room-1")
	require.NoError(t, err)
	assert.False(t, res.Aborted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Successful)
}

func TestSpawn_CreationFailureLeavesLedger(t *testing.T) {
	boom := errors.New("boom")
	o := newOrchestrator(t, WithCreator(CreatorFunc(func(ctx context.Context, kind catalog.ItemKind, pos grid.Position, rotated bool) (string, error) {
		return "", boom
	})))
	g := grid.NewMemoryGrid(4, 4)
	cfg := config(template.Template{ID: "coins", ItemKind: "coin", Quantity: 1, UniqueSpawn: true})

	res, err := o.Spawn(context.Background(), g, cfg, "room-1")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, "creation failed: boom", res.Outcomes[0].Reason)
	assert.False(t, o.Ledger().Has("room-1", "coins#1"))
	assert.True(t, o.ShouldSpawn(g, cfg, "room-1"))
	assert.Empty(t, g.Items())
}

// racyGrid simulates another writer taking the approved position right
// before the commit.
type racyGrid struct {
	*grid.MemoryGrid
	steal int
}

func (g *racyGrid) CommitPlacement(ref grid.ItemRef, pos grid.Position) bool {
	if g.steal > 0 {
		g.steal--
		g.Block(grid.RectAt(pos, ref.Size))
		return false
	}
	return g.MemoryGrid.CommitPlacement(ref, pos)
}

func TestSpawn_RaceDetected(t *testing.T) {
	creator := NewMemoryCreator()
	o := newOrchestrator(t, WithCreator(creator))
	g := &racyGrid{MemoryGrid: grid.NewMemoryGrid(10, 10), steal: 1}

	res, err := o.Spawn(context.Background(), g, config(template.Template{ID: "crates", ItemKind: "crate", Quantity: 2}), "room-1")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, ReasonValidationFailed, res.Outcomes[0].Reason)
	assert.Equal(t, StatusSuccess, res.Outcomes[1].Status)
	assert.Equal(t, grid.Position{X: 2, Y: 0}, res.Outcomes[1].Position, "re-analysed after the rejected commit")
	assert.Equal(t, 1, creator.Live(), "the rejected item was released")
}

func TestSpawn_UniqueIdempotentAcrossSessions(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/ledger.db"
	cfg := config(template.Template{ID: "relic", ItemKind: "coin", Quantity: 2, UniqueSpawn: true})

	b1, err := ledger.NewSQLiteBackend(path)
	require.NoError(t, err)
	first := newOrchestrator(t, WithLedger(ledger.New(b1)))
	res, err := first.Spawn(ctx, grid.NewMemoryGrid(4, 4), cfg, "tomb")
	require.NoError(t, err)
	require.Equal(t, 2, res.Successful)
	assert.False(t, first.ShouldSpawn(grid.NewMemoryGrid(4, 4), cfg, "tomb"))
	require.NoError(t, first.Ledger().Save(ctx))
	require.NoError(t, first.Ledger().Close())

	b2, err := ledger.NewSQLiteBackend(path)
	require.NoError(t, err)
	l2 := ledger.New(b2)
	defer l2.Close()
	require.NoError(t, l2.Load(ctx))
	second := newOrchestrator(t, WithLedger(l2))

	g := grid.NewMemoryGrid(4, 4)
	assert.False(t, second.ShouldSpawn(g, cfg, "tomb"))
	assert.False(t, l2.ShouldSpawn("tomb", "relic#1", true))

	res, err = second.Spawn(ctx, g, cfg, "tomb")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, g.Items())

	assert.True(t, second.ShouldSpawn(g, cfg, "other-tomb"))
}

func TestSpawn_NonUniqueRespawns(t *testing.T) {
	o := newOrchestrator(t)
	cfg := config(template.Template{ID: "coins", ItemKind: "coin", Quantity: 1})

	for range 2 {
		res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(3, 3), cfg, "room-1")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Successful)
	}
	assert.True(t, o.ShouldSpawn(grid.NewMemoryGrid(3, 3), cfg, "room-1"))
}

func TestSpawn_WholeTemplateRecordSkips(t *testing.T) {
	o := newOrchestrator(t)
	o.Ledger().Record(ledger.Entry{ContainerID: "room-1", InstanceID: "relic", TemplateID: "relic", ItemKind: "coin"})
	cfg := config(template.Template{ID: "relic", ItemKind: "coin", Quantity: 3, UniqueSpawn: true})

	res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(3, 3), cfg, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped)
	assert.False(t, o.ShouldSpawn(grid.NewMemoryGrid(3, 3), cfg, "room-1"))
}

func TestSpawn_ConflictPolicies(t *testing.T) {
	blockedCorner := func() *grid.MemoryGrid {
		g := grid.NewMemoryGrid(4, 4)
		g.Block(grid.Rect{Width: 2, Height: 2})
		return g
	}
	corner := grid.Rect{Width: 2, Height: 2}

	t.Run("skip", func(t *testing.T) {
		o := newOrchestrator(t)
		res, err := o.Spawn(context.Background(), blockedCorner(), config(template.Template{
			ID: "c", ItemKind: "coin", Quantity: 1, Mode: template.ModeAreaConstrained, ConstrainedArea: corner,
		}), "room-1")
		require.NoError(t, err)
		assert.Equal(t, ReasonNoPosition, res.Outcomes[0].Reason)
	})

	t.Run("relocate", func(t *testing.T) {
		o := newOrchestrator(t)
		res, err := o.Spawn(context.Background(), blockedCorner(), config(template.Template{
			ID: "c", ItemKind: "coin", Quantity: 1, Mode: template.ModeAreaConstrained, ConstrainedArea: corner,
			ConflictPolicy: template.ConflictRelocate,
		}), "room-1")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Outcomes[0].Status)
		assert.Equal(t, grid.Position{X: 2, Y: 0}, res.Outcomes[0].Position)
	})

	t.Run("rotate", func(t *testing.T) {
		o := newOrchestrator(t)
		res, err := o.Spawn(context.Background(), grid.NewMemoryGrid(1, 3), config(template.Template{
			ID: "p", ItemKind: "plank", Quantity: 1, ConflictPolicy: template.ConflictRotate,
		}), "room-1")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Outcomes[0].Status)
		assert.True(t, res.Outcomes[0].Rotated)
		assert.Equal(t, grid.Size{Width: 1, Height: 3}, res.Outcomes[0].Footprint)
	})

	t.Run("force_replace keeps blocked cells", func(t *testing.T) {
		o := newOrchestrator(t)
		res, err := o.Spawn(context.Background(), blockedCorner(), config(template.Template{
			ID: "c", ItemKind: "coin", Quantity: 1, Mode: template.ModeExact,
			ConflictPolicy: template.ConflictForceReplace,
		}), "room-1")
		require.NoError(t, err)
		assert.Equal(t, ReasonNoPosition, res.Outcomes[0].Reason)
		assert.Empty(t, res.Outcomes[0].Replaced)
	})

	t.Run("defer", func(t *testing.T) {
		o := newOrchestrator(t)
		g := grid.NewMemoryGrid(2, 1)
		g.Block(grid.Rect{Width: 1, Height: 1})
		cfg := config(
			template.Template{ID: "late", ItemKind: "coin", Quantity: 1, Mode: template.ModeExact, ConflictPolicy: template.ConflictDefer},
			template.Template{ID: "other", ItemKind: "coin", Quantity: 1},
		)
		cfg.SortStrategy = template.SortDeclaration

		res, err := o.Spawn(context.Background(), g, cfg, "room-1")
		require.NoError(t, err)
		require.Len(t, res.Outcomes, 2)
		assert.Equal(t, "other", res.Outcomes[0].TemplateID)
		assert.Equal(t, "late", res.Outcomes[1].TemplateID)
		assert.Equal(t, ReasonNoPosition, res.Outcomes[1].Reason)
	})
}

func TestSpawn_ConditionAndContainerType(t *testing.T) {
	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(4, 4).WithType("barrel")

	cfg := config(
		template.Template{ID: "rare", ItemKind: "coin", Quantity: 2, Condition: "tags.rarity == 'rare'"},
		template.Template{ID: "big-only", ItemKind: "coin", Quantity: 1, Condition: "grid_width >= 10"},
		template.Template{ID: "fits", ItemKind: "coin", Quantity: 1, Condition: "container_type == 'barrel' && available == 16"},
	)
	cfg.SortStrategy = template.SortDeclaration
	res, err := o.Spawn(context.Background(), g, cfg, "barrel-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ConditionNotMet)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, ReasonConditionFalse, res.Outcomes[0].Reason)

	cfg.ContainerType = "chest"
	assert.False(t, o.ShouldSpawn(g, cfg, "barrel-1"))
	res, err = o.Spawn(context.Background(), g, cfg, "barrel-1")
	require.NoError(t, err)
	assert.Equal(t, 4, res.ConditionNotMet)
	for _, out := range res.Outcomes {
		assert.Equal(t, ReasonTypeMismatch, out.Reason)
	}
}

func TestRun_AdvanceMatchesSpawn(t *testing.T) {
	ctx := context.Background()
	cfg := config(
		template.Template{ID: "crates", ItemKind: "crate", Quantity: 4, ScanPattern: template.ScanSpiralOut},
		template.Template{ID: "coins", ItemKind: "coin", Quantity: 5},
	)

	want, err := newOrchestrator(t).Spawn(ctx, grid.NewMemoryGrid(8, 8), cfg, "room-1")
	require.NoError(t, err)

	run, err := newOrchestrator(t).Begin(ctx, grid.NewMemoryGrid(8, 8), cfg, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 9, run.Remaining())

	steps := 0
	for !run.Done() {
		n, err := run.Advance(ctx, 2)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, 2)
		steps++
	}
	assert.Equal(t, 5, steps)
	assert.Equal(t, positions(want.Outcomes), positions(run.Result().Outcomes))
}

func TestRun_CancelledContextResumes(t *testing.T) {
	run, err := newOrchestrator(t).Begin(context.Background(), grid.NewMemoryGrid(4, 4),
		config(template.Template{ID: "coins", ItemKind: "coin", Quantity: 3}), "room-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := run.Advance(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.False(t, run.Done())

	n, err = run.Advance(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, run.Done())
	assert.Equal(t, 3, run.Result().Successful)
}

func TestOrchestrator_Reset(t *testing.T) {
	ctx := context.Background()
	backend := ledger.NewMemoryBackend()
	o := newOrchestrator(t, WithLedger(ledger.New(backend)))
	cfg := config(template.Template{ID: "relic", ItemKind: "coin", Quantity: 1, UniqueSpawn: true})

	for _, id := range []string{"a", "b"} {
		_, err := o.Spawn(ctx, grid.NewMemoryGrid(2, 2), cfg, id)
		require.NoError(t, err)
	}
	require.NoError(t, o.Ledger().Save(ctx))

	require.NoError(t, o.ResetContainer(ctx, "a"))
	assert.True(t, o.ShouldSpawn(grid.NewMemoryGrid(2, 2), cfg, "a"))
	assert.False(t, o.ShouldSpawn(grid.NewMemoryGrid(2, 2), cfg, "b"))

	require.NoError(t, o.ResetAll(ctx))
	assert.True(t, o.ShouldSpawn(grid.NewMemoryGrid(2, 2), cfg, "b"))
	stored, err := backend.Load(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSpawn_FilteredToNothing(t *testing.T) {
	zero := 0.0
	cfg := config(template.Template{ID: "never", ItemKind: "coin", Quantity: 4, SpawnChance: &zero})
	filtered := chance.Filter(cfg, chance.NewSource(5))
	require.Empty(t, filtered.Templates)

	o := newOrchestrator(t)
	g := grid.NewMemoryGrid(4, 4)
	res, err := o.Spawn(context.Background(), g, filtered, "room-1")
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Outcomes)
	assert.True(t, res.OK())
	assert.Empty(t, g.Items())
	assert.False(t, o.ShouldSpawn(g, filtered, "room-1"))

	_, err = o.Spawn(context.Background(), g, config(), "room-1")
	assert.ErrorIs(t, err, ErrConfigInvalid, "an unfiltered empty config is still invalid")
}

func TestSpawn_FilteredConfig(t *testing.T) {
	zero, one := 0.0, 1.0
	cfg := config(
		template.Template{ID: "never", ItemKind: "coin", Quantity: 4, SpawnChance: &zero},
		template.Template{ID: "always", ItemKind: "coin", Quantity: 4, SpawnChance: &one},
	)
	filtered := chance.Filter(cfg, chance.NewSource(5))

	res, err := newOrchestrator(t).Spawn(context.Background(), grid.NewMemoryGrid(4, 4), filtered, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 4, res.PerTemplate["always"])
	assert.Empty(t, res.ByTemplate("never"))
}

// removalFreeGrid hides the MemoryGrid removal methods from the engine.
type removalFreeGrid struct {
	grid.Grid
}

func TestSpawn_ForceReplaceEvicts(t *testing.T) {
	cfg := func() *template.SpawnConfig {
		c := config(
			template.Template{ID: "old", ItemKind: "coin", Quantity: 1, Mode: template.ModeExact},
			template.Template{
				ID: "new", ItemKind: "coin", Quantity: 1, Mode: template.ModeExact,
				ConflictPolicy: template.ConflictForceReplace,
			},
		)
		c.SortStrategy = template.SortDeclaration
		return c
	}

	t.Run("evicts overlapping items", func(t *testing.T) {
		creator := NewMemoryCreator()
		o := newOrchestrator(t, WithCreator(creator))
		g := grid.NewMemoryGrid(3, 3)

		res, err := o.Spawn(context.Background(), g, cfg(), "room-1")
		require.NoError(t, err)
		require.Len(t, res.Outcomes, 2)
		assert.Equal(t, StatusSuccess, res.Outcomes[0].Status)

		replaced := res.Outcomes[1]
		require.Equal(t, StatusSuccess, replaced.Status)
		assert.Equal(t, grid.Position{}, replaced.Position)
		assert.Equal(t, []string{"old#1"}, replaced.Replaced)

		items := g.Items()
		require.Len(t, items, 1)
		assert.Equal(t, "new#1", items[0].Ref.ID)
		assert.Equal(t, 1, creator.Live())
	})

	crateOverCoins := func(block bool) *grid.MemoryGrid {
		g := grid.NewMemoryGrid(2, 2)
		coin := grid.Size{Width: 1, Height: 1}
		require.True(t, g.CommitPlacement(grid.ItemRef{ID: "a", Kind: "coin", Size: coin}, grid.Position{X: 0, Y: 0}))
		require.True(t, g.CommitPlacement(grid.ItemRef{ID: "b", Kind: "coin", Size: coin}, grid.Position{X: 1, Y: 1}))
		if block {
			require.True(t, g.Block(grid.Rect{X: 1, Y: 0, Width: 1, Height: 1}))
		}
		return g
	}
	crate := config(template.Template{
		ID: "big", ItemKind: "crate", Quantity: 1, ConflictPolicy: template.ConflictForceReplace,
	})

	t.Run("evicts every overlapping item", func(t *testing.T) {
		g := crateOverCoins(false)
		res, err := newOrchestrator(t).Spawn(context.Background(), g, crate, "room-1")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Outcomes[0].Status)
		assert.ElementsMatch(t, []string{"a", "b"}, res.Outcomes[0].Replaced)
		require.Len(t, g.Items(), 1)
		assert.Equal(t, "big#1", g.Items()[0].Ref.ID)
	})

	t.Run("blocked cell prevents eviction", func(t *testing.T) {
		g := crateOverCoins(true)
		res, err := newOrchestrator(t).Spawn(context.Background(), g, crate, "room-1")
		require.NoError(t, err)
		assert.Equal(t, ReasonNoPosition, res.Outcomes[0].Reason)
		assert.Empty(t, res.Outcomes[0].Replaced)
		assert.Len(t, g.Items(), 2)
	})

	t.Run("host without removal", func(t *testing.T) {
		o := newOrchestrator(t)
		g := grid.NewMemoryGrid(3, 3)

		res, err := o.Spawn(context.Background(), removalFreeGrid{g}, cfg(), "room-1")
		require.NoError(t, err)
		require.Len(t, res.Outcomes, 2)
		assert.Equal(t, ReasonNoPosition, res.Outcomes[1].Reason)
		assert.Empty(t, res.Outcomes[1].Replaced)
		require.Len(t, g.Items(), 1)
		assert.Equal(t, "old#1", g.Items()[0].Ref.ID)
	})
}
