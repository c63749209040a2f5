// Package spawn runs placement templates against a grid: it sorts them,
// expands them into unit instances, places and creates each instance, and
// records the result in the ledger.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine/condition"
	"github.com/DrSkyle/gridspawn/pkg/engine/ledger"
	"github.com/DrSkyle/gridspawn/pkg/engine/occupancy"
	"github.com/DrSkyle/gridspawn/pkg/engine/placement"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/telemetry"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// ErrConfigInvalid is returned, wrapping every validation issue, when a
// config cannot run at all. Nothing is placed in that case.
var ErrConfigInvalid = errors.New("spawn config invalid")

// Orchestrator is the spawn service. Build one per host with New and share
// it; it holds no per-run state.
type Orchestrator struct {
	ledger     *ledger.Ledger
	catalog    catalog.Catalog
	creator    Creator
	conditions *condition.Engine

	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *telemetry.SpawnMetrics
	rng     *rand.Rand
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLedger sets the ledger. The default keeps state in memory only.
func WithLedger(l *ledger.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithCatalog sets the item-kind catalog used to resolve footprints.
func WithCatalog(c catalog.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// WithCreator sets the item-creation collaborator.
func WithCreator(c Creator) Option {
	return func(o *Orchestrator) { o.creator = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMeter sets the meter the spawn metrics are created on.
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

// WithRandSource sets the source used by the random sort strategy.
func WithRandSource(src rand.Source) Option {
	return func(o *Orchestrator) { o.rng = rand.New(src) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		creator: NewMemoryCreator(),
		logger:  slog.Default(),
		tracer:  telemetry.Tracer("gridspawn/spawn"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.ledger == nil {
		o.ledger = ledger.New(nil, ledger.WithLogger(o.logger))
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var err error
	if o.conditions, err = condition.NewEngine(); err != nil {
		return nil, err
	}
	if o.metrics, err = telemetry.NewSpawnMetrics(o.meter); err != nil {
		return nil, err
	}
	return o, nil
}

// Ledger returns the ledger the orchestrator records into.
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }

// Spawn runs cfg against g to completion. A config that fails validation
// yields a result where every instance failed and an error wrapping
// ErrConfigInvalid. A cancelled ctx stops between instances and returns the
// partial result with the context error.
func (o *Orchestrator) Spawn(ctx context.Context, g grid.Grid, cfg *template.SpawnConfig, containerID string) (*Result, error) {
	run, err := o.Begin(ctx, g, cfg, containerID)
	if err != nil {
		if run != nil {
			return run.Result(), err
		}
		return nil, err
	}
	if _, err := run.Advance(ctx, 0); err != nil {
		return run.Result(), err
	}
	return run.Result(), nil
}

// Begin validates and plans a run without processing any instance. Drive
// it with Run.Advance. On ErrConfigInvalid the returned run is already done
// and carries the synthetic failed result.
func (o *Orchestrator) Begin(ctx context.Context, g grid.Grid, cfg *template.SpawnConfig, containerID string) (*Run, error) {
	if g == nil || cfg == nil {
		return nil, fmt.Errorf("%w: grid and config are required", ErrConfigInvalid)
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()

	_, span := o.tracer.Start(ctx, "Orchestrator.Spawn", trace.WithAttributes(
		attribute.String("spawn.config", cfg.Name),
		attribute.String("spawn.container_id", containerID),
		attribute.Int("spawn.templates", len(cfg.Templates)),
		attribute.Int("grid.width", g.Width()),
		attribute.Int("grid.height", g.Height()),
	))

	started := o.now()
	r := &Run{
		o:           o,
		grid:        g,
		cfg:         cfg,
		containerID: containerID,
		span:        span,
		started:     started,
		gates:       make(map[int]gate),
		result:      newResult(uuid.NewString(), containerID, cfg.Name, cfg.TotalUnits(), started),
	}
	logger := o.logger.With("container_id", containerID, "config", cfg.Name, "run_id", r.result.RunID)
	r.logger = logger

	if err := o.validate(g, cfg); err != nil {
		for _, t := range cfg.Templates {
			for k := 1; k <= max(t.Quantity, 1); k++ {
				r.result.add(Outcome{
					InstanceID: t.InstanceID(k),
					TemplateID: t.ID,
					ItemKind:   t.ItemKind,
					Status:     StatusFailed,
					Reason:     ReasonConfigInvalid,
				})
			}
		}
		span.RecordError(err)
		logger.Error("spawn config invalid", "error", err)
		r.finish(ctx)
		return r, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	r.analyzer = occupancy.NewAnalyzer()
	r.analyzer.Analyze(g, true)
	r.strategy = placement.NewStrategy(r.analyzer)

	if cfg.ContainerType != "" && containerType(g) != cfg.ContainerType {
		r.mismatch = true
		logger.Info("container type mismatch", "want", cfg.ContainerType, "got", containerType(g))
	}

	plans := make([]planned, 0, len(cfg.Templates))
	for i, t := range cfg.Templates {
		size, _ := t.ResolveFootprint(o.catalog)
		plans = append(plans, planned{index: i, tpl: t, area: size.Area()})
	}
	sortTemplates(plans, cfg.SortStrategy, o.rng)

	for i := range plans {
		p := &plans[i]
		size, _ := p.tpl.ResolveFootprint(o.catalog)
		kind := catalog.ItemKind{ID: p.tpl.ItemKind, Size: size}
		if o.catalog != nil {
			if k, ok := o.catalog.Resolve(p.tpl.ItemKind); ok {
				kind = k
				kind.Size = size
			}
		}
		for k := 1; k <= p.tpl.Quantity; k++ {
			r.units = append(r.units, unit{plan: i, tpl: &plans[i].tpl, kind: kind, size: size, k: k})
		}
	}

	logger.Debug("spawn planned", "units", len(r.units), "sort", cfg.SortStrategy)
	return r, nil
}

// Validate reports, wrapped in ErrConfigInvalid, every reason Spawn would
// refuse to run cfg on g. Defaults are applied to a copy first.
func (o *Orchestrator) Validate(g grid.Grid, cfg *template.SpawnConfig) error {
	if g == nil || cfg == nil {
		return fmt.Errorf("%w: grid and config are required", ErrConfigInvalid)
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := o.validate(g, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

func (o *Orchestrator) validate(g grid.Grid, cfg *template.SpawnConfig) error {
	var errs []error
	if err := cfg.Validate(o.catalog); err != nil {
		errs = append(errs, err)
	}
	if need := cfg.MinGridSize; g.Width() < need.Width || g.Height() < need.Height {
		errs = append(errs, fmt.Errorf("grid %dx%d is smaller than min_grid_size %s", g.Width(), g.Height(), need))
	}
	for i, t := range cfg.Templates {
		if t.Condition == "" {
			continue
		}
		if err := o.conditions.Compile(t.Condition); err != nil {
			errs = append(errs, fmt.Errorf("template %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ShouldSpawn reports whether running cfg on the container could place
// anything: some instance is not yet recorded or belongs to a non-unique
// template. A container type mismatch or an invalid config means nothing
// would spawn.
func (o *Orchestrator) ShouldSpawn(g grid.Grid, cfg *template.SpawnConfig, containerID string) bool {
	if cfg == nil || g == nil {
		return false
	}
	if o.Validate(g, cfg) != nil {
		return false
	}
	if cfg.ContainerType != "" && containerType(g) != cfg.ContainerType {
		return false
	}
	for _, t := range cfg.Templates {
		if t.UniqueSpawn && o.ledger.Has(containerID, t.ID) {
			continue
		}
		for k := 1; k <= max(t.Quantity, 1); k++ {
			if o.ledger.ShouldSpawn(containerID, t.InstanceID(k), t.UniqueSpawn) {
				return true
			}
		}
	}
	return false
}

// ResetContainer forgets what was spawned in the container and persists
// the change.
func (o *Orchestrator) ResetContainer(ctx context.Context, containerID string) error {
	o.ledger.ResetContainer(containerID)
	o.logger.InfoContext(ctx, "ledger container reset", "container_id", containerID)
	return o.ledger.Save(ctx)
}

// ResetAll forgets every container and persists the change.
func (o *Orchestrator) ResetAll(ctx context.Context) error {
	o.ledger.ResetAll()
	o.logger.InfoContext(ctx, "ledger reset")
	return o.ledger.Save(ctx)
}

func containerType(g grid.Grid) string {
	if t, ok := g.(grid.Typed); ok {
		return t.Type()
	}
	return ""
}
