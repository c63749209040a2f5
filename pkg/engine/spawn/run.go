package spawn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine/condition"
	"github.com/DrSkyle/gridspawn/pkg/engine/ledger"
	"github.com/DrSkyle/gridspawn/pkg/engine/occupancy"
	"github.com/DrSkyle/gridspawn/pkg/engine/placement"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// unit is one instance waiting to be processed.
type unit struct {
	plan     int
	tpl      *template.Template
	kind     catalog.ItemKind
	size     grid.Size
	k        int
	deferred bool
}

// gate is the template-level decision taken when its first unit comes up.
// An empty status lets units through.
type gate struct {
	status Status
	reason string
}

// Run is one spawn in progress. Immediate and cooperative spawning both
// drive a Run; it is not safe for concurrent use.
type Run struct {
	o           *Orchestrator
	grid        grid.Grid
	cfg         *template.SpawnConfig
	containerID string
	logger      *slog.Logger
	span        trace.Span
	started     time.Time

	analyzer *occupancy.Analyzer
	strategy *placement.Strategy
	mismatch bool

	units []unit
	next  int
	gates map[int]gate

	result *Result
	done   bool
}

// Grid is the grid the run places into.
func (r *Run) Grid() grid.Grid { return r.grid }

// Config is the effective config of the run, defaults applied.
func (r *Run) Config() *template.SpawnConfig { return r.cfg }

// ContainerID of the run.
func (r *Run) ContainerID() string { return r.containerID }

// Done reports whether every instance reached a terminal state or the run
// aborted.
func (r *Run) Done() bool { return r.done }

// Remaining is the number of queued instances, deferred retries included.
func (r *Run) Remaining() int {
	if r.done {
		return 0
	}
	return len(r.units) - r.next
}

// Result returns the result so far; it is final once Done.
func (r *Run) Result() *Result { return r.result }

// Advance processes up to n instances (all of them when n <= 0) and
// returns how many it processed. Cancellation is checked between instances
// only; a cancelled run keeps its state and can be advanced again.
func (r *Run) Advance(ctx context.Context, n int) (int, error) {
	ctx = trace.ContextWithSpan(ctx, r.span)
	processed := 0
	for !r.done && (n <= 0 || processed < n) {
		if r.next >= len(r.units) {
			r.finish(ctx)
			break
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		u := r.units[r.next]
		r.next++
		r.step(ctx, u)
		processed++
	}
	if !r.done && r.next >= len(r.units) {
		r.finish(ctx)
	}
	return processed, nil
}

func (r *Run) step(ctx context.Context, u unit) {
	t := u.tpl
	start := r.o.now()
	out := Outcome{
		InstanceID: t.InstanceID(u.k),
		TemplateID: t.ID,
		ItemKind:   t.ItemKind,
		Footprint:  u.size,
	}

	if g := r.gate(ctx, u); g.status != "" {
		out.Status, out.Reason = g.status, g.reason
		r.record(ctx, u, out, start)
		return
	}

	if !r.o.ledger.ShouldSpawn(r.containerID, out.InstanceID, t.UniqueSpawn) {
		out.Status, out.Reason = StatusSkipped, ReasonAlreadySpawned
		r.record(ctx, u, out, start)
		return
	}

	p, ok := r.find(t, u.size)
	if !ok && t.ConflictPolicy == template.ConflictForceReplace {
		if out.Replaced = r.evict(ctx, t, u.size); len(out.Replaced) > 0 {
			p, ok = r.find(t, u.size)
		}
	}
	if !ok {
		if t.ConflictPolicy == template.ConflictDefer && !u.deferred {
			u.deferred = true
			r.units = append(r.units, u)
			r.logger.DebugContext(ctx, "instance deferred", "template_id", t.ID, "instance_id", out.InstanceID)
			return
		}
		out.Status, out.Reason = StatusFailed, ReasonNoPosition
		r.record(ctx, u, out, start)
		return
	}
	out.Position, out.Footprint, out.Rotated = p.Position, p.Size, p.Rotated

	handle, err := r.o.creator.Create(ctx, u.kind, p.Position, p.Rotated)
	if err == nil && handle == "" {
		err = fmt.Errorf("no handle returned")
	}
	if err != nil {
		out.Status, out.Reason = StatusFailed, fmt.Sprintf("%s: %v", ReasonCreationFailed, err)
		r.record(ctx, u, out, start)
		return
	}
	out.Handle = handle

	ref := grid.ItemRef{ID: out.InstanceID, Kind: t.ItemKind, Handle: handle, Size: p.Size}
	if !r.grid.CommitPlacement(ref, p.Position) {
		if rel, ok := r.o.creator.(Releaser); ok {
			if err := rel.Release(ctx, handle); err != nil {
				r.logger.WarnContext(ctx, "failed to release item", "handle", handle, "error", err)
			}
		}
		r.analyzer.Analyze(r.grid, true)
		out.Status, out.Reason = StatusFailed, ReasonValidationFailed
		r.record(ctx, u, out, start)
		return
	}

	r.analyzer.Analyze(r.grid, true)
	r.o.ledger.Record(ledger.Entry{
		ContainerID: r.containerID,
		InstanceID:  out.InstanceID,
		TemplateID:  t.ID,
		ItemKind:    t.ItemKind,
		Quantity:    1,
		Position:    p.Position,
		Rotated:     p.Rotated,
		Handle:      handle,
	})
	out.Status = StatusSuccess
	r.record(ctx, u, out, start)
}

// find asks the strategy for the first-choice region, then for the whole
// grid when the template relocates.
func (r *Run) find(t *template.Template, size grid.Size) (placement.Placement, bool) {
	req := placement.RequestFor(*t, size)
	if p, ok := r.strategy.FindPosition(req); ok {
		return p, true
	}
	if t.ConflictPolicy == template.ConflictRelocate && t.Mode != template.ModeSmart {
		req.Mode = template.ModeSmart
		req.Region = grid.Rect{}
		return r.strategy.FindPosition(req)
	}
	return placement.Placement{}, false
}

func (r *Run) gate(ctx context.Context, u unit) gate {
	if g, ok := r.gates[u.plan]; ok {
		return g
	}
	g := r.evaluateGate(ctx, u)
	r.gates[u.plan] = g
	return g
}

func (r *Run) evaluateGate(ctx context.Context, u unit) gate {
	t := u.tpl
	if r.mismatch {
		return gate{StatusConditionNotMet, ReasonTypeMismatch}
	}
	if t.UniqueSpawn && r.o.ledger.Has(r.containerID, t.ID) {
		return gate{StatusSkipped, ReasonAlreadySpawned}
	}
	if t.Condition == "" {
		return gate{}
	}

	stats := r.analyzer.Stats()
	ok, err := r.o.conditions.Evaluate(t.Condition, condition.Env{
		ContainerID:   r.containerID,
		ContainerType: containerType(r.grid),
		GridWidth:     r.grid.Width(),
		GridHeight:    r.grid.Height(),
		OccupancyRate: stats.OccupancyRate,
		Available:     stats.Available,
		TemplateID:    t.ID,
		ItemKind:      t.ItemKind,
		Tags:          u.kind.Tags,
		Placed:        r.o.ledger.Count(r.containerID, t.ID),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "condition failed to evaluate", "template_id", t.ID, "error", err)
		return gate{StatusConditionNotMet, err.Error()}
	}
	if !ok {
		return gate{StatusConditionNotMet, ReasonConditionFalse}
	}
	return gate{}
}

func (r *Run) record(ctx context.Context, u unit, out Outcome, start time.Time) {
	out.Elapsed = r.o.now().Sub(start)
	r.result.add(out)
	r.o.metrics.Outcome(ctx, r.cfg.Name, string(out.Status))

	attrs := []any{"template_id", out.TemplateID, "instance_id", out.InstanceID}
	switch out.Status {
	case StatusSuccess:
		r.logger.DebugContext(ctx, "instance placed", append(attrs, "position", out.Position, "rotated", out.Rotated)...)
	case StatusFailed:
		r.logger.InfoContext(ctx, "instance failed", append(attrs, "reason", out.Reason)...)
	default:
		r.logger.DebugContext(ctx, "instance not spawned", append(attrs, "status", out.Status, "reason", out.Reason)...)
	}

	if out.Status == StatusFailed && u.tpl.Priority == template.PriorityCritical && !r.cfg.ContinueOnFailure {
		r.result.Aborted = true
		r.logger.WarnContext(ctx, "critical instance failed, aborting run", attrs...)
		r.finish(ctx)
	}
}

func (r *Run) finish(ctx context.Context) {
	if r.done {
		return
	}
	r.done = true
	res := r.result
	res.Elapsed = r.o.now().Sub(r.started)

	r.span.SetAttributes(
		attribute.Int("spawn.successful", res.Successful),
		attribute.Int("spawn.skipped", res.Skipped),
		attribute.Int("spawn.failed", res.Failed),
		attribute.Int("spawn.condition_not_met", res.ConditionNotMet),
		attribute.Bool("spawn.aborted", res.Aborted),
	)
	if res.Aborted {
		r.span.SetStatus(codes.Error, "aborted on critical failure")
	}
	r.span.End()

	r.o.metrics.Run(ctx, r.cfg.Name, res.Elapsed, res.Aborted)
	r.logger.InfoContext(ctx, "spawn complete",
		"successful", res.Successful,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"condition_not_met", res.ConditionNotMet,
		"aborted", res.Aborted,
		"elapsed", res.Elapsed)
}
