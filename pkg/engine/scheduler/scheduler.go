// Package scheduler drives spawn requests cooperatively from a host tick
// loop: requests are served FIFO and each Step processes a bounded number
// of unit instances.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// Request is one queued spawn.
type Request struct {
	Grid        grid.Grid
	Config      *template.SpawnConfig
	ContainerID string
	// OnComplete receives the final result. err wraps
	// spawn.ErrConfigInvalid when the config could not run.
	OnComplete func(id string, res *spawn.Result, err error)
}

type job struct {
	id  string
	req Request
	run *spawn.Run
}

// Scheduler is meant for a single logical thread, the host's update loop,
// and does no locking.
type Scheduler struct {
	orch     *spawn.Orchestrator
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	queue  []*job
	active *job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithInterval sleeps d after every processed instance.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the clock and the sleep used for intervals.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		s.now = now
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New creates a scheduler feeding orch.
func New(orch *spawn.Orchestrator, opts ...Option) *Scheduler {
	s := &Scheduler{
		orch:   orch,
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends req to the queue and returns its request id.
func (s *Scheduler) Enqueue(req Request) string {
	j := &job{id: uuid.NewString(), req: req}
	s.queue = append(s.queue, j)
	s.logger.Debug("spawn request queued", "request_id", j.id, "container_id", req.ContainerID, "queued", len(s.queue))
	return j.id
}

// Pending counts requests not yet completed, the active one included.
func (s *Scheduler) Pending() int {
	n := len(s.queue)
	if s.active != nil {
		n++
	}
	return n
}

// Active returns the request being processed, if any.
func (s *Scheduler) Active() (id string, run *spawn.Run, ok bool) {
	if s.active == nil {
		return "", nil, false
	}
	return s.active.id, s.active.run, true
}

// Step processes at most budget unit instances, or as many as are queued
// when budget <= 0. It also stops when the active config's TimeBudget is
// used up for this tick, when ctx is cancelled, and when the queue is
// empty. A request interrupted by the budget resumes on the next Step.
func (s *Scheduler) Step(ctx context.Context, budget int) int {
	tick := s.now()
	processed := 0
	for budget <= 0 || processed < budget {
		if ctx.Err() != nil {
			break
		}
		j := s.current(ctx)
		if j == nil {
			break
		}
		if tb := j.run.Config().TimeBudget; tb > 0 && processed > 0 && s.now().Sub(tick) >= tb {
			break
		}

		n, err := j.run.Advance(ctx, 1)
		processed += n
		if err != nil {
			break
		}
		if j.run.Done() {
			s.complete(j, nil)
			continue
		}
		if s.interval > 0 {
			if err := s.sleep(ctx, s.interval); err != nil {
				break
			}
		}
	}
	return processed
}

// current returns the active job, starting the next queued request when
// none is active. Requests whose config is invalid complete immediately.
func (s *Scheduler) current(ctx context.Context) *job {
	for s.active == nil {
		if len(s.queue) == 0 {
			return nil
		}
		j := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		run, err := s.orch.Begin(ctx, j.req.Grid, j.req.Config, j.req.ContainerID)
		j.run = run
		if err != nil {
			s.complete(j, err)
			continue
		}
		s.active = j
	}
	return s.active
}

func (s *Scheduler) complete(j *job, err error) {
	if s.active == j {
		s.active = nil
	}
	var res *spawn.Result
	if j.run != nil {
		res = j.run.Result()
	}
	if err != nil {
		s.logger.Warn("spawn request failed", "request_id", j.id, "container_id", j.req.ContainerID, "error", err)
	} else {
		s.logger.Debug("spawn request complete", "request_id", j.id, "container_id", j.req.ContainerID)
	}
	if j.req.OnComplete != nil {
		j.req.OnComplete(j.id, res, err)
	}
}

// RunToCompletion processes req alone, blocking until it is done. Queued
// requests are not touched.
func (s *Scheduler) RunToCompletion(ctx context.Context, req Request) (*spawn.Result, error) {
	run, err := s.orch.Begin(ctx, req.Grid, req.Config, req.ContainerID)
	if err != nil {
		var res *spawn.Result
		if run != nil {
			res = run.Result()
		}
		return res, err
	}
	for !run.Done() {
		if _, err := run.Advance(ctx, 1); err != nil {
			return run.Result(), err
		}
		if s.interval > 0 && !run.Done() {
			if err := s.sleep(ctx, s.interval); err != nil {
				return run.Result(), err
			}
		}
	}
	return run.Result(), nil
}

// Drain steps until the queue is empty or ctx is cancelled.
func (s *Scheduler) Drain(ctx context.Context) error {
	for s.Pending() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx, 0)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
