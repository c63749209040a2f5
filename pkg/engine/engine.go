package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine/chance"
	"github.com/DrSkyle/gridspawn/pkg/engine/ledger"
	"github.com/DrSkyle/gridspawn/pkg/engine/scheduler"
	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/storage"
	"github.com/DrSkyle/gridspawn/pkg/telemetry"
	"github.com/DrSkyle/gridspawn/pkg/template"
	"github.com/DrSkyle/gridspawn/pkg/version"
)

// ErrPanic marks a spawn that was stopped by a recovered panic.
var ErrPanic = errors.New("spawn panicked")

// Config holds engine settings.
type Config struct {
	// LedgerURL selects the ledger backend, see ledger.Open. Empty keeps
	// the ledger in memory.
	LedgerURL   string
	CreateTable bool
	AWS         storage.AWSOptions

	// Seed drives sorting and the probability filter. Zero picks a
	// time-based seed.
	Seed uint64

	// Interval is the pause between instances in cooperative mode.
	Interval time.Duration

	// ApplyChance runs the probability filter before every spawn.
	ApplyChance bool

	LogLevel string
	JSONLogs bool

	// Telemetry config.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // Set true if embedding in an app that already has OTEL

	// Dependencies.
	Logger *slog.Logger
}

// Engine is the runtime core a host builds once and keeps for its
// lifetime.
type Engine struct {
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Ledger       *ledger.Ledger
	Orchestrator *spawn.Orchestrator
	Scheduler    *scheduler.Scheduler

	config   Config
	catalog  catalog.Catalog
	creator  spawn.Creator
	backend  ledger.Backend
	shutdown func(context.Context) error

	// mu guards filterSrc.
	mu        sync.Mutex
	filterSrc rand.Source
	seed      uint64
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// WithCatalog sets the item-kind catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithCreator sets the item factory. Defaults to spawn.MemoryCreator.
func WithCreator(c spawn.Creator) Option {
	return func(e *Engine) {
		e.creator = c
	}
}

// WithBackend uses b instead of opening Config.LedgerURL.
func WithBackend(b ledger.Backend) Option {
	return func(e *Engine) {
		e.backend = b
	}
}

// New initializes the Engine: logger, telemetry, ledger (loaded from its
// backend), orchestrator and scheduler.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		Tracer: telemetry.Tracer("gridspawn/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Logger == nil {
		e.Logger = NewLogger(os.Stderr, e.config.LogLevel, e.config.JSONLogs)
	}
	if e.creator == nil {
		e.creator = spawn.NewMemoryCreator()
	}

	// Initialize telemetry.
	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	backend := e.backend
	if backend == nil {
		var err error
		backend, err = ledger.Open(ctx, e.config.LedgerURL, ledger.OpenOptions{AWS: e.config.AWS, CreateTable: e.config.CreateTable})
		if err != nil {
			e.stopTelemetry(ctx)
			return nil, fmt.Errorf("failed to open ledger %s: %w", redactURL(e.config.LedgerURL), err)
		}
	}
	e.Ledger = ledger.New(backend, ledger.WithLogger(e.Logger))
	if err := e.Ledger.Load(ctx); err != nil {
		_ = e.Ledger.Close()
		e.stopTelemetry(ctx)
		return nil, err
	}

	e.seed = e.config.Seed
	if e.seed == 0 {
		e.seed = uint64(time.Now().UnixNano())
	}
	e.filterSrc = chance.NewSource(e.seed)

	orch, err := spawn.New(
		spawn.WithLedger(e.Ledger),
		spawn.WithCatalog(e.catalog),
		spawn.WithCreator(e.creator),
		spawn.WithLogger(e.Logger),
		spawn.WithTracer(telemetry.Tracer("gridspawn/spawn")),
		spawn.WithRandSource(chance.NewSource(e.seed+1)),
	)
	if err != nil {
		_ = e.Ledger.Close()
		e.stopTelemetry(ctx)
		return nil, err
	}
	e.Orchestrator = orch
	e.Scheduler = scheduler.New(orch,
		scheduler.WithLogger(e.Logger),
		scheduler.WithInterval(e.config.Interval),
	)

	e.Logger.Debug("engine ready",
		"ledger", redactURL(e.config.LedgerURL),
		"containers", len(e.Ledger.Containers()),
		"seed", e.seed,
	)
	return e, nil
}

// Seed returns the seed in use, which is useful to replay a run.
func (e *Engine) Seed() uint64 { return e.seed }

// Catalog returns the catalog the engine resolves item kinds with.
func (e *Engine) Catalog() catalog.Catalog { return e.catalog }

// prepare applies the probability filter when configured. A config that
// fails validation is passed through unfiltered so the orchestrator reports
// it.
func (e *Engine) prepare(g grid.Grid, cfg *template.SpawnConfig) *template.SpawnConfig {
	if !e.config.ApplyChance || cfg == nil || g == nil {
		return cfg
	}
	if err := e.Orchestrator.Validate(g, cfg); err != nil {
		return cfg
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return chance.Filter(cfg, e.filterSrc)
}

// Spawn runs cfg against g to completion.
func (e *Engine) Spawn(ctx context.Context, g grid.Grid, cfg *template.SpawnConfig, containerID string) (res *spawn.Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Spawn")
	defer span.End()

	// Crash safety.
	defer e.recoverPanic(ctx, &err)

	return e.Orchestrator.Spawn(ctx, g, e.prepare(g, cfg), containerID)
}

// Enqueue queues cfg for the cooperative scheduler and returns the
// request id.
func (e *Engine) Enqueue(g grid.Grid, cfg *template.SpawnConfig, containerID string, onComplete func(string, *spawn.Result, error)) string {
	return e.Scheduler.Enqueue(scheduler.Request{
		Grid:        g,
		Config:      e.prepare(g, cfg),
		ContainerID: containerID,
		OnComplete:  onComplete,
	})
}

// ShouldSpawn reports whether cfg would spawn anything in containerID.
func (e *Engine) ShouldSpawn(g grid.Grid, cfg *template.SpawnConfig, containerID string) bool {
	return e.Orchestrator.ShouldSpawn(g, cfg, containerID)
}

// Reset forgets containerID, or every container when containerID is
// empty, and persists the change.
func (e *Engine) Reset(ctx context.Context, containerID string) error {
	if containerID == "" {
		return e.Orchestrator.ResetAll(ctx)
	}
	return e.Orchestrator.ResetContainer(ctx, containerID)
}

// Checkpoint persists pending ledger changes.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if err := e.Ledger.Save(ctx); err != nil {
		return fmt.Errorf("failed to checkpoint ledger: %w", err)
	}
	return nil
}

// Close saves the ledger and releases the backend and telemetry.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.Checkpoint(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.Ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
	}
	if err := e.stopTelemetry(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) stopTelemetry(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	shutdown := e.shutdown
	e.shutdown = nil
	if err := shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down telemetry: %w", err)
	}
	return nil
}

// recoverPanic turns a panic in a host callback (grid, creator) into an
// error so a long-running host survives it.
func (e *Engine) recoverPanic(ctx context.Context, errp *error) {
	if r := recover(); r != nil {
		_, span := e.Tracer.Start(ctx, "CriticalPanic")

		stack := debug.Stack()
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()

		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
		*errp = fmt.Errorf("%w: %v", ErrPanic, r)
	}
}

// NewLogger builds the engine's slog logger. level is one of debug, info,
// warn, error (default info).
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil || level == "" {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: redactSensitiveData}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "auth_token": true,
		"credential": true, "connection_string": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}

// redactURL hides the password of ledger URLs such as
// redis://:secret@host:6379.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
