package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SpawnMetrics are the instruments the orchestrator reports to. Without a
// meter provider installed by the host they are no-ops.
type SpawnMetrics struct {
	outcomes metric.Int64Counter
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSpawnMetrics creates the instruments on meter, or on the global
// "gridspawn" meter when meter is nil.
func NewSpawnMetrics(meter metric.Meter) (*SpawnMetrics, error) {
	if meter == nil {
		meter = otel.Meter("gridspawn")
	}
	outcomes, err := meter.Int64Counter("gridspawn.spawn.outcomes",
		metric.WithDescription("Unit instances processed, by status."),
		metric.WithUnit("{instance}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create outcomes counter: %w", err)
	}
	runs, err := meter.Int64Counter("gridspawn.spawn.runs",
		metric.WithDescription("Completed spawn runs."),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	duration, err := meter.Float64Histogram("gridspawn.spawn.duration",
		metric.WithDescription("Wall time of a spawn run."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return &SpawnMetrics{outcomes: outcomes, runs: runs, duration: duration}, nil
}

// Outcome counts one processed instance.
func (m *SpawnMetrics) Outcome(ctx context.Context, config, status string) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("config", config),
		attribute.String("status", status),
	))
}

// Run records a finished run.
func (m *SpawnMetrics) Run(ctx context.Context, config string, elapsed time.Duration, aborted bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("config", config),
		attribute.Bool("aborted", aborted),
	)
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
