// Package observe provides application-wide observability primitives for
// accentis: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all accentis metrics.
const meterName = "github.com/accentis/accentis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("outcome", ...)
	StageDuration metric.Float64Histogram

	// PipelineRuns counts completed pipeline runs. Use with attribute:
	//   attribute.String("status", ...)
	PipelineRuns metric.Int64Counter

	// RescueActivations counts runs resolved through the low-confidence
	// rescue branch.
	RescueActivations metric.Int64Counter

	// ArtifactLoadDuration tracks the startup artifact acquisition latency.
	ArtifactLoadDuration metric.Float64Histogram

	// ActiveRuns tracks the number of pipeline runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Pipeline
// stages span several orders of magnitude: validation is sub-millisecond
// while downloads and inference run to tens of seconds.
var latencyBuckets = []float64{
	0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("accentis.pipeline.stage.duration",
		metric.WithDescription("Latency of one pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineRuns, err = m.Int64Counter("accentis.pipeline.runs",
		metric.WithDescription("Completed pipeline runs by final status."),
	); err != nil {
		return nil, err
	}
	if met.RescueActivations, err = m.Int64Counter("accentis.pipeline.rescues",
		metric.WithDescription("Runs resolved through the low-confidence rescue branch."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactLoadDuration, err = m.Float64Histogram("accentis.artifact.load.duration",
		metric.WithDescription("Startup artifact acquisition latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("accentis.pipeline.active_runs",
		metric.WithDescription("Pipeline runs currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("accentis.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// global meter provider. The first call initialises it; creation errors are
// silently ignored in favour of no-op instruments, so callers can always
// record. Tests should prefer [NewMetrics].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// StatusAttr builds the status attribute used with [Metrics.PipelineRuns].
func StatusAttr(status string) attribute.KeyValue {
	return attribute.String("status", status)
}

// StageAttrs builds the attribute set used with [Metrics.StageDuration].
func StageAttrs(stage, outcome string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	)
}

// RecordStage records one stage duration when m and the instrument are
// non-nil, so callers need no nil guards.
func (m *Metrics) RecordStage(ctx context.Context, stage, outcome string, seconds float64) {
	if m == nil || m.StageDuration == nil {
		return
	}
	m.StageDuration.Record(ctx, seconds, StageAttrs(stage, outcome))
}

// RecordRun counts one completed pipeline run. Nil-safe like [RecordStage].
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	if m == nil || m.PipelineRuns == nil {
		return
	}
	m.PipelineRuns.Add(ctx, 1, metric.WithAttributes(StatusAttr(status)))
}

// RecordRescue counts one rescue-branch activation. Nil-safe.
func (m *Metrics) RecordRescue(ctx context.Context) {
	if m == nil || m.RescueActivations == nil {
		return
	}
	m.RescueActivations.Add(ctx, 1)
}

// AddActive adjusts the in-flight run gauge by delta. Nil-safe.
func (m *Metrics) AddActive(ctx context.Context, delta int64) {
	if m == nil || m.ActiveRuns == nil {
		return
	}
	m.ActiveRuns.Add(ctx, delta)
}
