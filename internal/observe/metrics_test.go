package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, "download", "ok", 0.25)
	m.RecordRun(ctx, "success")
	m.RecordRun(ctx, "error")
	m.RecordRescue(ctx)
	m.AddActive(ctx, 1)
	m.AddActive(ctx, -1)

	rm := collect(t, reader)

	if md := findMetric(rm, "accentis.pipeline.stage.duration"); md == nil {
		t.Error("stage duration metric not recorded")
	}
	runs := findMetric(rm, "accentis.pipeline.runs")
	if runs == nil {
		t.Fatal("pipeline runs metric not recorded")
	}
	sum, ok := runs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("pipeline runs: unexpected data type %T", runs.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("pipeline runs total: want 2, got %d", total)
	}
	if md := findMetric(rm, "accentis.pipeline.rescues"); md == nil {
		t.Error("rescue metric not recorded")
	}
	active := findMetric(rm, "accentis.pipeline.active_runs")
	if active == nil {
		t.Fatal("active runs metric not recorded")
	}
	if gauge, ok := active.Data.(metricdata.Sum[int64]); ok {
		var v int64
		for _, dp := range gauge.DataPoints {
			v += dp.Value
		}
		if v != 0 {
			t.Errorf("active runs: want 0 after +1/-1, got %d", v)
		}
	}
}

// TestRecordHelpers_NilSafe verifies that a nil Metrics never panics; callers
// use the helpers unguarded.
func TestRecordHelpers_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	ctx := context.Background()
	m.RecordStage(ctx, "download", "ok", 1)
	m.RecordRun(ctx, "success")
	m.RecordRescue(ctx)
	m.AddActive(ctx, 1)

	empty := &Metrics{}
	empty.RecordStage(ctx, "download", "ok", 1)
	empty.RecordRun(ctx, "success")
	empty.RecordRescue(ctx)
	empty.AddActive(ctx, 1)
}

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	var capturedCID string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status: want 202, got %d", rec.Code)
	}
	if capturedCID == "" {
		t.Error("correlation ID not available inside handler")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != capturedCID {
		t.Errorf("X-Correlation-ID header: want %q, got %q", capturedCID, got)
	}
	if md := findMetric(collect(t, reader), "accentis.http.request.duration"); md == nil {
		t.Error("http request duration metric not recorded")
	}
	if spans := exp.GetSpans(); len(spans) != 1 {
		t.Errorf("spans: want 1, got %d", len(spans))
	}
}
