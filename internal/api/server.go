// Package api provides the HTTP surface of the accentis service: the
// analysis endpoint, the websocket progress stream, health probes, and the
// Prometheus metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/accentis/accentis/internal/health"
	"github.com/accentis/accentis/internal/observe"
	"github.com/accentis/accentis/internal/pipeline"
)

// DefaultMaxConcurrent caps simultaneous pipeline runs when no explicit limit
// is configured. The stages are CPU- and disk-heavy, so wide concurrency buys
// nothing.
const DefaultMaxConcurrent = 2

// shutdownTimeout bounds graceful shutdown; in-flight analyses longer than
// this are abandoned.
const shutdownTimeout = 30 * time.Second

// Processor runs one full video analysis. Satisfied by
// [*pipeline.Orchestrator].
type Processor interface {
	Process(ctx context.Context, videoURL string) pipeline.ProcessingResult
}

// Server is the accentis HTTP server. Construct with [New].
type Server struct {
	httpServer *http.Server
	processor  Processor
	sem        *semaphore.Weighted
	metrics    *observe.Metrics
	hub        *EventHub
}

// Option customises a [Server].
type Option func(*Server)

// WithMetrics records HTTP metrics to m and applies the tracing middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxConcurrent caps simultaneous pipeline runs. Values below one fall
// back to [DefaultMaxConcurrent].
func WithMaxConcurrent(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithEventHub streams pipeline events over the /events websocket. The
// caller wires the same hub into the orchestrator's event sink.
func WithEventHub(hub *EventHub) Option {
	return func(s *Server) { s.hub = hub }
}

// New builds a Server listening on addr. The health handler's checkers
// determine what /readyz reports.
func New(addr string, processor Processor, healthHandler *health.Handler, opts ...Option) *Server {
	s := &Server{
		processor: processor,
		sem:       semaphore.NewWeighted(DefaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.Handle("GET /metrics", promhttp.Handler())
	if healthHandler != nil {
		healthHandler.Register(mux)
	}
	if s.hub != nil {
		mux.Handle("GET /events", s.hub)
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = observe.Middleware(s.metrics)(mux)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// analyzeRequest is the /analyze request body.
type analyzeRequest struct {
	VideoURL string `json:"video_url"`
}

// errorBody is the JSON shape of request-level failures (malformed body,
// invalid URL). Pipeline-level failures are reported inside the result
// record instead.
type errorBody struct {
	Error string `json:"error"`
}

// handleAnalyze runs the full pipeline for the submitted video URL and
// returns the result record. Requests beyond the concurrency cap wait until
// a slot frees or the client gives up.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := validateVideoURL(req.VideoURL); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "server busy and client gave up waiting"})
		return
	}
	defer s.sem.Release(1)

	result := s.processor.Process(ctx, req.VideoURL)
	writeJSON(w, http.StatusOK, result)
}

// validateVideoURL rejects URLs the downloader could never fetch.
func validateVideoURL(raw string) error {
	if raw == "" {
		return errors.New("video_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("video_url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("video_url must use http or https")
	}
	if u.Host == "" {
		return errors.New("video_url is missing a host")
	}
	return nil
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down HTTP server", "addr", s.httpServer.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Handler exposes the fully assembled handler chain, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
