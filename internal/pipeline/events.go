package pipeline

import (
	"log/slog"
	"time"
)

// Stage names one step of the processing pipeline.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageLanguage Stage = "language"
	StageAccent   Stage = "accent"
)

// Outcome describes how a stage ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeUncertain Outcome = "uncertain"
	OutcomeRescued   Outcome = "rescued"
)

// Event is one progress notification emitted while a run executes. Events are
// informational; consumers must not influence the run.
type Event struct {
	// RunID identifies the pipeline run the event belongs to.
	RunID string `json:"run_id"`

	// Stage is the pipeline step that finished.
	Stage Stage `json:"stage"`

	// Outcome is how the stage ended.
	Outcome Outcome `json:"outcome"`

	// Detail carries stage-specific context (an error string, a detected
	// language, an accent name). May be empty.
	Detail string `json:"detail,omitempty"`

	// Elapsed is how long the stage took.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// EventSink receives pipeline progress events. Implementations must be safe
// for concurrent use and must not block: a slow sink stalls the run.
type EventSink interface {
	Emit(ev Event)
}

// LogSink is an EventSink that writes each event to the default slog logger.
type LogSink struct{}

// Emit logs the event at info level.
func (LogSink) Emit(ev Event) {
	slog.Info("pipeline stage finished",
		"run_id", ev.RunID,
		"stage", ev.Stage,
		"outcome", ev.Outcome,
		"detail", ev.Detail,
		"elapsed", ev.Elapsed,
	)
}

// NopSink is an EventSink that discards all events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// MultiSink fans each event out to every wrapped sink in order.
type MultiSink []EventSink

// Emit forwards the event to each wrapped sink.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
