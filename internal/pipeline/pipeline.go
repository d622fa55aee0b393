// Package pipeline implements the end-to-end video analysis run: download a
// video, extract its audio track, identify the spoken language, and — for
// English speech — classify the regional accent.
//
// The orchestrator is a straight-line state machine. Every stage either
// advances the run or collapses it into a terminal [ProcessingResult]; there
// is no partial output and nothing is persisted. All request-scoped files
// live in a [WorkingArea] that is removed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/accentis/accentis/internal/observe"
	"github.com/accentis/accentis/pkg/audio"
	"github.com/accentis/accentis/pkg/media"
	"github.com/accentis/accentis/pkg/provider/accent"
	"github.com/accentis/accentis/pkg/provider/langid"
)

// DefaultMinAudioBytes is the smallest extracted audio file accepted as
// plausibly containing speech: 10 KiB. A heuristic floor, not a guarantee.
const DefaultMinAudioBytes int64 = 10 * 1024

// RescueTuning parameterises the branch that infers "probably English" from a
// confident accent match when language identification is inconclusive.
type RescueTuning struct {
	// LanguageConfidenceFloor is the language confidence below which the
	// rescue branch is considered.
	LanguageConfidenceFloor float64

	// AccentScoreFloor is the accent score above which an inconclusive
	// language is rescued as English.
	AccentScoreFloor float64

	// AssumedLanguageConfidence is the language confidence reported for a
	// rescued result.
	AssumedLanguageConfidence float64
}

// DefaultRescueTuning reproduces the observed rescue behaviour: consider the
// branch below 0.1 language confidence, accept above 0.3 accent score, and
// report the rescued language at 0.5 confidence.
func DefaultRescueTuning() RescueTuning {
	return RescueTuning{
		LanguageConfidenceFloor:   0.1,
		AccentScoreFloor:          0.3,
		AssumedLanguageConfidence: 0.5,
	}
}

// Orchestrator runs the full analysis pipeline. Construct it with [New];
// the zero value is not usable. Orchestrator is safe for concurrent use as
// long as its collaborators are.
type Orchestrator struct {
	downloader media.Downloader
	extractor  media.Extractor
	loader     *audio.Loader
	langID     langid.Provider
	accent     accent.Provider

	sink    EventSink
	metrics *observe.Metrics

	workRoot      string
	minAudioBytes int64
	rescue        RescueTuning
}

// Option customises an [Orchestrator].
type Option func(*Orchestrator)

// WithEventSink routes progress events to sink instead of the default
// [LogSink].
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithMetrics records run and stage metrics to m. Without this option no
// metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithWorkRoot places per-run working areas under root instead of the system
// temp directory.
func WithWorkRoot(root string) Option {
	return func(o *Orchestrator) { o.workRoot = root }
}

// WithMinAudioBytes overrides the minimum extracted audio size. Values below
// one fall back to [DefaultMinAudioBytes].
func WithMinAudioBytes(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.minAudioBytes = n
		}
	}
}

// WithRescueTuning overrides the rescue-branch thresholds.
func WithRescueTuning(t RescueTuning) Option {
	return func(o *Orchestrator) { o.rescue = t }
}

// New builds an Orchestrator around the four collaborators every run needs.
func New(downloader media.Downloader, extractor media.Extractor, langID langid.Provider, accentProv accent.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		downloader:    downloader,
		extractor:     extractor,
		loader:        &audio.Loader{},
		langID:        langID,
		accent:        accentProv,
		sink:          LogSink{},
		minAudioBytes: DefaultMinAudioBytes,
		rescue:        DefaultRescueTuning(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the full pipeline for videoURL and returns its result record.
// Process never returns an error: every failure mode is folded into an
// error-status [ProcessingResult] so callers have exactly one shape to
// serialise. A panic in a collaborator is contained the same way.
func (o *Orchestrator) Process(ctx context.Context, videoURL string) (res ProcessingResult) {
	start := time.Now()
	o.metrics.AddActive(ctx, 1)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline run panicked", "url", videoURL, "panic", r)
			res = errorResult(videoURL, fmt.Sprintf("Processing failed: %v", r))
		}
		o.metrics.AddActive(ctx, -1)
		o.metrics.RecordRun(ctx, string(res.Status))
		slog.Info("pipeline run finished",
			"url", videoURL,
			"status", res.Status,
			"elapsed", time.Since(start),
		)
	}()

	work, err := NewWorkingArea(o.workRoot)
	if err != nil {
		return errorResult(videoURL, fmt.Sprintf("Processing failed: %v", err))
	}
	defer func() {
		if err := work.Cleanup(); err != nil {
			slog.Warn("working area cleanup failed", "dir", work.Dir(), "error", err)
		}
	}()

	log := slog.With("run_id", work.ID(), "url", videoURL)

	// Download.
	stageStart := time.Now()
	if err := o.downloader.Download(ctx, videoURL, work.VideoPath()); err != nil {
		log.Warn("video download failed", "error", err)
		o.finishStage(ctx, work.ID(), StageDownload, OutcomeFailed, err.Error(), stageStart)
		return errorResult(videoURL, "Video download failed. Check URL or free up disk space.")
	}
	o.finishStage(ctx, work.ID(), StageDownload, OutcomeOK, "", stageStart)

	// Extract audio.
	stageStart = time.Now()
	if err := o.extractor.Extract(ctx, work.VideoPath(), work.AudioPath()); err != nil {
		log.Warn("audio extraction failed", "error", err)
		o.finishStage(ctx, work.ID(), StageExtract, OutcomeFailed, err.Error(), stageStart)
		return errorResult(videoURL, "Audio extraction failed. Video may be corrupted.")
	}
	o.finishStage(ctx, work.ID(), StageExtract, OutcomeOK, "", stageStart)

	// Gate on the extracted size before spending inference time on a file
	// that cannot plausibly hold speech.
	stageStart = time.Now()
	info, err := os.Stat(work.AudioPath())
	if err != nil {
		o.finishStage(ctx, work.ID(), StageValidate, OutcomeFailed, err.Error(), stageStart)
		return errorResult(videoURL, "Audio file not created")
	}
	if info.Size() < o.minAudioBytes {
		detail := fmt.Sprintf("%d bytes", info.Size())
		log.Warn("extracted audio below size floor", "size", info.Size(), "floor", o.minAudioBytes)
		o.finishStage(ctx, work.ID(), StageValidate, OutcomeFailed, detail, stageStart)
		return errorResult(videoURL, "Audio file too small - may be silent or corrupted")
	}
	o.finishStage(ctx, work.ID(), StageValidate, OutcomeOK, "", stageStart)

	// Language identification.
	stageStart = time.Now()
	detection, certain := o.detectLanguage(ctx, work.AudioPath())
	switch {
	case !certain:
		o.finishStage(ctx, work.ID(), StageLanguage, OutcomeUncertain, "", stageStart)
	default:
		o.finishStage(ctx, work.ID(), StageLanguage, OutcomeOK, detection.Code, stageStart)
		log.Info("language identified", "language", detection.Code, "confidence", detection.Confidence)
	}

	res = ProcessingResult{
		Status:   StatusError,
		VideoURL: videoURL,
	}
	if certain {
		res.Language = &detection.Code
		res.LanguageConfidence = detection.Confidence
	}

	// Rescue branch: when the language is inconclusive, a confident accent
	// match is taken as evidence the speech is English after all.
	if !certain || detection.Confidence < o.rescue.LanguageConfidenceFloor {
		log.Info("language identification inconclusive, consulting accent model")
		stageStart = time.Now()
		cls, err := o.accent.Classify(ctx, work.AudioPath())
		if err == nil && cls.Score > o.rescue.AccentScoreFloor {
			o.metrics.RecordRescue(ctx)
			o.finishStage(ctx, work.ID(), StageAccent, OutcomeRescued, cls.Name, stageStart)
			log.Info("run rescued by accent confidence", "accent", cls.Name, "score", cls.Score)
			lang := "en"
			res.Status = StatusSuccess
			res.Language = &lang
			res.LanguageConfidence = o.rescue.AssumedLanguageConfidence
			res.Accent = &cls.Name
			res.AccentConfidence = cls.Score
			res.AccentConfidencePercentage = cls.Percent
			res.Message = "Language detection uncertain, but accent detected"
			res.Summary = fmt.Sprintf("Possibly %s accent (%.1f%% confidence) - language detection was uncertain", cls.Name, cls.Percent)
			return res
		}
		if err != nil {
			o.finishStage(ctx, work.ID(), StageAccent, OutcomeFailed, err.Error(), stageStart)
			log.Warn("rescue classification failed", "error", err)
		} else {
			o.finishStage(ctx, work.ID(), StageAccent, OutcomeUncertain, cls.Name, stageStart)
		}

		if !certain {
			// No language, no rescue: the run still succeeds — "nothing to
			// classify" is an answer.
			res.Status = StatusSuccess
			res.Message = "Language could not be identified"
			res.Summary = "Accent detection only works for English audio."
			return res
		}
	}

	if certain && detection.Code != "en" {
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("Non-English audio detected: %s", detection.Code)
		res.Summary = "Accent detection only works for English audio."
		return res
	}

	// Accent classification.
	stageStart = time.Now()
	cls, err := o.accent.Classify(ctx, work.AudioPath())
	if err != nil {
		o.finishStage(ctx, work.ID(), StageAccent, OutcomeFailed, err.Error(), stageStart)
		log.Warn("accent classification failed", "error", err)
		res.Message = fmt.Sprintf("Processing failed: %v", err)
		return res
	}
	o.finishStage(ctx, work.ID(), StageAccent, OutcomeOK, cls.Name, stageStart)
	log.Info("accent classified", "accent", cls.Name, "score", cls.Score)

	res.Status = StatusSuccess
	res.Accent = &cls.Name
	res.AccentConfidence = cls.Score
	res.AccentConfidencePercentage = cls.Percent
	res.Message = "Processing completed successfully"
	res.Summary = fmt.Sprintf("Detected %s accent with %.1f%% confidence", cls.Name, cls.Percent)
	return res
}

// detectLanguage loads the audio file and runs language identification.
// Decode failures are treated the same as model uncertainty: the run carries
// on without a language instead of aborting.
func (o *Orchestrator) detectLanguage(ctx context.Context, audioPath string) (langid.Detection, bool) {
	samples, err := o.loader.Load(audioPath)
	if err != nil {
		slog.Warn("audio load for language identification failed", "path", audioPath, "error", err)
		return langid.Detection{}, false
	}
	return o.langID.Detect(ctx, samples).Detection()
}

// finishStage emits the stage event and records its duration.
func (o *Orchestrator) finishStage(ctx context.Context, runID string, stage Stage, outcome Outcome, detail string, started time.Time) {
	elapsed := time.Since(started)
	o.sink.Emit(Event{
		RunID:   runID,
		Stage:   stage,
		Outcome: outcome,
		Detail:  detail,
		Elapsed: elapsed,
	})
	o.metrics.RecordStage(ctx, string(stage), string(outcome), elapsed.Seconds())
}
