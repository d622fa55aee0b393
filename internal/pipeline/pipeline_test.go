package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/accentis/accentis/internal/pipeline"
	"github.com/accentis/accentis/pkg/audio"
	mediamock "github.com/accentis/accentis/pkg/media/mock"
	"github.com/accentis/accentis/pkg/provider/accent"
	accentmock "github.com/accentis/accentis/pkg/provider/accent/mock"
	"github.com/accentis/accentis/pkg/provider/langid"
	langidmock "github.com/accentis/accentis/pkg/provider/langid/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

// validWAV returns two seconds of silent mono 16 kHz WAV, large enough to
// pass both the byte-size gate and the one-second decode floor.
func validWAV() []byte {
	pcm := make([]byte, 2*2*audio.ModelSampleRate)
	return audio.EncodeWAV(pcm, audio.ModelSampleRate, 1)
}

// american is the scripted accent outcome most tests use.
var american = accent.Classification{Code: "us", Name: "American", Score: 0.7, Percent: 70.0}

// english is the scripted confident language outcome most tests use.
var english = langid.Certain(langid.Detection{
	Code:       "en",
	Confidence: 0.95,
	Probabilities: []langid.LanguageProb{
		{Code: "en", Prob: 0.95},
		{Code: "de", Prob: 0.03},
	},
})

// recordSink collects every emitted event.
type recordSink struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (s *recordSink) Emit(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) stages() []pipeline.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Stage, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Stage
	}
	return out
}

// fixture bundles an orchestrator with its mocks and scoped work root.
type fixture struct {
	downloader *mediamock.Downloader
	extractor  *mediamock.Extractor
	langID     *langidmock.Provider
	accent     *accentmock.Provider
	workRoot   string
	sink       *recordSink
	orch       *pipeline.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		downloader: &mediamock.Downloader{},
		extractor:  &mediamock.Extractor{Content: validWAV()},
		langID:     &langidmock.Provider{Result: english},
		accent:     &accentmock.Provider{Result: american},
		workRoot:   t.TempDir(),
		sink:       &recordSink{},
	}
	f.orch = pipeline.New(f.downloader, f.extractor, f.langID, f.accent,
		pipeline.WithWorkRoot(f.workRoot),
		pipeline.WithEventSink(f.sink),
	)
	return f
}

// assertWorkRootEmpty verifies every working area was removed.
func assertWorkRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work root not cleaned up: %d entries remain", len(entries))
	}
}

const videoURL = "https://example.com/talk.mp4"

// ─── TestProcess_Success ──────────────────────────────────────────────────────

func TestProcess_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s (message %q)", res.Status, res.Message)
	}
	if res.VideoURL != videoURL {
		t.Errorf("video_url: want %q, got %q", videoURL, res.VideoURL)
	}
	if res.Language == nil || *res.Language != "en" {
		t.Errorf("language: want en, got %v", res.Language)
	}
	if res.LanguageConfidence != 0.95 {
		t.Errorf("language_confidence: want 0.95, got %v", res.LanguageConfidence)
	}
	if res.Accent == nil || *res.Accent != "American" {
		t.Errorf("accent: want American, got %v", res.Accent)
	}
	if res.AccentConfidence != 0.7 {
		t.Errorf("accent_confidence: want 0.7, got %v", res.AccentConfidence)
	}
	if res.AccentConfidencePercentage != 70.0 {
		t.Errorf("accent_confidence_percentage: want 70.0, got %v", res.AccentConfidencePercentage)
	}
	if res.Message != "Processing completed successfully" {
		t.Errorf("message: got %q", res.Message)
	}
	if want := "Detected American accent with 70.0% confidence"; res.Summary != want {
		t.Errorf("summary: want %q, got %q", want, res.Summary)
	}

	if f.langID.CallCount() != 1 {
		t.Errorf("langid calls: want 1, got %d", f.langID.CallCount())
	}
	if f.accent.CallCount() != 1 {
		t.Errorf("accent calls: want 1, got %d", f.accent.CallCount())
	}
	assertWorkRootEmpty(t, f.workRoot)
}

// ─── TestProcess_RepeatedRunsMatch ────────────────────────────────────────────

// Two runs with the same URL against deterministic collaborators must produce
// identical records; nothing in the result depends on run-local state.
func TestProcess_RepeatedRunsMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.orch.Process(context.Background(), videoURL)
	second := f.orch.Process(context.Background(), videoURL)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs diverge:\n first: %+v\nsecond: %+v", first, second)
	}
	assertWorkRootEmpty(t, f.workRoot)
}

// ─── TestProcess_DownloadFailure ──────────────────────────────────────────────

func TestProcess_DownloadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.downloader.Err = errors.New("connection refused")

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusError {
		t.Fatalf("status: want error, got %s", res.Status)
	}
	if want := "Video download failed. Check URL or free up disk space."; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	// Nothing past the download stage may run.
	if f.extractor.CallCount() != 0 {
		t.Errorf("extractor calls: want 0, got %d", f.extractor.CallCount())
	}
	if f.langID.CallCount() != 0 {
		t.Errorf("langid calls: want 0, got %d", f.langID.CallCount())
	}
	if f.accent.CallCount() != 0 {
		t.Errorf("accent calls: want 0, got %d", f.accent.CallCount())
	}
	assertWorkRootEmpty(t, f.workRoot)
}

// ─── TestProcess_ExtractionFailure ────────────────────────────────────────────

func TestProcess_ExtractionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.extractor.Err = errors.New("no audio stream")

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusError {
		t.Fatalf("status: want error, got %s", res.Status)
	}
	if want := "Audio extraction failed. Video may be corrupted."; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	if f.langID.CallCount() != 0 {
		t.Errorf("langid calls: want 0, got %d", f.langID.CallCount())
	}
	assertWorkRootEmpty(t, f.workRoot)
}

// ─── TestProcess_AudioTooSmall ────────────────────────────────────────────────

func TestProcess_AudioTooSmall(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.extractor.Content = []byte("tiny")

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusError {
		t.Fatalf("status: want error, got %s", res.Status)
	}
	if want := "Audio file too small - may be silent or corrupted"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	if f.langID.CallCount() != 0 {
		t.Errorf("langid calls: want 0, got %d", f.langID.CallCount())
	}
	if f.accent.CallCount() != 0 {
		t.Errorf("accent calls: want 0, got %d", f.accent.CallCount())
	}
}

// ─── TestProcess_NonEnglish ───────────────────────────────────────────────────

func TestProcess_NonEnglish(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.langID.Result = langid.Certain(langid.Detection{Code: "fr", Confidence: 0.88})

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s", res.Status)
	}
	if res.Language == nil || *res.Language != "fr" {
		t.Errorf("language: want fr, got %v", res.Language)
	}
	if res.Accent != nil {
		t.Errorf("accent: want nil, got %q", *res.Accent)
	}
	if want := "Non-English audio detected: fr"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	if want := "Accent detection only works for English audio."; res.Summary != want {
		t.Errorf("summary: want %q, got %q", want, res.Summary)
	}
	// A confident non-English detection must never reach the accent model.
	if f.accent.CallCount() != 0 {
		t.Errorf("accent calls: want 0, got %d", f.accent.CallCount())
	}
}

// ─── TestProcess_RescueSucceeds ───────────────────────────────────────────────

// TestProcess_RescueSucceeds verifies that an inconclusive language detection
// with a confident accent match is reported as English.
func TestProcess_RescueSucceeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.langID.Result = langid.Uncertain()
	f.accent.Result = accent.Classification{Code: "us", Name: "American", Score: 0.6, Percent: 60.0}

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s (message %q)", res.Status, res.Message)
	}
	if res.Language == nil || *res.Language != "en" {
		t.Errorf("language: want en, got %v", res.Language)
	}
	if res.LanguageConfidence != 0.5 {
		t.Errorf("language_confidence: want assumed 0.5, got %v", res.LanguageConfidence)
	}
	if res.Accent == nil || *res.Accent != "American" {
		t.Errorf("accent: want American, got %v", res.Accent)
	}
	if want := "Language detection uncertain, but accent detected"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	if want := "Possibly American accent (60.0% confidence) - language detection was uncertain"; res.Summary != want {
		t.Errorf("summary: want %q, got %q", want, res.Summary)
	}
	if f.accent.CallCount() != 1 {
		t.Errorf("accent calls: want 1, got %d", f.accent.CallCount())
	}
}

// ─── TestProcess_RescueDeclined ───────────────────────────────────────────────

// TestProcess_RescueDeclined verifies that when neither the language model nor
// the accent model is confident, the run still succeeds with no language.
func TestProcess_RescueDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.langID.Result = langid.Uncertain()
	f.accent.Result = accent.Classification{Code: "us", Name: "American", Score: 0.1, Percent: 10.0}

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s", res.Status)
	}
	if res.Language != nil {
		t.Errorf("language: want nil, got %q", *res.Language)
	}
	if res.Accent != nil {
		t.Errorf("accent: want nil, got %q", *res.Accent)
	}
	if want := "Language could not be identified"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	if f.accent.CallCount() != 1 {
		t.Errorf("accent calls: want 1, got %d", f.accent.CallCount())
	}
}

// ─── TestProcess_LowConfidenceEnglish ─────────────────────────────────────────

// TestProcess_LowConfidenceEnglish verifies that a certain but low-confidence
// English detection consults the accent model for rescue first and, when the
// rescue is declined, still proceeds to normal accent classification.
func TestProcess_LowConfidenceEnglish(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.langID.Result = langid.Certain(langid.Detection{Code: "en", Confidence: 0.05})
	f.accent.Result = accent.Classification{Code: "scotland", Name: "Scottish", Score: 0.2, Percent: 20.0}

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s (message %q)", res.Status, res.Message)
	}
	if res.Language == nil || *res.Language != "en" {
		t.Errorf("language: want en, got %v", res.Language)
	}
	if res.LanguageConfidence != 0.05 {
		t.Errorf("language_confidence: want 0.05, got %v", res.LanguageConfidence)
	}
	if res.Accent == nil || *res.Accent != "Scottish" {
		t.Errorf("accent: want Scottish, got %v", res.Accent)
	}
	// Once for the declined rescue, once for the real classification.
	if f.accent.CallCount() != 2 {
		t.Errorf("accent calls: want 2, got %d", f.accent.CallCount())
	}
}

// ─── TestProcess_AccentFailure ────────────────────────────────────────────────

func TestProcess_AccentFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.accent.Err = errors.New("sidecar returned HTTP 500")

	res := f.orch.Process(context.Background(), videoURL)

	if res.Status != pipeline.StatusError {
		t.Fatalf("status: want error, got %s", res.Status)
	}
	if want := "Processing failed: sidecar returned HTTP 500"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
	// The language finding survives into the error record.
	if res.Language == nil || *res.Language != "en" {
		t.Errorf("language: want en, got %v", res.Language)
	}
	assertWorkRootEmpty(t, f.workRoot)
}

// ─── TestProcess_CustomRescueTuning ───────────────────────────────────────────

func TestProcess_CustomRescueTuning(t *testing.T) {
	t.Parallel()

	downloader := &mediamock.Downloader{}
	extractor := &mediamock.Extractor{Content: validWAV()}
	langID := &langidmock.Provider{Result: langid.Uncertain()}
	accentProv := &accentmock.Provider{
		Result: accent.Classification{Code: "us", Name: "American", Score: 0.5, Percent: 50.0},
	}

	// With the floor raised above the scripted score, the rescue must be
	// declined even though the default tuning would accept it.
	orch := pipeline.New(downloader, extractor, langID, accentProv,
		pipeline.WithWorkRoot(t.TempDir()),
		pipeline.WithEventSink(pipeline.NopSink{}),
		pipeline.WithRescueTuning(pipeline.RescueTuning{
			LanguageConfidenceFloor:   0.1,
			AccentScoreFloor:          0.8,
			AssumedLanguageConfidence: 0.5,
		}),
	)

	res := orch.Process(context.Background(), videoURL)
	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status: want success, got %s", res.Status)
	}
	if res.Language != nil {
		t.Errorf("language: want nil, got %q", *res.Language)
	}
	if res.Accent != nil {
		t.Errorf("accent: want nil, got %q", *res.Accent)
	}
}

// ─── TestProcess_StageEvents ──────────────────────────────────────────────────

func TestProcess_StageEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.orch.Process(context.Background(), videoURL)

	want := []pipeline.Stage{
		pipeline.StageDownload,
		pipeline.StageExtract,
		pipeline.StageValidate,
		pipeline.StageLanguage,
		pipeline.StageAccent,
	}
	got := f.sink.stages()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("stage sequence: want %v, got %v", want, got)
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	for _, ev := range f.sink.events {
		if ev.RunID == "" {
			t.Errorf("event for stage %s has empty run_id", ev.Stage)
		}
		if ev.Outcome != pipeline.OutcomeOK {
			t.Errorf("stage %s outcome: want ok, got %s", ev.Stage, ev.Outcome)
		}
	}
}

// ─── TestProcess_PanicContained ───────────────────────────────────────────────

// panicDownloader stands in for a collaborator with a latent bug.
type panicDownloader struct{}

func (panicDownloader) Download(context.Context, string, string) error {
	panic("boom")
}

func TestProcess_PanicContained(t *testing.T) {
	t.Parallel()

	orch := pipeline.New(panicDownloader{}, &mediamock.Extractor{}, &langidmock.Provider{}, &accentmock.Provider{},
		pipeline.WithWorkRoot(t.TempDir()),
		pipeline.WithEventSink(pipeline.NopSink{}),
	)

	res := orch.Process(context.Background(), videoURL)
	if res.Status != pipeline.StatusError {
		t.Fatalf("status: want error, got %s", res.Status)
	}
	if want := "Processing failed: boom"; res.Message != want {
		t.Errorf("message: want %q, got %q", want, res.Message)
	}
}

// ─── TestWorkingArea ──────────────────────────────────────────────────────────

func TestWorkingArea(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, err := pipeline.NewWorkingArea(root)
	if err != nil {
		t.Fatalf("NewWorkingArea: %v", err)
	}
	if w.ID() == "" {
		t.Error("ID: want non-empty")
	}
	if _, err := os.Stat(w.Dir()); err != nil {
		t.Errorf("working dir not created: %v", err)
	}
	if err := os.WriteFile(w.VideoPath(), []byte("v"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if err := w.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(w.Dir()); !os.IsNotExist(err) {
		t.Errorf("working dir still present after cleanup")
	}
	// Second cleanup is a no-op, not an error.
	if err := w.Cleanup(); err != nil {
		t.Errorf("second Cleanup: %v", err)
	}
}
