package pipeline

// Status is the overall outcome of a pipeline run.
type Status string

const (
	// StatusSuccess marks a run that completed its analysis. Note that a
	// non-English video also yields success: "nothing to classify" is an
	// answer, not a failure.
	StatusSuccess Status = "success"

	// StatusError marks a run that could not produce an analysis.
	StatusError Status = "error"
)

// ProcessingResult is the single record a pipeline run produces. It is
// created once per request, immutable after Process returns, and never
// persisted — callers serialise it straight into their response.
type ProcessingResult struct {
	// Status is success or error.
	Status Status `json:"status"`

	// VideoURL echoes the input URL.
	VideoURL string `json:"video_url"`

	// Language is the detected language code ("en", "fr", …), or nil when no
	// language was established.
	Language *string `json:"language"`

	// LanguageConfidence is the probability of Language, in [0, 1].
	LanguageConfidence float64 `json:"language_confidence"`

	// Accent is the display name of the detected accent ("American", …), or
	// nil when accent classification did not run.
	Accent *string `json:"accent"`

	// AccentConfidence is the accent model's score, in [0, 1].
	AccentConfidence float64 `json:"accent_confidence"`

	// AccentConfidencePercentage is AccentConfidence as a percentage rounded
	// to one decimal place. Always round(AccentConfidence*100, 1).
	AccentConfidencePercentage float64 `json:"accent_confidence_percentage"`

	// Message is a short human-readable account of how the run ended.
	Message string `json:"message"`

	// Summary is a one-line result sentence for display surfaces.
	Summary string `json:"summary"`
}

// errorResult builds the error-status record every failed stage collapses to.
func errorResult(videoURL, message string) ProcessingResult {
	return ProcessingResult{
		Status:   StatusError,
		VideoURL: videoURL,
		Message:  message,
	}
}
