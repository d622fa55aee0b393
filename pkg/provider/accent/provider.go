// Package accent defines the Provider interface for English-accent
// classification backends.
//
// An accent provider wraps a pretrained accent-identification model (e.g., a
// speechbrain ECAPA classifier served by a local sidecar) and exposes a single
// Classify call: given the path of a mono 16 kHz WAV file containing English
// speech, it returns the most likely regional accent together with the model's
// confidence.
//
// Implementations must be safe for concurrent use; if the underlying model is
// not, the implementation is responsible for serialising access internally.
package accent

import (
	"context"
	"math"
)

// Classification is the outcome of a successful accent inference.
type Classification struct {
	// Code is the model's internal accent label (e.g., "us", "england").
	Code string

	// Name is the human-readable accent name resolved through the label
	// table (e.g., "American", "British").
	Name string

	// Score is the model's confidence for Code, in [0, 1].
	Score float64

	// Percent is Score expressed as a percentage rounded to one decimal
	// place. Always equals round(Score*100, 1).
	Percent float64
}

// Provider classifies the regional accent of English speech.
type Provider interface {
	// Classify runs accent inference on the audio file at audioPath. The file
	// must be a mono 16 kHz 16-bit PCM WAV. Implementations should tolerate
	// platform path quirks (relative paths, separator styles) by retrying
	// equivalent representations of the same path before giving up.
	//
	// The returned error is the last underlying failure when every attempt
	// fails; callers decide how to surface it.
	Classify(ctx context.Context, audioPath string) (Classification, error)
}

// Percent converts a [0, 1] confidence score into a percentage rounded to one
// decimal place. Exposed so that all implementations agree on the rounding.
func Percent(score float64) float64 {
	return math.Round(score*1000) / 10
}
