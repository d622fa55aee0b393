// Package langid defines the Provider interface for spoken-language
// identification backends.
//
// A language-identification provider wraps a pretrained model (e.g., the
// whisper.cpp language detector) and reports which language is being spoken in
// an audio buffer, together with a probability distribution over all candidate
// languages.
//
// Detection never fails in the error sense: model-internal problems are a
// normal outcome the caller must branch on, so Detect returns a Result that is
// either certain (carrying a Detection) or uncertain (carrying nothing).
// Callers unpack it with [Result.Detection] and handle both arms explicitly.
//
// Implementations must be safe for concurrent use; if the underlying model
// context is not, the implementation serialises inference internally.
package langid

import "context"

// LanguageProb pairs a language code with its probability.
type LanguageProb struct {
	// Code is the model's language code (e.g., "en", "fr").
	Code string

	// Prob is the probability assigned to Code, in [0, 1].
	Prob float64
}

// Detection is a successful language identification.
type Detection struct {
	// Code is the arg-max language code.
	Code string

	// Confidence is the probability of Code.
	Confidence float64

	// Probabilities is the full distribution over candidate languages,
	// sorted by descending probability. Probabilities[0].Code == Code.
	Probabilities []LanguageProb
}

// Result is the outcome of a Detect call: either a certain Detection or the
// uncertain variant. The zero value is uncertain.
type Result struct {
	detection *Detection
}

// Certain wraps a Detection into a certain Result.
func Certain(d Detection) Result {
	return Result{detection: &d}
}

// Uncertain returns the Result variant carrying no detection. Used when the
// model could not identify a language for any reason (decode failure, audio
// too short, inference error).
func Uncertain() Result {
	return Result{}
}

// Detection returns the underlying Detection and true when the result is
// certain, or a zero Detection and false otherwise.
func (r Result) Detection() (Detection, bool) {
	if r.detection == nil {
		return Detection{}, false
	}
	return *r.detection, true
}

// Provider identifies the spoken language of an audio buffer.
type Provider interface {
	// Detect runs language identification over samples, a mono 16 kHz float32
	// buffer. It never returns an error: any internal failure yields the
	// uncertain Result. Implementations may log the underlying cause.
	Detect(ctx context.Context, samples []float32) Result
}
