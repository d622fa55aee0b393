// Package whispercpp provides a langid.Provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// Language identification uses the low-level binding rather than the
// transcription API: the audio is padded or truncated to the model's 30 s
// input window, converted to a log-mel spectrogram, and fed to whisper's
// language auto-detector, which yields a probability for every language the
// model knows. No text is decoded.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	whisperlow "github.com/ggerganov/whisper.cpp/bindings/go"

	"github.com/accentis/accentis/pkg/provider/langid"
)

// windowSamples is the fixed input window of the whisper encoder: 30 seconds
// of mono 16 kHz audio. Shorter buffers are zero-padded, longer ones truncated.
const windowSamples = 30 * whisperlow.SampleRate

// defaultThreads is the thread count handed to whisper.cpp when none is
// configured. whisper.cpp clamps this to the available cores itself.
const defaultThreads = 4

// Compile-time assertion that Provider implements langid.Provider.
var _ langid.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithThreads sets the number of threads whisper.cpp may use per inference.
func WithThreads(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.threads = n
		}
	}
}

// Provider implements langid.Provider using a whisper.cpp model loaded once
// at construction and shared for the life of the process.
//
// A whisper context is not safe for concurrent use, so all inference is
// serialised behind a mutex. Concurrent Detect calls therefore queue; this is
// a correctness requirement, not an optimisation.
type Provider struct {
	mu      sync.Mutex
	wctx    *whisperlow.Context
	threads int
}

// New creates a Provider by loading the whisper ggml model at modelPath.
// Loading is expensive (hundreds of MB of weights); do it once at startup and
// share the Provider. The caller must call Close when done.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	wctx := whisperlow.Whisper_init(modelPath)
	if wctx == nil {
		return nil, fmt.Errorf("whispercpp: load model %q failed", modelPath)
	}
	p := &Provider{
		wctx:    wctx,
		threads: defaultThreads,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper context. The Provider must not be used after
// Close returns.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wctx != nil {
		p.wctx.Whisper_free()
		p.wctx = nil
	}
	return nil
}

// Detect identifies the spoken language of samples, a mono 16 kHz float32
// buffer. Every internal failure — cancelled context, closed provider,
// spectrogram conversion, inference — is logged and converted to the
// uncertain Result; Detect never panics or errors.
func (p *Provider) Detect(ctx context.Context, samples []float32) langid.Result {
	if err := ctx.Err(); err != nil {
		slog.Warn("whispercpp: detect aborted", "error", err)
		return langid.Uncertain()
	}
	if len(samples) == 0 {
		slog.Warn("whispercpp: empty sample buffer")
		return langid.Uncertain()
	}

	window := PadOrTrim(samples, windowSamples)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wctx == nil {
		slog.Warn("whispercpp: detect called after Close")
		return langid.Uncertain()
	}

	if err := p.wctx.Whisper_pcm_to_mel(window, p.threads); err != nil {
		slog.Warn("whispercpp: spectrogram conversion failed", "error", err)
		return langid.Uncertain()
	}
	probs, err := p.wctx.Whisper_lang_auto_detect(0, p.threads)
	if err != nil {
		slog.Warn("whispercpp: language auto-detect failed", "error", err)
		return langid.Uncertain()
	}

	dist := Distribution(probs)
	if len(dist) == 0 {
		slog.Warn("whispercpp: language auto-detect returned no probabilities")
		return langid.Uncertain()
	}

	return langid.Certain(langid.Detection{
		Code:          dist[0].Code,
		Confidence:    dist[0].Prob,
		Probabilities: dist,
	})
}

// PadOrTrim fits samples to exactly n entries: buffers longer than n are
// truncated and shorter ones are zero-padded on the right, matching whisper's
// own pad_or_trim behaviour.
func PadOrTrim(samples []float32, n int) []float32 {
	if len(samples) == n {
		return samples
	}
	if len(samples) > n {
		return samples[:n]
	}
	out := make([]float32, n)
	copy(out, samples)
	return out
}

// Distribution converts whisper's per-language-ID probability vector into a
// slice of code/probability pairs sorted by descending probability. Ties are
// broken by code so the order is deterministic.
func Distribution(probs []float32) []langid.LanguageProb {
	dist := make([]langid.LanguageProb, 0, len(probs))
	for id, prob := range probs {
		code := whisperlow.Whisper_lang_str(id)
		if code == "" {
			continue
		}
		dist = append(dist, langid.LanguageProb{Code: code, Prob: float64(prob)})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Prob != dist[j].Prob {
			return dist[i].Prob > dist[j].Prob
		}
		return dist[i].Code < dist[j].Code
	})
	return dist
}
