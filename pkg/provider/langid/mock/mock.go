// Package mock provides a test double for the langid package interfaces.
//
// Use Provider to script detection outcomes and count Detect invocations:
//
//	p := &mock.Provider{
//	    Result: langid.Certain(langid.Detection{Code: "en", Confidence: 0.9}),
//	}
//	res := p.Detect(ctx, samples)
package mock

import (
	"context"
	"sync"

	"github.com/accentis/accentis/pkg/provider/langid"
)

// DetectCall records a single invocation of Provider.Detect.
type DetectCall struct {
	// Ctx is the context passed to Detect.
	Ctx context.Context
	// SampleCount is the length of the sample buffer passed to Detect.
	SampleCount int
}

// Provider is a mock implementation of langid.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Detect call. The zero value is the
	// uncertain Result.
	Result langid.Result

	// Calls records every call to Detect.
	Calls []DetectCall
}

// Detect records the call and returns Result.
func (p *Provider) Detect(ctx context.Context, samples []float32) langid.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, DetectCall{Ctx: ctx, SampleCount: len(samples)})
	return p.Result
}

// CallCount returns the number of recorded Detect calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Compile-time assertion that Provider implements langid.Provider.
var _ langid.Provider = (*Provider)(nil)
