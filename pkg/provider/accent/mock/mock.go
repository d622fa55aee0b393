// Package mock provides a test double for the accent package interfaces.
//
// Use Provider to script classification outcomes and inspect which audio
// paths the caller submitted:
//
//	p := &mock.Provider{
//	    Result: accent.Classification{Code: "us", Name: "American", Score: 0.7, Percent: 70.0},
//	}
//	c, err := p.Classify(ctx, "/tmp/audio.wav")
package mock

import (
	"context"
	"sync"

	"github.com/accentis/accentis/pkg/provider/accent"
)

// ClassifyCall records a single invocation of Provider.Classify.
type ClassifyCall struct {
	// Ctx is the context passed to Classify.
	Ctx context.Context
	// AudioPath is the path passed to Classify.
	AudioPath string
}

// Provider is a mock implementation of accent.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Classify when Err is nil.
	Result accent.Classification

	// Err, if non-nil, is returned as the error from Classify.
	Err error

	// Calls records every call to Classify.
	Calls []ClassifyCall
}

// Classify records the call and returns Result, Err.
func (p *Provider) Classify(ctx context.Context, audioPath string) (accent.Classification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, ClassifyCall{Ctx: ctx, AudioPath: audioPath})
	if p.Err != nil {
		return accent.Classification{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of recorded Classify calls. Thread-safe.
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

// Compile-time assertion that Provider implements accent.Provider.
var _ accent.Provider = (*Provider)(nil)
