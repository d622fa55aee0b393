// Package ecapa provides an accent.Provider backed by a speechbrain ECAPA
// classifier served over HTTP.
//
// The classifier itself runs in a small sidecar process (see scripts/ in the
// repository root) that loads the model artifacts once and exposes a single
// POST /classify endpoint accepting a WAV file as multipart/form-data. This
// mirrors how local inference servers are consumed elsewhere in the codebase:
// the Go process owns orchestration and file handling while the model stays
// behind a plain HTTP boundary.
//
// Usage:
//
//	p, err := ecapa.New("http://127.0.0.1:8575",
//	    ecapa.WithModelDir("/var/lib/accentis/accent_ecapa"),
//	)
//	c, err := p.Classify(ctx, "/tmp/work/audio.wav")
package ecapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/accentis/accentis/pkg/provider/accent"
)

// Compile-time assertion that Provider implements accent.Provider.
var _ accent.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModelDir sets the artifact directory forwarded to the sidecar with every
// request. The sidecar loads (and caches) the model from this directory; when
// empty the sidecar uses whichever model it was started with.
func WithModelDir(dir string) Option {
	return func(p *Provider) {
		p.modelDir = dir
	}
}

// WithHTTPClient replaces the default HTTP client. Mainly useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements accent.Provider against a classifier sidecar at a fixed
// base URL. It holds no mutable state and is safe for concurrent use.
type Provider struct {
	baseURL    string
	modelDir   string
	httpClient *http.Client
}

// New creates a Provider that talks to the classifier sidecar at baseURL
// (e.g., "http://127.0.0.1:8575"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("ecapa: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Classify uploads the audio file at audioPath to the sidecar and returns the
// decoded classification. Up to three representations of the same path are
// tried in order — as given, absolute, and absolute with forward-slash
// separators — because temp-directory paths have proven fragile across
// platforms. The as-given path is skipped when it does not exist. When every
// attempt fails the last error is returned.
func (p *Provider) Classify(ctx context.Context, audioPath string) (accent.Classification, error) {
	var lastErr error
	for i, candidate := range pathCandidates(audioPath) {
		if i == 0 {
			if _, err := os.Stat(candidate); err != nil {
				lastErr = fmt.Errorf("ecapa: stat %q: %w", candidate, err)
				continue
			}
		}
		c, err := p.classifyPath(ctx, candidate)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return accent.Classification{}, lastErr
}

// classifyPath performs one inference round-trip for a concrete path.
func (p *Provider) classifyPath(ctx context.Context, path string) (accent.Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: open %q: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: read audio file: %w", err)
	}
	if p.modelDir != "" {
		if err := mw.WriteField("model_dir", p.modelDir); err != nil {
			return accent.Classification{}, fmt.Errorf("ecapa: write model_dir field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: close multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/classify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return accent.Classification{}, fmt.Errorf("ecapa: sidecar returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: read response body: %w", err)
	}

	var result struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return accent.Classification{}, fmt.Errorf("ecapa: parse JSON response: %w", err)
	}
	if result.Label == "" {
		return accent.Classification{}, errors.New("ecapa: sidecar returned no label")
	}

	return accent.Classification{
		Code:    result.Label,
		Name:    accent.DisplayName(result.Label),
		Score:   result.Score,
		Percent: accent.Percent(result.Score),
	}, nil
}

// pathCandidates returns the representations of path that Classify attempts,
// in order: as given, absolute, and absolute with forward-slash separators.
// Duplicates are collapsed so each distinct form is tried at most once, but
// the as-given entry is always kept first so its existence check applies.
func pathCandidates(path string) []string {
	candidates := []string{path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return candidates
	}
	if abs != path {
		candidates = append(candidates, abs)
	}
	slashed := filepath.ToSlash(abs)
	if slashed != abs && slashed != path {
		candidates = append(candidates, slashed)
	}
	return candidates
}
