package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultRegistryURL is the public model registry the artifacts are published
// on. Overridable for mirrors and tests.
const DefaultRegistryURL = "https://huggingface.co"

// registryTimeout bounds a single file download. Model checkpoints run to
// tens of MB, so this is generous.
const registryTimeout = 5 * time.Minute

// RegistryOption is a functional option for configuring a RegistryClient.
type RegistryOption func(*RegistryClient)

// WithRegistryHTTPClient replaces the default HTTP client. Mainly useful in tests.
func WithRegistryHTTPClient(c *http.Client) RegistryOption {
	return func(r *RegistryClient) {
		r.client = c
	}
}

// RegistryClient fetches model artifacts from a Hugging-Face-style registry:
// the file list comes from the tree API and individual files are downloaded
// through resolve URLs. It is safe for concurrent use.
type RegistryClient struct {
	baseURL string
	client  *http.Client
}

// NewRegistryClient creates a client for the registry at baseURL; an empty
// baseURL selects [DefaultRegistryURL].
func NewRegistryClient(baseURL string, opts ...RegistryOption) *RegistryClient {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	r := &RegistryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: registryTimeout},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// treeEntry is one entry of the registry's tree listing.
type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Fetch downloads every file of repoID's main revision into destDir,
// preserving relative paths. destDir is created if needed. Partial state may
// remain in destDir after an error; callers isolate destinations accordingly.
func (r *RegistryClient) Fetch(ctx context.Context, repoID, destDir string) error {
	files, err := r.listFiles(ctx, repoID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("artifact: registry repo %q lists no files", repoID)
	}

	for _, path := range files {
		if err := r.fetchFile(ctx, repoID, path, destDir); err != nil {
			return err
		}
	}
	slog.Info("artifact: registry fetch complete", "repo", repoID, "files", len(files), "dest", destDir)
	return nil
}

// listFiles returns the relative paths of all regular files in the repo.
func (r *RegistryClient) listFiles(ctx context.Context, repoID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/models/%s/tree/main?recursive=true", r.baseURL, repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact: create tree request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact: list %q: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact: list %q: HTTP %d", repoID, resp.StatusCode)
	}

	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("artifact: decode tree listing: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type == "file" && e.Path != "" {
			files = append(files, e.Path)
		}
	}
	return files, nil
}

// fetchFile downloads one repo file into destDir, creating parent directories
// as needed.
func (r *RegistryClient) fetchFile(ctx context.Context, repoID, path, destDir string) error {
	url := fmt.Sprintf("%s/%s/resolve/main/%s", r.baseURL, repoID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("artifact: create download request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("artifact: download %q: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact: download %q: HTTP %d", path, resp.StatusCode)
	}

	dest := filepath.Join(destDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("artifact: create dir for %q: %w", dest, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("artifact: create %q: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("artifact: write %q: %w", dest, err)
	}
	return f.Close()
}
