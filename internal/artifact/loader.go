package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/accentis/accentis/internal/resilience"
)

// ErrModelLoad is the fatal error wrapping the fallback chain's last failure.
// It surfaces at startup only; the service never accepts requests without a
// loaded model.
var ErrModelLoad = errors.New("artifact: model load failed")

// Config describes where artifacts live and where they come from.
type Config struct {
	// Dir is the permanent artifact directory (e.g.
	// "pretrained_models/accent_ecapa").
	Dir string

	// RepoID is the registry repository holding the artifacts (e.g.
	// "Jzuluaga/accent-id-commonaccent_ecapa").
	RepoID string

	// CacheDir is the persistent registry cache used by the third tier.
	CacheDir string
}

// Loader acquires model artifacts through an ordered fallback chain:
//
//  1. load directly from Dir when it already exists and is non-empty;
//  2. fetch into an isolated temp directory, then replace Dir wholesale
//     (remove + copy) and load;
//  3. fetch into the persistent CacheDir, copy into Dir, and load;
//  4. fetch straight into Dir with no isolation and load.
//
// The chain mutates Dir destructively in tiers 2–4, so Load must never run
// concurrently with itself; a singleflight group collapses concurrent callers
// onto one in-flight load.
type Loader struct {
	cfg      Config
	registry *RegistryClient
	sf       singleflight.Group
}

// NewLoader creates a Loader. registry must be non-nil.
func NewLoader(cfg Config, registry *RegistryClient) *Loader {
	return &Loader{cfg: cfg, registry: registry}
}

// Load runs the fallback chain and returns the model handle. All four tiers
// failing is fatal: the returned error wraps [ErrModelLoad] and the chain's
// last underlying error.
func (l *Loader) Load(ctx context.Context) (*Handle, error) {
	v, err, _ := l.sf.Do("load", func() (any, error) {
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (l *Loader) load(ctx context.Context) (*Handle, error) {
	chain := resilience.NewChain("artifact-load",
		resilience.Step[*Handle]{Name: "local-dir", Run: l.loadLocal},
		resilience.Step[*Handle]{Name: "staged-download", Run: l.loadStaged},
		resilience.Step[*Handle]{Name: "registry-cache", Run: l.loadCached},
		resilience.Step[*Handle]{Name: "direct-download", Run: l.loadDirect},
	)
	h, err := chain.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	return h, nil
}

// loadLocal is tier 1: the permanent directory already holds artifacts.
func (l *Loader) loadLocal(_ context.Context) (*Handle, error) {
	return loadHandle(l.cfg.Dir)
}

// loadStaged is tier 2: download into an isolated temp directory, then swap
// it into place so a half-finished download can never corrupt Dir.
func (l *Loader) loadStaged(ctx context.Context) (*Handle, error) {
	tmp, err := os.MkdirTemp("", "accent-model-*")
	if err != nil {
		return nil, fmt.Errorf("artifact: create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := l.registry.Fetch(ctx, l.cfg.RepoID, tmp); err != nil {
		return nil, err
	}
	if err := replaceDir(tmp, l.cfg.Dir); err != nil {
		return nil, err
	}
	return loadHandle(l.cfg.Dir)
}

// loadCached is tier 3: fetch into the persistent cache, then copy into the
// permanent directory. A prior complete cache is reused without re-fetching.
func (l *Loader) loadCached(ctx context.Context) (*Handle, error) {
	cache := filepath.Join(l.cfg.CacheDir, cacheKey(l.cfg.RepoID))
	if _, err := loadHandle(cache); err != nil {
		if err := l.registry.Fetch(ctx, l.cfg.RepoID, cache); err != nil {
			return nil, err
		}
	}
	if err := replaceDir(cache, l.cfg.Dir); err != nil {
		return nil, err
	}
	return loadHandle(l.cfg.Dir)
}

// loadDirect is tier 4: the naive path — fetch straight into the permanent
// directory with no isolation or caching.
func (l *Loader) loadDirect(ctx context.Context) (*Handle, error) {
	if err := os.MkdirAll(l.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create %q: %w", l.cfg.Dir, err)
	}
	if err := l.registry.Fetch(ctx, l.cfg.RepoID, l.cfg.Dir); err != nil {
		return nil, err
	}
	return loadHandle(l.cfg.Dir)
}

// cacheKey flattens a repo ID into a single path component.
func cacheKey(repoID string) string {
	return strings.ReplaceAll(repoID, "/", "--")
}

// replaceDir removes dst and copies src's tree into its place.
func replaceDir(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("artifact: remove %q: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("artifact: create parent of %q: %w", dst, err)
	}
	return copyTree(src, dst)
}

// copyTree recursively copies the directory tree at src to dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("artifact: open %q: %w", path, err)
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("artifact: create %q: %w", target, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return fmt.Errorf("artifact: copy %q: %w", target, err)
		}
		return out.Close()
	})
}
