package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is zero.
const (
	DefaultListenAddr    = ":8080"
	DefaultMaxConcurrent = 2
	DefaultArtifactDir   = "pretrained_models/accent_ecapa"
	DefaultRepoID        = "Jzuluaga/accent-id-commonaccent_ecapa"
	DefaultCacheDir      = "hf_cache"
	DefaultMinAudioBytes = 10 * 1024

	DefaultRescueLanguageFloor     = 0.1
	DefaultRescueAccentFloor       = 0.3
	DefaultRescueAssumedConfidence = 0.5
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies defaults and checks that cfg contains a coherent set of
// values. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("server.max_concurrent %d must be at least 1", cfg.Server.MaxConcurrent))
	}

	if cfg.Providers.LangID.ModelPath == "" {
		errs = append(errs, errors.New("providers.langid.model_path is required"))
	}
	if cfg.Providers.LangID.Threads < 0 {
		errs = append(errs, fmt.Errorf("providers.langid.threads %d must not be negative", cfg.Providers.LangID.Threads))
	}
	if cfg.Providers.Accent.BaseURL == "" {
		errs = append(errs, errors.New("providers.accent.base_url is required"))
	}

	if cfg.Pipeline.MinAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_audio_bytes %d must not be negative", cfg.Pipeline.MinAudioBytes))
	}
	r := cfg.Pipeline.Rescue
	if r.LanguageConfidenceFloor < 0 || r.LanguageConfidenceFloor > 1 {
		errs = append(errs, fmt.Errorf("pipeline.rescue.language_confidence_floor %.2f is out of range [0, 1]", r.LanguageConfidenceFloor))
	}
	if r.AccentScoreFloor < 0 || r.AccentScoreFloor > 1 {
		errs = append(errs, fmt.Errorf("pipeline.rescue.accent_score_floor %.2f is out of range [0, 1]", r.AccentScoreFloor))
	}
	if r.AssumedLanguageConfidence < 0 || r.AssumedLanguageConfidence > 1 {
		errs = append(errs, fmt.Errorf("pipeline.rescue.assumed_language_confidence %.2f is out of range [0, 1]", r.AssumedLanguageConfidence))
	}

	return errors.Join(errs...)
}

// applyDefaults fills zero-valued fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxConcurrent == 0 {
		cfg.Server.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = DefaultArtifactDir
	}
	if cfg.Artifacts.RepoID == "" {
		cfg.Artifacts.RepoID = DefaultRepoID
	}
	if cfg.Artifacts.CacheDir == "" {
		cfg.Artifacts.CacheDir = DefaultCacheDir
	}
	if cfg.Pipeline.MinAudioBytes == 0 {
		cfg.Pipeline.MinAudioBytes = DefaultMinAudioBytes
	}
	if cfg.Pipeline.Rescue.LanguageConfidenceFloor == 0 {
		cfg.Pipeline.Rescue.LanguageConfidenceFloor = DefaultRescueLanguageFloor
	}
	if cfg.Pipeline.Rescue.AccentScoreFloor == 0 {
		cfg.Pipeline.Rescue.AccentScoreFloor = DefaultRescueAccentFloor
	}
	if cfg.Pipeline.Rescue.AssumedLanguageConfidence == 0 {
		cfg.Pipeline.Rescue.AssumedLanguageConfidence = DefaultRescueAssumedConfidence
	}
}
