// Package config provides the configuration schema, loader, and validation
// for the accentis service.
package config

// LogLevel controls log verbosity for the accentis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for accentis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings for the accentis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxConcurrent caps the number of pipeline runs executing at once.
	// Additional requests wait. Zero selects the default of 2 — the pipeline
	// stages are CPU- and disk-heavy, so wide concurrency buys nothing.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ArtifactsConfig describes where the accent model's artifacts live and how
// they are acquired at startup.
type ArtifactsConfig struct {
	// Dir is the permanent artifact directory.
	Dir string `yaml:"dir"`

	// RepoID is the model registry repository to fetch from when Dir is
	// missing or unusable.
	RepoID string `yaml:"repo_id"`

	// CacheDir is the persistent registry download cache.
	CacheDir string `yaml:"cache_dir"`

	// RegistryURL overrides the registry endpoint. Empty selects the public
	// registry; set it for mirrors and tests.
	RegistryURL string `yaml:"registry_url"`
}

// ProvidersConfig declares the two model backends.
type ProvidersConfig struct {
	LangID LangIDConfig `yaml:"langid"`
	Accent AccentConfig `yaml:"accent"`
}

// LangIDConfig configures the whisper.cpp language-identification backend.
type LangIDConfig struct {
	// ModelPath is the whisper ggml model file (e.g. "models/ggml-base.bin").
	ModelPath string `yaml:"model_path"`

	// Threads is the per-inference thread count. Zero lets the backend pick.
	Threads int `yaml:"threads"`
}

// AccentConfig configures the accent-classifier sidecar backend.
type AccentConfig struct {
	// BaseURL is the classifier sidecar address (e.g. "http://127.0.0.1:8575").
	BaseURL string `yaml:"base_url"`
}

// PipelineConfig holds the orchestrator's tunables.
type PipelineConfig struct {
	// WorkDir is the parent directory for per-request working areas.
	// Empty selects the system temp directory.
	WorkDir string `yaml:"work_dir"`

	// MinAudioBytes is the smallest extracted audio file accepted as
	// plausibly containing speech. Zero selects the default of 10240 (10 KiB)
	// — a heuristic floor, not a guarantee of valid speech.
	MinAudioBytes int64 `yaml:"min_audio_bytes"`

	// Rescue tunes the low-confidence rescue branch.
	Rescue RescueConfig `yaml:"rescue"`
}

// RescueConfig parameterises the branch that infers "probably English" from a
// confident accent match when language identification is inconclusive. The
// defaults reproduce observed behaviour but are heuristics that have not been
// empirically tuned; treat them as knobs, not truths.
type RescueConfig struct {
	// LanguageConfidenceFloor is the language confidence below which the
	// rescue branch is considered. Zero selects the default of 0.1.
	LanguageConfidenceFloor float64 `yaml:"language_confidence_floor"`

	// AccentScoreFloor is the accent score above which an uncertain language
	// is rescued as English. Zero selects the default of 0.3.
	AccentScoreFloor float64 `yaml:"accent_score_floor"`

	// AssumedLanguageConfidence is the language confidence reported for a
	// rescued result. Zero selects the default of 0.5.
	AssumedLanguageConfidence float64 `yaml:"assumed_language_confidence"`
}
