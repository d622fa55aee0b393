// Command accentis is the main entry point for the accentis accent-analysis
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/accentis/accentis/internal/api"
	"github.com/accentis/accentis/internal/artifact"
	"github.com/accentis/accentis/internal/config"
	"github.com/accentis/accentis/internal/health"
	"github.com/accentis/accentis/internal/observe"
	"github.com/accentis/accentis/internal/pipeline"
	"github.com/accentis/accentis/pkg/media"
	"github.com/accentis/accentis/pkg/provider/accent/ecapa"
	"github.com/accentis/accentis/pkg/provider/langid/whispercpp"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "accentis: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "accentis: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("accentis starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "accentis",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Accent model artifacts ────────────────────────────────────────────────
	registry := artifact.NewRegistryClient(cfg.Artifacts.RegistryURL)
	artifacts := artifact.NewLoader(artifact.Config{
		Dir:      cfg.Artifacts.Dir,
		RepoID:   cfg.Artifacts.RepoID,
		CacheDir: cfg.Artifacts.CacheDir,
	}, registry)

	loadStart := time.Now()
	handle, err := artifacts.Load(ctx)
	if err != nil {
		slog.Error("failed to acquire accent model artifacts", "err", err)
		return 1
	}
	if metrics.ArtifactLoadDuration != nil {
		metrics.ArtifactLoadDuration.Record(ctx, time.Since(loadStart).Seconds(),
			metric.WithAttributes(observe.StatusAttr("ok")))
	}
	slog.Info("accent model artifacts ready",
		"dir", handle.Dir,
		"labels", len(handle.Labels),
		"elapsed", time.Since(loadStart),
	)

	// ── Providers ─────────────────────────────────────────────────────────────
	langID, err := whispercpp.New(cfg.Providers.LangID.ModelPath,
		whispercpp.WithThreads(cfg.Providers.LangID.Threads))
	if err != nil {
		slog.Error("failed to load whisper model", "err", err, "model", cfg.Providers.LangID.ModelPath)
		return 1
	}
	defer langID.Close()

	accentProv, err := ecapa.New(cfg.Providers.Accent.BaseURL, ecapa.WithModelDir(handle.Dir))
	if err != nil {
		slog.Error("failed to configure accent classifier", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	hub := api.NewEventHub()
	orchestrator := pipeline.New(
		media.NewHTTPDownloader(),
		media.NewFFmpegExtractor(),
		langID,
		accentProv,
		pipeline.WithEventSink(pipeline.MultiSink{pipeline.LogSink{}, hub}),
		pipeline.WithMetrics(metrics),
		pipeline.WithWorkRoot(cfg.Pipeline.WorkDir),
		pipeline.WithMinAudioBytes(cfg.Pipeline.MinAudioBytes),
		pipeline.WithRescueTuning(pipeline.RescueTuning{
			LanguageConfidenceFloor:   cfg.Pipeline.Rescue.LanguageConfidenceFloor,
			AccentScoreFloor:          cfg.Pipeline.Rescue.AccentScoreFloor,
			AssumedLanguageConfidence: cfg.Pipeline.Rescue.AssumedLanguageConfidence,
		}),
	)

	// ── HTTP server ───────────────────────────────────────────────────────────
	healthHandler := health.New(
		health.Sidecar(cfg.Providers.Accent.BaseURL, nil),
		health.FFmpeg(""),
		health.ArtifactDir(handle.Dir),
	)
	server := api.New(cfg.Server.ListenAddr, orchestrator, healthHandler,
		api.WithMetrics(metrics),
		api.WithMaxConcurrent(cfg.Server.MaxConcurrent),
		api.WithEventHub(hub),
	)

	printStartupSummary(cfg, handle)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("accentis stopped")
	return 0
}

// ── Startup summary ────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, handle *artifact.Handle) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         accentis — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Whisper model", cfg.Providers.LangID.ModelPath)
	printRow("Accent sidecar", cfg.Providers.Accent.BaseURL)
	printRow("Model dir", handle.Dir)
	printRow("Accent labels", fmt.Sprintf("%d", len(handle.Labels)))
	printRow("Max concurrent", fmt.Sprintf("%d", cfg.Server.MaxConcurrent))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, truncateValue(value))
}

// truncateValue shortens long values on a rune boundary so a multibyte
// character is never split mid-sequence.
func truncateValue(value string) string {
	runes := []rune(value)
	if len(runes) <= 19 {
		return value
	}
	return string(runes[:16]) + "…"
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
