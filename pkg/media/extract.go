package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// extractSampleRate and friends pin the output format to what the language
// model expects: mono 16 kHz 16-bit PCM WAV.
const (
	extractSampleRate = "16000"
	extractChannels   = "1"
	extractCodec      = "pcm_s16le"
)

// minExtractBytes rejects outputs that cannot possibly contain audio — a bare
// WAV header is 44 bytes; anything near that means ffmpeg produced silence.
const minExtractBytes = 1000

// ErrNoAudioProduced is returned when ffmpeg exits successfully but the output
// file is missing or trivially small.
var ErrNoAudioProduced = errors.New("media: extraction produced no usable audio")

// Compile-time assertion that FFmpegExtractor implements Extractor.
var _ Extractor = (*FFmpegExtractor)(nil)

// FFmpegExtractorOption is a functional option for configuring an FFmpegExtractor.
type FFmpegExtractorOption func(*FFmpegExtractor)

// WithFFmpegPath overrides the ffmpeg binary name or path. Defaults to
// "ffmpeg", resolved via PATH.
func WithFFmpegPath(path string) FFmpegExtractorOption {
	return func(e *FFmpegExtractor) {
		e.ffmpegPath = path
	}
}

// FFmpegExtractor implements Extractor by invoking ffmpeg as a subprocess.
// It is safe for concurrent use; each Extract call runs its own process.
type FFmpegExtractor struct {
	ffmpegPath string
}

// NewFFmpegExtractor creates an FFmpegExtractor using the "ffmpeg" binary
// found on PATH unless overridden.
func NewFFmpegExtractor(opts ...FFmpegExtractorOption) *FFmpegExtractor {
	e := &FFmpegExtractor{ffmpegPath: "ffmpeg"}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs ffmpeg to demux and transcode the audio track of videoPath
// into audioPath. The last stderr line is folded into the returned error so
// log readers see ffmpeg's own diagnosis (e.g. "does not contain any stream").
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, extractArgs(videoPath, audioPath)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("media: create ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("media: start ffmpeg: %w", err)
	}

	var lastErrLine string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lastErrLine = line
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("media: ffmpeg cancelled: %w", ctx.Err())
		}
		if lastErrLine != "" {
			return fmt.Errorf("media: ffmpeg failed: %s", lastErrLine)
		}
		return fmt.Errorf("media: ffmpeg failed: %w", err)
	}

	info, err := os.Stat(audioPath)
	if err != nil || info.Size() < minExtractBytes {
		return ErrNoAudioProduced
	}

	slog.Debug("media: audio extracted", "video", videoPath, "audio", audioPath, "bytes", info.Size())
	return nil
}

// extractArgs builds the ffmpeg argument list for a video → WAV conversion.
func extractArgs(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ar", extractSampleRate,
		"-ac", extractChannels,
		"-acodec", extractCodec,
		"-f", "wav",
		audioPath,
	}
}
