package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MinSamples is the smallest usable decode result: one second of audio at
// [ModelSampleRate]. Anything shorter is treated as a decode failure because
// the language model cannot work with it.
const MinSamples = ModelSampleRate

// ErrTooShort is returned when a decoded buffer holds less than one second
// of audio.
var ErrTooShort = errors.New("audio: decoded buffer shorter than one second")

// Loader turns a WAV file on disk into a model-ready sample buffer. It exists
// because decoding a freshly extracted file sometimes fails for reasons that
// have nothing to do with the audio itself — the file still being flushed, or
// path forms the OS resolves inconsistently. Load retries a small set of
// strategies before giving up.
//
// The zero value is ready to use. Loader is safe for concurrent use.
type Loader struct{}

// Load decodes the WAV file at path into mono 16 kHz float32 samples.
// Strategies, in order:
//
//  1. decode the file at the given path;
//  2. copy the file to a fresh uniquely-named sibling and decode the copy,
//     removing it afterwards;
//  3. decode via the normalised absolute path with forward-slash separators.
//
// The first strategy that yields at least [MinSamples] samples wins. When all
// fail, the last error is returned.
func (l *Loader) Load(path string) ([]float32, error) {
	samples, err := decodeChecked(path)
	if err == nil {
		return samples, nil
	}
	slog.Debug("audio: direct decode failed, retrying via copy", "path", path, "error", err)

	samples, copyErr := l.loadViaCopy(path)
	if copyErr == nil {
		return samples, nil
	}
	err = copyErr
	slog.Debug("audio: copy decode failed, retrying via absolute path", "path", path, "error", err)

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		return nil, fmt.Errorf("audio: resolve absolute path: %w (after %v)", absErr, err)
	}
	samples, absErr = decodeChecked(filepath.ToSlash(abs))
	if absErr == nil {
		return samples, nil
	}
	return nil, fmt.Errorf("audio: all decode strategies failed: %w", absErr)
}

// loadViaCopy copies the file next to itself under a unique name, decodes the
// copy, and removes it regardless of the outcome.
func (l *Loader) loadViaCopy(path string) ([]float32, error) {
	copyPath := filepath.Join(filepath.Dir(path), "decode-"+uuid.NewString()+".wav")
	if err := copyFile(path, copyPath); err != nil {
		return nil, err
	}
	defer os.Remove(copyPath)
	return decodeChecked(copyPath)
}

// decodeChecked decodes path and enforces the minimum-length post-condition.
func decodeChecked(path string) ([]float32, error) {
	samples, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: %d samples", ErrTooShort, len(samples))
	}
	return samples, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("audio: open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("audio: copy to %q: %w", dst, err)
	}
	return out.Close()
}
