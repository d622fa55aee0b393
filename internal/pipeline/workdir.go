package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WorkingArea is the scoped temporary directory one in-flight Process call
// owns. It holds the downloaded video, the extracted audio, and any ephemeral
// decode-retry copies, and is removed on every exit path.
type WorkingArea struct {
	dir string
	id  string
}

// NewWorkingArea creates a uniquely named working directory under root
// (the system temp directory when root is empty).
func NewWorkingArea(root string) (*WorkingArea, error) {
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, "accentis-"+id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("pipeline: create working area: %w", err)
	}
	return &WorkingArea{dir: dir, id: id}, nil
}

// ID is the unique identifier of this working area, doubling as the run ID
// in progress events.
func (w *WorkingArea) ID() string { return w.id }

// Dir is the working directory path.
func (w *WorkingArea) Dir() string { return w.dir }

// VideoPath is where the downloaded video is stored.
func (w *WorkingArea) VideoPath() string { return filepath.Join(w.dir, "video.mp4") }

// AudioPath is where the extracted audio is stored.
func (w *WorkingArea) AudioPath() string { return filepath.Join(w.dir, "audio.wav") }

// Cleanup removes the working directory and everything in it. Safe to call
// multiple times.
func (w *WorkingArea) Cleanup() error {
	return os.RemoveAll(w.dir)
}
