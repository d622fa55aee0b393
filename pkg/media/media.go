// Package media provides the two I/O collaborators the processing pipeline
// calls out to: downloading a remote video to a local file and extracting its
// audio track as a mono 16 kHz WAV.
//
// Both are deliberately thin — the pipeline treats any returned error as
// "this stage failed" and folds it into the result record, so implementations
// should wrap underlying causes but not retry endlessly.
package media

import "context"

// Downloader fetches a remote video into a local file.
type Downloader interface {
	// Download fetches url into destPath. The destination file may exist in a
	// partial state after an error; callers own the enclosing directory and
	// remove it wholesale.
	Download(ctx context.Context, url, destPath string) error
}

// Extractor produces a mono 16 kHz 16-bit PCM WAV from a video file.
type Extractor interface {
	// Extract reads the video at videoPath and writes its audio track to
	// audioPath. An error is returned when the video is unreadable or carries
	// no audio track.
	Extract(ctx context.Context, videoPath, audioPath string) error
}
