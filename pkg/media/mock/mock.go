// Package mock provides test doubles for the media package interfaces.
//
// Both doubles record their calls so orchestrator tests can assert which
// stages ran. By default they "succeed" by writing a small placeholder file
// to the destination path, which keeps downstream size checks meaningful.
package mock

import (
	"context"
	"os"
	"sync"
)

// DownloadCall records a single invocation of Downloader.Download.
type DownloadCall struct {
	URL      string
	DestPath string
}

// Downloader is a mock implementation of media.Downloader.
type Downloader struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from Download without writing anything.
	Err error

	// Content is written to DestPath on success. Defaults to a small
	// placeholder when nil.
	Content []byte

	// Calls records every call to Download.
	Calls []DownloadCall
}

// Download records the call, then writes Content to destPath unless Err is set.
func (d *Downloader) Download(_ context.Context, url, destPath string) error {
	d.mu.Lock()
	d.Calls = append(d.Calls, DownloadCall{URL: url, DestPath: destPath})
	content := d.Content
	err := d.Err
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if content == nil {
		content = []byte("video-bytes")
	}
	return os.WriteFile(destPath, content, 0o644)
}

// CallCount returns the number of recorded Download calls. Thread-safe.
func (d *Downloader) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

// ExtractCall records a single invocation of Extractor.Extract.
type ExtractCall struct {
	VideoPath string
	AudioPath string
}

// Extractor is a mock implementation of media.Extractor.
type Extractor struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from Extract without writing anything.
	Err error

	// Content is written to AudioPath on success. Tests size it to steer the
	// pipeline's audio validation.
	Content []byte

	// Calls records every call to Extract.
	Calls []ExtractCall
}

// Extract records the call, then writes Content to audioPath unless Err is set.
func (e *Extractor) Extract(_ context.Context, videoPath, audioPath string) error {
	e.mu.Lock()
	e.Calls = append(e.Calls, ExtractCall{VideoPath: videoPath, AudioPath: audioPath})
	content := e.Content
	err := e.Err
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if content == nil {
		content = []byte("audio-bytes")
	}
	return os.WriteFile(audioPath, content, 0o644)
}

// CallCount returns the number of recorded Extract calls. Thread-safe.
func (e *Extractor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
