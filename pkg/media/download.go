package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// userAgent is sent with every download request. Several video hosts refuse
// requests without a browser-like agent string.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// defaultDownloadTimeout bounds a single video download end to end.
const defaultDownloadTimeout = 60 * time.Second

// ErrEmptyDownload is returned when the server responds successfully but the
// body contains no bytes.
var ErrEmptyDownload = errors.New("media: downloaded file is empty")

// Compile-time assertion that HTTPDownloader implements Downloader.
var _ Downloader = (*HTTPDownloader)(nil)

// HTTPDownloadOption is a functional option for configuring an HTTPDownloader.
type HTTPDownloadOption func(*HTTPDownloader)

// WithDownloadClient replaces the default HTTP client. Mainly useful in tests.
func WithDownloadClient(c *http.Client) HTTPDownloadOption {
	return func(d *HTTPDownloader) {
		d.client = c
	}
}

// HTTPDownloader implements Downloader with a streaming HTTP GET. It is safe
// for concurrent use.
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates an HTTPDownloader with a 60 s overall timeout.
func NewHTTPDownloader(opts ...HTTPDownloadOption) *HTTPDownloader {
	d := &HTTPDownloader{
		client: &http.Client{Timeout: defaultDownloadTimeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Download streams url into destPath. Responses outside the 2xx range, network
// failures, and zero-byte bodies all fail the download.
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("media: create request for %q: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("media: fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("media: fetch %q: HTTP %d", url, resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("media: create %q: %w", destPath, err)
	}

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return fmt.Errorf("media: write %q: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("media: close %q: %w", destPath, err)
	}
	if written == 0 {
		return ErrEmptyDownload
	}

	slog.Debug("media: download complete", "url", url, "bytes", written)
	return nil
}
