package trending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ehking/social-admin/internal/httpx"
)

// ErrInvalidConcurrency is returned when a download manager is created with a
// concurrency bound below 1.
var ErrInvalidConcurrency = errors.New("trending: max concurrency must be at least 1")

// downloadChunkSize is the copy buffer used while streaming previews to disk.
const downloadChunkSize = 8 * 1024

// DownloadManager streams audio previews to disk while capping how many
// downloads run at once. Construct one per process and inject it wherever
// previews are fetched; the bound is shared across all callers of the same
// manager.
type DownloadManager struct {
	client         *httpx.Client
	sem            *semaphore.Weighted
	maxConcurrency int
	timeout        time.Duration
	logger         *slog.Logger
}

// DownloadOption configures a DownloadManager.
type DownloadOption func(*DownloadManager)

// WithDownloadTimeout sets the per-preview request timeout.
func WithDownloadTimeout(d time.Duration) DownloadOption {
	return func(m *DownloadManager) {
		m.timeout = d
	}
}

// WithDownloadLogger sets the structured logger.
func WithDownloadLogger(logger *slog.Logger) DownloadOption {
	return func(m *DownloadManager) {
		m.logger = logger
	}
}

// NewDownloadManager creates a manager that allows at most maxConcurrency
// simultaneous downloads.
func NewDownloadManager(client *httpx.Client, maxConcurrency int, opts ...DownloadOption) (*DownloadManager, error) {
	if maxConcurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrency)
	}

	m := &DownloadManager{
		client:         client,
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
		maxConcurrency: maxConcurrency,
		timeout:        10 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MaxConcurrency returns the configured concurrency bound.
func (m *DownloadManager) MaxConcurrency() int {
	return m.maxConcurrency
}

// Download fetches the track's preview to destination, creating parent
// directories as needed. It blocks while the concurrency bound is saturated.
func (m *DownloadManager) Download(ctx context.Context, track Track, destination string) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("trending: acquire download slot: %w", err)
	}
	defer m.sem.Release(1)

	return m.fetch(ctx, track, destination)
}

// fetch performs one preview download without touching the semaphore.
func (m *DownloadManager) fetch(ctx context.Context, track Track, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0750); err != nil {
		return fmt.Errorf("trending: create download directory: %w", err)
	}

	m.logger.Info("downloading preview",
		slog.String("track", track.DisplayName()),
		slog.String("url", track.PreviewURL),
		slog.String("destination", destination),
	)

	resp, err := m.client.Do(ctx, "GET", track.PreviewURL, httpx.RequestOptions{Timeout: m.timeout})
	if err != nil {
		return fmt.Errorf("trending: download preview for %q: %w", track.DisplayName(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := os.Create(destination) // #nosec G304 - destination is built from the worker temp dir
	if err != nil {
		return fmt.Errorf("trending: create preview file: %w", err)
	}

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(out, resp.Body, buf); err != nil {
		_ = out.Close()
		_ = os.Remove(destination)
		return fmt.Errorf("trending: stream preview to %s: %w", destination, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("trending: close preview file: %w", err)
	}
	return nil
}

// DownloadAll fetches every track's preview into dir and returns the written
// paths in track order. Downloads run concurrently under the manager's bound;
// the first failure cancels the remaining ones.
func (m *DownloadManager) DownloadAll(ctx context.Context, tracks []Track, dir string) ([]string, error) {
	paths := make([]string, len(tracks))

	g, ctx := errgroup.WithContext(ctx)
	for i, track := range tracks {
		track := track
		destination := filepath.Join(dir, fmt.Sprintf("%02d-%s.m4a", i+1, sanitizeFilename(track.DisplayName())))
		paths[i] = destination

		g.Go(func() error {
			return m.Download(ctx, track, destination)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
