// Package worker manages scoped temporary directories for background tasks.
package worker

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Worker allocates per-task temporary directories under a configured root.
// A single Worker is safely shared across concurrent tasks because every
// allocation produces a distinct directory.
type Worker struct {
	tempRoot string
	logger   *slog.Logger
}

// New creates a Worker rooted at tempRoot, creating the root if needed.
// If tempRoot is empty, a directory under os.TempDir() is used.
func New(tempRoot string, logger *slog.Logger) (*Worker, error) {
	if tempRoot == "" {
		tempRoot = filepath.Join(os.TempDir(), "social-admin")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(tempRoot, 0750); err != nil {
		return nil, fmt.Errorf("worker: create temp root: %w", err)
	}

	return &Worker{tempRoot: tempRoot, logger: logger}, nil
}

// TempRoot returns the configured root directory.
func (w *Worker) TempRoot() string {
	return w.tempRoot
}

// TempDir creates a fresh task directory under the root and returns its path
// together with a cleanup function. The cleanup removes the whole tree and
// must run on every exit path (defer it immediately).
func (w *Worker) TempDir(prefix string) (string, func(), error) {
	if prefix == "" {
		prefix = "job-"
	}

	path, err := os.MkdirTemp(w.tempRoot, prefix)
	if err != nil {
		return "", nil, fmt.Errorf("worker: create task directory: %w", err)
	}

	w.logger.Info("created worker temporary directory",
		slog.String("path", path),
		slog.String("prefix", prefix),
	)

	cleanup := func() {
		if err := os.RemoveAll(path); err != nil {
			w.logger.Warn("failed to remove worker temporary directory",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return
		}
		w.logger.Info("cleaned up worker temporary directory",
			slog.String("path", path),
		)
	}

	return path, cleanup, nil
}

// Sweep removes leftover entries under the root, typically from runs that
// terminated before their cleanup ran.
func (w *Worker) Sweep() error {
	entries, err := os.ReadDir(w.tempRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("worker: read temp root: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		path := filepath.Join(w.tempRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("worker: remove leftover %s: %w", path, err)
			}
			continue
		}
		w.logger.Debug("removed leftover worker entry",
			slog.String("path", path),
		)
	}
	return firstErr
}
