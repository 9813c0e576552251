package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Compile-time check that Local implements Storage.
var _ Storage = (*Local)(nil)

// Local stores files on the local filesystem under a fixed base path.
// Destination names are resolved relative to the base path and any resolved
// path escaping it is rejected.
type Local struct {
	basePath string
	logger   *slog.Logger
}

// NewLocal creates a Local store rooted at basePath, creating it if needed.
func NewLocal(basePath string, logger *slog.Logger) (*Local, error) {
	if basePath == "" {
		basePath = "media"
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, newError("resolve base path", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, newError("create base path", err)
	}

	return &Local{basePath: abs, logger: logger}, nil
}

// BasePath returns the absolute storage root.
func (l *Local) BasePath() string {
	return l.basePath
}

// Upload copies the source file under the base path and returns the relative
// key and a file:// URL.
func (l *Local) Upload(ctx context.Context, source, destinationName, contentType string) (Result, error) {
	_ = contentType // unused for local storage

	select {
	case <-ctx.Done():
		return Result{}, newError("context cancelled", ctx.Err())
	default:
	}

	if _, err := os.Stat(source); err != nil {
		return Result{}, newError(fmt.Sprintf("source file does not exist: %s", source), err)
	}

	dest, err := l.resolveDestination(destinationName, source)
	if err != nil {
		return Result{}, err
	}

	if err := copyFile(source, dest); err != nil {
		return Result{}, newError("copy file", err)
	}

	key, err := filepath.Rel(l.basePath, dest)
	if err != nil {
		return Result{}, newError("derive storage key", err)
	}

	l.logger.Info("stored file locally",
		slog.String("source", source),
		slog.String("key", key),
	)

	return Result{Key: key, URL: fileURL(dest)}, nil
}

// Delete removes the object under key. Missing objects are ignored; keys
// resolving outside the base path are rejected.
func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.resolveWithinRoot(key)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newError("delete local object", err)
	}

	l.logger.Info("deleted local storage object",
		slog.String("key", key),
	)
	return nil
}

// resolveDestination picks the final path for an upload, generating a random
// name from the source extension when destinationName is empty.
func (l *Local) resolveDestination(destinationName, source string) (string, error) {
	if destinationName == "" {
		destinationName = strings.ReplaceAll(uuid.New().String(), "-", "") + filepath.Ext(source)
	}
	if filepath.IsAbs(destinationName) {
		return "", newError("destination name must be relative when using local storage", nil)
	}

	final, err := l.resolveWithinRoot(destinationName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(final), 0750); err != nil {
		return "", newError("create destination directory", err)
	}
	return final, nil
}

// resolveWithinRoot joins name onto the base path and rejects escapes.
func (l *Local) resolveWithinRoot(name string) (string, error) {
	final := filepath.Clean(filepath.Join(l.basePath, name))
	if final != l.basePath && !strings.HasPrefix(final, l.basePath+string(filepath.Separator)) {
		return "", newError("destination escapes storage root", nil)
	}
	return final, nil
}

// copyFile copies src to dst preserving contents only.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - path validated by the caller
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 - path resolved within the storage root
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// fileURL builds a file-scheme URL for an absolute path.
func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
