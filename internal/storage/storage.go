// Package storage persists generated media under pluggable backends.
// It defines the Storage interface (port) and implementations for the
// local filesystem and S3-compatible object stores.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ehking/social-admin/internal/config"
)

// Result describes a stored object.
type Result struct {
	// Key is the backend-relative object key.
	Key string
	// URL is a retrievable reference to the object, empty when the backend
	// cannot produce one.
	URL string
}

// Error is the single error kind returned by storage operations. The message
// distinguishes missing sources, root escapes, and backend failures.
type Error struct {
	Msg string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Msg, e.Err)
	}
	return "storage: " + e.Msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(msg string, err error) *Error {
	return &Error{Msg: msg, Err: err}
}

// Storage defines the contract consumed by the media pipelines.
type Storage interface {
	// Upload persists the file at source and returns its key and URL.
	// destinationName is optional; a random name derived from the source
	// extension is generated when empty. contentType is a hint that local
	// backends may ignore.
	Upload(ctx context.Context, source, destinationName, contentType string) (Result, error)

	// Delete removes the object stored under key. Deleting a key that does
	// not exist is not an error.
	Delete(ctx context.Context, key string) error
}

// NewFromConfig selects and constructs the configured storage backend.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.StorageBackend {
	case "local":
		store, err := NewLocal(cfg.StorageLocalPath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("local storage configured",
			slog.String("base_path", store.BasePath()),
		)
		return store, nil
	case "s3":
		store, err := NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("prefix", cfg.S3Prefix),
			slog.String("region", cfg.S3Region),
		)
		return store, nil
	default:
		return nil, newError(fmt.Sprintf("unsupported storage backend %q", cfg.StorageBackend), nil)
	}
}
