// Package reprocess re-runs persisted jobs so operators can inspect their
// status and failures. It validates each job's media references and drives
// the job through its lifecycle, writing a replayable log per job.
package reprocess

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ehking/social-admin/internal/httpx"
	"github.com/ehking/social-admin/internal/job"
)

// MediaValidator confirms that a job's media references are accessible.
// Remote URLs are probed with HEAD, falling back to a status-only GET when
// the server rejects HEAD; local paths are checked for existence.
type MediaValidator struct {
	client  *httpx.Client
	timeout time.Duration
}

// NewMediaValidator creates a validator using the given retrying client.
func NewMediaValidator(client *httpx.Client, timeout time.Duration) *MediaValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MediaValidator{client: client, timeout: timeout}
}

// Validate checks one media reference. On success it returns a context map
// for logging; on failure it returns a job.ProcessingError with a stable code.
func (v *MediaValidator) Validate(ctx context.Context, media *job.JobMedia) (map[string]any, error) {
	source := media.Source()
	if source == "" {
		return nil, job.NewProcessingError(
			"media entry does not have an accessible URL",
			job.CodeMissingURL,
			map[string]any{"media_id": media.ID},
		)
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return v.checkRemote(ctx, source, media)
	}

	return v.checkLocal(source, media)
}

// checkRemote probes the URL with HEAD and falls back to GET when the server
// answers 405 or 501.
func (v *MediaValidator) checkRemote(ctx context.Context, url string, media *job.JobMedia) (map[string]any, error) {
	resp, err := v.client.Do(ctx, http.MethodHead, url, httpx.RequestOptions{Timeout: v.timeout})
	if err != nil {
		if status, ok := statusOf(err); ok {
			if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
				return v.checkRemoteWithGet(ctx, url, media)
			}
			return nil, badStatusError(media, url, status, http.MethodHead)
		}
		return nil, networkError(media, url, err)
	}
	status := resp.StatusCode
	_ = resp.Body.Close()

	return map[string]any{
		"media_id":    media.ID,
		"media_url":   url,
		"status_code": status,
		"method":      http.MethodHead,
	}, nil
}

// checkRemoteWithGet is the fallback when remote servers reject HEAD requests.
// Only the status is inspected; the body is closed without reading.
func (v *MediaValidator) checkRemoteWithGet(ctx context.Context, url string, media *job.JobMedia) (map[string]any, error) {
	resp, err := v.client.Do(ctx, http.MethodGet, url, httpx.RequestOptions{Timeout: v.timeout})
	if err != nil {
		if status, ok := statusOf(err); ok {
			return nil, badStatusError(media, url, status, http.MethodGet)
		}
		return nil, networkError(media, url, err)
	}
	status := resp.StatusCode
	_ = resp.Body.Close()

	return map[string]any{
		"media_id":    media.ID,
		"media_url":   url,
		"status_code": status,
		"method":      http.MethodGet,
	}, nil
}

// checkLocal resolves a filesystem reference, honoring the file:// prefix
// and resolving relative paths against the working directory.
func (v *MediaValidator) checkLocal(source string, media *job.JobMedia) (map[string]any, error) {
	path := strings.TrimPrefix(source, "file://")
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, job.NewProcessingError(
			"referenced media file does not exist",
			job.CodeMissingFile,
			map[string]any{"media_id": media.ID, "path": path},
		)
	}

	return map[string]any{
		"media_id":      media.ID,
		"media_url":     source,
		"resolved_path": path,
	}, nil
}

// statusOf extracts the HTTP status from a request error, when one was
// received at all.
func statusOf(err error) (int, bool) {
	var re *httpx.RequestError
	if errors.As(err, &re) && re.Status > 0 {
		return re.Status, true
	}
	return 0, false
}

func badStatusError(media *job.JobMedia, url string, status int, method string) error {
	return job.NewProcessingError(
		"remote media URL responded with an error",
		job.CodeBadStatus,
		map[string]any{
			"media_id":    media.ID,
			"media_url":   url,
			"status_code": status,
			"method":      method,
		},
	)
}

func networkError(media *job.JobMedia, url string, err error) error {
	return job.NewProcessingError(
		"unable to reach remote media URL",
		job.CodeNetworkError,
		map[string]any{"media_id": media.ID, "media_url": url, "error": err.Error()},
	)
}
