package trending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehking/social-admin/internal/job"
	"github.com/ehking/social-admin/internal/joblog"
	"github.com/ehking/social-admin/internal/storage"
	"github.com/ehking/social-admin/internal/worker"
)

// Static errors for pipeline construction.
var (
	// ErrDownloadManagerRequired is returned when no download manager is provided.
	ErrDownloadManagerRequired = errors.New("trending: download manager is required")
	// ErrRendererRequired is returned when no renderer is provided.
	ErrRendererRequired = errors.New("trending: renderer is required")
	// ErrStorageRequired is returned when no storage backend is provided.
	ErrStorageRequired = errors.New("trending: storage is required")
	// ErrWorkerRequired is returned when no worker is provided.
	ErrWorkerRequired = errors.New("trending: worker is required")
)

// GenerateInput describes one video generation request.
type GenerateInput struct {
	// Track supplies the audio preview and the display name used in captions.
	Track Track
	// CaptionTemplate is rendered by replacing {track} with the display name.
	CaptionTemplate string
	// OutputPath, when set, receives a local copy of the rendered video.
	OutputPath string
	// Translate routes the caption through the configured translator.
	Translate bool
	// JobName overrides the media registration name. A deterministic name
	// derived from the track is used when empty.
	JobName string
}

// GeneratedMedia describes the artifact produced by one pipeline run.
type GeneratedMedia struct {
	StorageKey string
	StorageURL string
	// JobMediaID is the registered media row ID, zero when no repository was
	// configured.
	JobMediaID int64
	// LocalPath is the local copy destination, empty when none was requested.
	LocalPath string
	// LogPath points at the per-run job log file.
	LogPath string
}

// Pipeline generates captioned trend videos: it downloads the preview,
// renders the video, uploads it, and registers the media row. All
// collaborators are injected.
type Pipeline struct {
	downloads  *DownloadManager
	renderer   Renderer
	translator Translator
	store      storage.Storage
	repo       job.Repository
	worker     *worker.Worker
	logDir     string
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTranslator sets the caption translator. Defaults to IdentityTranslator.
func WithTranslator(t Translator) PipelineOption {
	return func(p *Pipeline) {
		p.translator = t
	}
}

// WithRepository enables media registration against the given repository.
// Without one, generated media is uploaded but not recorded.
func WithRepository(repo job.Repository) PipelineOption {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

// WithLogDir sets the directory for per-run job logs.
func WithLogDir(dir string) PipelineOption {
	return func(p *Pipeline) {
		p.logDir = dir
	}
}

// WithPipelineLogger sets the structured logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline from its required collaborators.
func NewPipeline(downloads *DownloadManager, renderer Renderer, store storage.Storage, w *worker.Worker, opts ...PipelineOption) (*Pipeline, error) {
	if downloads == nil {
		return nil, ErrDownloadManagerRequired
	}
	if renderer == nil {
		return nil, ErrRendererRequired
	}
	if store == nil {
		return nil, ErrStorageRequired
	}
	if w == nil {
		return nil, ErrWorkerRequired
	}

	p := &Pipeline{
		downloads:  downloads,
		renderer:   renderer,
		translator: IdentityTranslator{},
		store:      store,
		worker:     w,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate produces, uploads, and registers a captioned video for the track.
// Failures after the upload remove the uploaded object before returning; the
// cleanup is best-effort and the original error always propagates.
func (p *Pipeline) Generate(ctx context.Context, input GenerateInput) (GeneratedMedia, error) {
	captionValue := strings.ReplaceAll(input.CaptionTemplate, "{track}", input.Track.DisplayName())

	caption := captionValue
	if input.Translate {
		translated, err := p.translator.Translate(ctx, captionValue)
		if err != nil {
			return GeneratedMedia{}, fmt.Errorf("trending: translate caption: %w", err)
		}
		caption = translated
	}

	jobName := input.JobName
	if jobName == "" {
		jobName = defaultJobName(input.Track)
	}
	outputName := deriveOutputName(input.OutputPath, input.Track)

	logCtx, err := joblog.Open(p.logDir, joblog.Options{
		Extra: []slog.Attr{
			slog.String("job_name", jobName),
			slog.String("track_display_name", input.Track.DisplayName()),
			slog.String("track_preview_url", input.Track.PreviewURL),
			slog.String("output_name", outputName),
			slog.Bool("translate", input.Translate),
		},
	})
	if err != nil {
		return GeneratedMedia{}, fmt.Errorf("trending: open job log: %w", err)
	}
	defer func() { _ = logCtx.Close() }()
	jobLogger := logCtx.Logger

	jobLogger.Info("caption_resolved",
		slog.String("stage", "prepare_caption"),
		slog.String("caption_template", input.CaptionTemplate),
		slog.String("caption_value", captionValue),
	)

	tempDir, cleanup, err := p.worker.TempDir("trend-video-")
	if err != nil {
		return GeneratedMedia{}, fmt.Errorf("trending: prepare workspace: %w", err)
	}
	defer cleanup()
	jobLogger.Info("worker_directory_ready",
		slog.String("stage", "prepare_workspace"),
		slog.String("path", tempDir),
	)

	audioPath := filepath.Join(tempDir, "preview.m4a")
	done := joblog.Stage(jobLogger, "download_preview",
		slog.String("preview_url", input.Track.PreviewURL),
		slog.String("destination", audioPath),
	)
	err = p.downloads.Download(ctx, input.Track, audioPath)
	done(err)
	if err != nil {
		return GeneratedMedia{}, err
	}

	renderPath := filepath.Join(tempDir, outputName)
	done = joblog.Stage(jobLogger, "render_video",
		slog.String("destination", renderPath),
	)
	err = p.renderer.Render(ctx, audioPath, caption, renderPath)
	done(err)
	if err != nil {
		return GeneratedMedia{}, fmt.Errorf("trending: render video: %w", err)
	}

	done = joblog.Stage(jobLogger, "upload_video",
		slog.String("destination_name", outputName),
	)
	uploaded, err := p.store.Upload(ctx, renderPath, outputName, "video/mp4")
	done(err)
	if err != nil {
		return GeneratedMedia{}, fmt.Errorf("trending: upload video: %w", err)
	}
	jobLogger.Info("video_uploaded",
		slog.String("storage_key", uploaded.Key),
		slog.String("storage_url", uploaded.URL),
	)

	var jobMediaID int64
	if p.repo != nil {
		done = joblog.Stage(jobLogger, "record_job_media",
			slog.String("job_name", jobName),
		)
		media := &job.JobMedia{
			JobName:    jobName,
			MediaType:  "video/mp4",
			StorageKey: uploaded.Key,
			StorageURL: uploaded.URL,
		}
		err = p.repo.AttachMedia(ctx, media)
		done(err)
		if err != nil {
			p.removeUploaded(ctx, uploaded.Key, jobLogger)
			return GeneratedMedia{}, fmt.Errorf("trending: record job media: %w", err)
		}
		jobMediaID = media.ID
	}

	var localPath string
	if input.OutputPath != "" {
		done = joblog.Stage(jobLogger, "persist_local_copy",
			slog.String("destination", input.OutputPath),
		)
		localPath, err = p.persistLocalCopy(renderPath, input.OutputPath)
		done(err)
		if err != nil {
			p.removeUploaded(ctx, uploaded.Key, jobLogger)
			return GeneratedMedia{}, fmt.Errorf("trending: persist local copy: %w", err)
		}
	}

	jobLogger.Info("job_succeeded",
		slog.String("stage", "complete"),
		slog.String("storage_key", uploaded.Key),
		slog.String("storage_url", uploaded.URL),
		slog.Int64("job_media_id", jobMediaID),
		slog.String("local_path", localPath),
		slog.String("log_path", logCtx.Path),
	)

	return GeneratedMedia{
		StorageKey: uploaded.Key,
		StorageURL: uploaded.URL,
		JobMediaID: jobMediaID,
		LocalPath:  localPath,
		LogPath:    logCtx.Path,
	}, nil
}

// removeUploaded deletes the uploaded object after a downstream failure.
// Cleanup failures are logged and swallowed so the original error propagates.
func (p *Pipeline) removeUploaded(ctx context.Context, key string, jobLogger *slog.Logger) {
	if err := p.store.Delete(ctx, key); err != nil {
		jobLogger.Warn("failed to remove uploaded object after pipeline failure",
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	jobLogger.Info("removed uploaded object after pipeline failure",
		slog.String("storage_key", key),
	)
}

// persistLocalCopy copies the rendered file to the requested path, resolving
// it to an absolute location and creating parent directories.
func (p *Pipeline) persistLocalCopy(source, destination string) (string, error) {
	final, err := filepath.Abs(destination)
	if err != nil {
		return "", fmt.Errorf("resolve local copy path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0750); err != nil {
		return "", fmt.Errorf("create local copy directory: %w", err)
	}

	in, err := os.Open(source) // #nosec G304 - source is inside the worker temp dir
	if err != nil {
		return "", fmt.Errorf("open rendered video: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(final) // #nosec G304 - destination resolved from caller input
	if err != nil {
		return "", fmt.Errorf("create local copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(final)
		return "", fmt.Errorf("write local copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close local copy: %w", err)
	}
	return final, nil
}

// sanitizeFilename keeps ASCII letters, digits, hyphens, and underscores,
// replacing everything else with a hyphen. Empty results fall back to
// "trend-video".
func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	sanitized := strings.Trim(sb.String(), "-_")
	if sanitized == "" {
		return "trend-video"
	}
	return sanitized
}

// deriveOutputName picks the rendered file name: the requested output's base
// name when one was given, otherwise title and artist.
func deriveOutputName(outputPath string, track Track) string {
	var base string
	if outputPath != "" {
		base = strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	} else {
		base = track.Title
		if base == "" {
			base = "trend-video"
		}
		if track.Artist != "" {
			base = base + "-" + track.Artist
		}
	}
	return sanitizeFilename(base) + ".mp4"
}

// defaultJobName builds a deterministic registration name for the track.
func defaultJobName(track Track) string {
	return "trend-video:" + sanitizeFilename(track.DisplayName())
}
