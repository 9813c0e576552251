// Package bootstrap provides dependency initialization for the admin console
// background pipelines.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ehking/social-admin/internal/config"
	"github.com/ehking/social-admin/internal/httpx"
	"github.com/ehking/social-admin/internal/job"
	"github.com/ehking/social-admin/internal/reprocess"
	"github.com/ehking/social-admin/internal/storage"
	"github.com/ehking/social-admin/internal/trending"
	"github.com/ehking/social-admin/internal/worker"
)

// Dependencies holds the initialized collaborators shared by the commands.
type Dependencies struct {
	Repository  job.Repository
	Storage     storage.Storage
	HTTPClient  *httpx.Client
	Worker      *worker.Worker
	Reprocessor *reprocess.Reprocessor
	FeedClient  *trending.FeedClient
	Downloads   *trending.DownloadManager
}

// NewDependencies creates and initializes the dependencies every command
// needs. Renderer construction is left to the trend video command because it
// requires a font that the reprocessor never touches.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}

	httpClient := httpx.NewClient(
		httpx.WithMaxAttempts(cfg.HTTPMaxAttempts),
		httpx.WithBackoff(cfg.HTTPMinBackoff, cfg.HTTPMaxBackoff),
		httpx.WithLogger(logger),
	)

	w, err := worker.New(cfg.WorkerTempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create worker: %w", err)
	}

	validator := reprocess.NewMediaValidator(httpClient, cfg.RequestTimeout)
	reprocessor := reprocess.New(repo, validator, cfg.JobLogDir, logger)

	downloads, err := trending.NewDownloadManager(httpClient, cfg.PreviewMaxConcurrency,
		trending.WithDownloadLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create download manager: %w", err)
	}

	feed := trending.NewFeedClient(httpClient, trending.WithFeedLogger(logger))

	return &Dependencies{
		Repository:  repo,
		Storage:     store,
		HTTPClient:  httpClient,
		Worker:      w,
		Reprocessor: reprocessor,
		FeedClient:  feed,
		Downloads:   downloads,
	}, nil
}

// NewPipeline assembles the trend video pipeline on top of the shared
// dependencies. fontPath must point at a caption-capable font file.
func (d *Dependencies) NewPipeline(cfg *config.Config, fontPath string, logger *slog.Logger) (*trending.Pipeline, error) {
	renderer, err := trending.NewFFmpegRenderer(fontPath)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	translator, err := trending.NewTranslatorFromConfig(cfg, d.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("create translator: %w", err)
	}

	pipeline, err := trending.NewPipeline(d.Downloads, renderer, d.Storage, d.Worker,
		trending.WithTranslator(translator),
		trending.WithRepository(d.Repository),
		trending.WithLogDir(cfg.JobLogDir),
		trending.WithPipelineLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return pipeline, nil
}

// initRepository selects the persistence backend: postgres when DATABASE_URL
// is set, otherwise the in-memory repository for local development.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, using in-memory repository")
		return job.NewMemoryRepository(), nil
	}

	repo, err := job.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database repository configured")
	return repo, nil
}
