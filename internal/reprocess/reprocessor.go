package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ehking/social-admin/internal/job"
	"github.com/ehking/social-admin/internal/joblog"
)

// Reprocessor drives persisted jobs through validation to a terminal status.
// Jobs are handled strictly sequentially within one pass; operators must not
// run two passes concurrently, as marking a job processing is the only
// coordination primitive.
type Reprocessor struct {
	repo      job.Repository
	validator *MediaValidator
	logDir    string
	logger    *slog.Logger
}

// New creates a Reprocessor.
func New(repo job.Repository, validator *MediaValidator, logDir string, logger *slog.Logger) *Reprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reprocessor{
		repo:      repo,
		validator: validator,
		logDir:    logDir,
		logger:    logger,
	}
}

// Run executes one reprocessing pass: reset jobs orphaned in processing,
// then validate every pending or failed job in creation order. A failure to
// list jobs aborts the pass; a failure inside one job is logged and never
// stops the remaining jobs.
func (r *Reprocessor) Run(ctx context.Context) error {
	reset, err := r.repo.ResetProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reprocess: reset in-flight jobs: %w", err)
	}
	if reset > 0 {
		r.logger.Info("reset in-flight jobs back to pending",
			slog.Int64("count", reset),
		)
	}

	ids, err := r.repo.ListForReprocessing(ctx)
	if err != nil {
		return fmt.Errorf("reprocess: inspect jobs for reprocessing: %w", err)
	}
	if len(ids) == 0 {
		r.logger.Info("no jobs require reprocessing")
		return nil
	}

	r.logger.Info("reprocessing pending/failed jobs",
		slog.Int("count", len(ids)),
	)
	for _, id := range ids {
		if err := r.processJob(ctx, id); err != nil {
			r.logger.Error("unhandled error while reprocessing job",
				slog.Int64("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// processJob runs one job to a terminal status.
func (r *Reprocessor) processJob(ctx context.Context, id int64) error {
	j, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			r.logger.Warn("job disappeared before processing",
				slog.Int64("job_id", id),
			)
			return nil
		}
		return err
	}

	if err := j.TransitionTo(job.StatusProcessing); err != nil {
		return fmt.Errorf("mark job %d processing: %w", id, err)
	}
	if j.ProgressPercent < 10 {
		j.SetProgress(10)
	}
	j.ErrorDetails = ""
	if err := r.repo.Update(ctx, j); err != nil {
		return err
	}

	opts := joblog.Options{
		Identifier: fmt.Sprintf("job-%d", j.ID),
		Extra: []slog.Attr{
			slog.Int64("job_db_id", j.ID),
			slog.String("job_title", j.Title),
		},
	}
	if len(j.Media) > 0 {
		opts.MediaID = j.Media[0].ID
	}
	if j.Campaign != nil {
		opts.CampaignID = j.Campaign.ID
	}

	logCtx, err := joblog.Open(r.logDir, opts)
	if err != nil {
		return fmt.Errorf("open job log: %w", err)
	}
	defer func() { _ = logCtx.Close() }()

	logCtx.Logger.Info("job_reprocessing_started",
		slog.Int64("job_id", j.ID),
		slog.Int("media_count", len(j.Media)),
	)

	if err := r.validateJob(ctx, logCtx.Logger, j); err != nil {
		return r.failJob(ctx, logCtx.Logger, j, err)
	}

	j.Status = job.StatusCompleted
	j.SetProgress(100)
	j.ErrorDetails = ""
	if err := r.repo.Update(ctx, j); err != nil {
		return err
	}

	logCtx.Logger.Info("job_reprocessing_completed",
		slog.Int64("job_id", j.ID),
		slog.String("log_path", logCtx.Path),
	)
	return nil
}

// validateJob checks every media reference in order, stopping at the first
// failure. Progress advances per validated item but never reaches 100 before
// the terminal update.
func (r *Reprocessor) validateJob(ctx context.Context, logger *slog.Logger, j *job.Job) error {
	if len(j.Media) == 0 {
		return job.NewProcessingError(
			"job does not have any media to process",
			job.CodeMissingMedia,
			map[string]any{"job_id": j.ID},
		)
	}

	step := 80 / len(j.Media)
	if step < 5 {
		step = 5
	}

	for index := range j.Media {
		media := &j.Media[index]
		done := joblog.Stage(logger, "validate_media",
			slog.Int("media_index", index+1),
			slog.Int64("media_id", media.ID),
			slog.String("media_type", media.MediaType),
		)

		info, err := r.validator.Validate(ctx, media)
		done(err)
		if err != nil {
			return err
		}

		attrs := make([]any, 0, len(info))
		for k, v := range info {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.Info("media_validated", attrs...)

		progress := j.ProgressPercent + step
		if progress > 90 {
			progress = 90
		}
		j.SetProgress(progress)
		if err := r.repo.Update(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// failJob records the failure and marks the job failed. Errors outside the
// known taxonomy are classified as unexpected with the error type attached.
func (r *Reprocessor) failJob(ctx context.Context, logger *slog.Logger, j *job.Job, cause error) error {
	var code string
	if pe, ok := job.AsProcessingError(cause); ok {
		code = pe.Code
		j.ErrorDetails = job.MarshalErrorDetails(
			messageFor(pe.Code, pe.Message),
			pe.Code,
			pe.Context,
		)
	} else {
		code = job.CodeUnexpected
		j.ErrorDetails = job.MarshalErrorDetails(
			messageFor(job.CodeUnexpected, cause.Error()),
			job.CodeUnexpected,
			map[string]any{
				"error":   fmt.Sprintf("%T", cause),
				"details": cause.Error(),
			},
		)
	}

	j.Status = job.StatusFailed
	j.SetProgress(100)
	if err := r.repo.Update(ctx, j); err != nil {
		return err
	}

	logger.Error("job_reprocessing_failed",
		slog.Int64("job_id", j.ID),
		slog.String("error", cause.Error()),
		slog.String("error_code", code),
	)
	return nil
}
