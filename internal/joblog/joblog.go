// Package joblog provides per-run structured log files for background jobs.
// Each run writes one append-only JSON-lines file so operators can replay
// exactly what happened to a single job.
package joblog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Options configures a job log context.
type Options struct {
	// Identifier names the log file. A uuid-based run id is generated when empty.
	Identifier string
	// MediaID correlates the run with a media row when non-zero.
	MediaID int64
	// CampaignID correlates the run with a campaign row when non-zero.
	CampaignID int64
	// Extra attributes attached to every record.
	Extra []slog.Attr
}

// Context owns the log file and logger for one background job run.
// Close must be called on every exit path.
type Context struct {
	RunID  string
	Path   string
	Logger *slog.Logger

	file *os.File
}

// Open creates the log directory and file and returns a ready Context.
func Open(dir string, opts Options) (*Context, error) {
	if dir == "" {
		dir = filepath.Join("logs", "jobs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("joblog: create log directory: %w", err)
	}

	runID := opts.Identifier
	if runID == "" {
		runID = uuid.New().String()
	}
	path := filepath.Join(dir, runID+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640) // #nosec G304 - path is built from the configured log dir
	if err != nil {
		return nil, fmt.Errorf("joblog: open log file: %w", err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With(slog.String("run_id", runID))
	if opts.MediaID != 0 {
		logger = logger.With(slog.Int64("media_id", opts.MediaID))
	}
	if opts.CampaignID != 0 {
		logger = logger.With(slog.Int64("campaign_id", opts.CampaignID))
	}
	for _, attr := range opts.Extra {
		logger = logger.With(attr)
	}

	ctx := &Context{
		RunID:  runID,
		Path:   path,
		Logger: logger,
		file:   f,
	}

	logger.Info("job_started")
	return ctx, nil
}

// Close releases the log file handle. Safe to call once per context.
func (c *Context) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	if err != nil {
		return fmt.Errorf("joblog: close log file: %w", err)
	}
	return nil
}

// Stage logs stage_started and returns a finisher that logs stage_completed
// or stage_failed depending on the error it receives. Use with defer-style
// bookkeeping so the terminal event fires on every exit path:
//
//	done := joblog.Stage(logger, "upload_video")
//	err := upload()
//	done(err)
func Stage(logger *slog.Logger, stage string, attrs ...slog.Attr) func(error) {
	staged := logger.With(slog.String("stage", stage))
	for _, attr := range attrs {
		staged = staged.With(attr)
	}
	staged.Info("stage_started")

	return func(err error) {
		if err != nil {
			staged.Error("stage_failed", slog.String("error", err.Error()))
			return
		}
		staged.Info("stage_completed")
	}
}
