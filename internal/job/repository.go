package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the persistence port for jobs, media, and campaigns.
// Each call owns its own short-lived session; no transaction spans multiple
// jobs.
type Repository interface {
	// Create persists a new job and assigns its ID.
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job by ID with its media and campaign loaded.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id int64) (*Job, error)

	// Update persists the job's status, progress, and error details.
	Update(ctx context.Context, job *Job) error

	// ResetProcessing forces every job currently in processing back to
	// pending and returns how many were reset. Used by the crash-recovery
	// sweep before a reprocessing pass.
	ResetProcessing(ctx context.Context) (int64, error)

	// ListForReprocessing returns the IDs of jobs with status pending or
	// failed, ordered by creation time ascending.
	ListForReprocessing(ctx context.Context) ([]int64, error)

	// AttachMedia persists a media row and assigns its ID.
	AttachMedia(ctx context.Context, media *JobMedia) error
}
