// Package job provides the Job aggregate shared by the CRUD flows and the
// background pipelines. It includes the job lifecycle state machine, the
// structured processing error shape persisted into error details, and
// repository ports for persistence.
package job

import (
	"errors"
	"time"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is waiting to be processed.
	StatusPending Status = "pending"
	// StatusProcessing indicates the job is being validated or generated.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job encountered an error during processing.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed within one
// processing pass. The crash-recovery sweep that forces processing jobs back
// to pending happens at the repository level, outside these rules.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusFailed:     {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state for one pass.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents a persisted unit of work. It is created by CRUD flows or by
// the trending video pipeline and mutated by the reprocessor.
type Job struct {
	ID              int64
	Title           string
	Description     string
	Status          Status
	ProgressPercent int
	// ErrorDetails holds the serialized ProcessingError payload, empty when
	// the job has no recorded failure.
	ErrorDetails string
	AITool       string
	CreatedAt    time.Time

	Media    []JobMedia
	Campaign *Campaign
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	if !CanTransition(j.Status, status) {
		return ErrInvalidTransition
	}
	j.Status = status
	return nil
}

// SetProgress sets the progress percentage, clamped to 0-100.
func (j *Job) SetProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.ProgressPercent = progress
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	media := make([]JobMedia, len(j.Media))
	copy(media, j.Media)

	clone := *j
	clone.Media = media
	if j.Campaign != nil {
		campaign := *j.Campaign
		clone.Campaign = &campaign
	}
	return &clone
}

// JobMedia is a media reference attached to a Job: either a source URL to
// validate or an uploaded artifact identified by storage key and URL.
type JobMedia struct {
	ID          int64
	JobID       int64
	JobName     string
	MediaType   string
	DisplayName string
	MediaURL    string
	StorageKey  string
	StorageURL  string
	CreatedAt   time.Time
}

// Source returns the reference used for validation, preferring the original
// media URL over the uploaded storage URL.
func (m *JobMedia) Source() string {
	if m.MediaURL != "" {
		return m.MediaURL
	}
	return m.StorageURL
}

// Campaign holds descriptive metadata attached 1:1 to a Job. The pipelines
// only read it for log correlation.
type Campaign struct {
	ID          int64
	JobID       int64
	Name        string
	Description string
	Budget      int64
	CreatedAt   time.Time
}
