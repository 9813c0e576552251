package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	jobs   map[int64]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID: 1,
		jobs:   make(map[int64]*Job),
	}
}

// Create persists a job, assigning IDs to it and its owned rows.
func (r *MemoryRepository) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.ID = r.nextID
	r.nextID++
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	for i := range job.Media {
		job.Media[i].ID = r.nextID
		r.nextID++
		job.Media[i].JobID = job.ID
	}
	if job.Campaign != nil {
		job.Campaign.ID = r.nextID
		r.nextID++
		job.Campaign.JobID = job.ID
	}

	r.jobs[job.ID] = job.Clone()
	return nil
}

// Get retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) Get(_ context.Context, id int64) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update persists the job's mutable fields.
func (r *MemoryRepository) Update(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	stored.Status = job.Status
	stored.ProgressPercent = job.ProgressPercent
	stored.ErrorDetails = job.ErrorDetails
	return nil
}

// ResetProcessing forces processing jobs back to pending.
func (r *MemoryRepository) ResetProcessing(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, job := range r.jobs {
		if job.Status == StatusProcessing {
			job.Status = StatusPending
			count++
		}
	}
	return count, nil
}

// ListForReprocessing returns pending and failed job IDs ordered by creation
// time ascending.
func (r *MemoryRepository) ListForReprocessing(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eligible := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.Status == StatusPending || job.Status == StatusFailed {
			eligible = append(eligible, job)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	ids := make([]int64, 0, len(eligible))
	for _, job := range eligible {
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// AttachMedia persists a media row, attaching it to its job when one exists.
func (r *MemoryRepository) AttachMedia(_ context.Context, media *JobMedia) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	media.ID = r.nextID
	r.nextID++
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now()
	}

	if media.JobID != 0 {
		job, ok := r.jobs[media.JobID]
		if !ok {
			return ErrJobNotFound
		}
		job.Media = append(job.Media, *media)
	}
	return nil
}
