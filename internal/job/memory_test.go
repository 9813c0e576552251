package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := &Job{
		Title:  "promo",
		Status: StatusPending,
		Media: []JobMedia{
			{MediaURL: "https://example.com/a.mp4", MediaType: "video/mp4"},
		},
		Campaign: &Campaign{Name: "spring", Budget: 100},
	}
	require.NoError(t, repo.Create(ctx, j))
	require.NotZero(t, j.ID)

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "promo", got.Title)
	require.Len(t, got.Media, 1)
	assert.Equal(t, j.ID, got.Media[0].JobID)
	require.NotNil(t, got.Campaign)
	assert.Equal(t, j.ID, got.Campaign.JobID)

	// Mutating the returned clone must not affect the stored job.
	got.Title = "changed"
	again, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "promo", again.Title)
}

func TestMemoryRepository_GetMissing(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryRepository_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := &Job{Title: "promo", Status: StatusPending}
	require.NoError(t, repo.Create(ctx, j))

	j.Status = StatusFailed
	j.ProgressPercent = 100
	j.ErrorDetails = MarshalErrorDetails("gone", CodeMissingFile, nil)
	require.NoError(t, repo.Update(ctx, j))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.NotEmpty(t, got.ErrorDetails)

	assert.ErrorIs(t, repo.Update(ctx, &Job{ID: 99}), ErrJobNotFound)
}

func TestMemoryRepository_ResetProcessing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stuck := &Job{Title: "stuck", Status: StatusProcessing}
	done := &Job{Title: "done", Status: StatusCompleted}
	require.NoError(t, repo.Create(ctx, stuck))
	require.NoError(t, repo.Create(ctx, done))

	count, err := repo.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	got, err = repo.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMemoryRepository_ListForReprocessing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	now := time.Now()
	newest := &Job{Title: "newest", Status: StatusPending, CreatedAt: now}
	oldest := &Job{Title: "oldest", Status: StatusFailed, CreatedAt: now.Add(-time.Hour)}
	completed := &Job{Title: "completed", Status: StatusCompleted, CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, repo.Create(ctx, newest))
	require.NoError(t, repo.Create(ctx, oldest))
	require.NoError(t, repo.Create(ctx, completed))

	ids, err := repo.ListForReprocessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{oldest.ID, newest.ID}, ids)
}

func TestMemoryRepository_AttachMedia(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := &Job{Title: "promo", Status: StatusPending}
	require.NoError(t, repo.Create(ctx, j))

	media := &JobMedia{JobID: j.ID, MediaType: "video/mp4", StorageKey: "a.mp4"}
	require.NoError(t, repo.AttachMedia(ctx, media))
	require.NotZero(t, media.ID)

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, got.Media, 1)
	assert.Equal(t, "a.mp4", got.Media[0].StorageKey)

	// Standalone media referenced only by job name.
	standalone := &JobMedia{JobName: "trend-video:song", StorageKey: "b.mp4"}
	require.NoError(t, repo.AttachMedia(ctx, standalone))
	assert.NotZero(t, standalone.ID)

	// Media for a missing job is rejected.
	assert.ErrorIs(t, repo.AttachMedia(ctx, &JobMedia{JobID: 99}), ErrJobNotFound)
}
