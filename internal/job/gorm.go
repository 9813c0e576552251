package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// jobModel is the persistence row for jobs.
type jobModel struct {
	ID              int64  `gorm:"primaryKey"`
	Title           string `gorm:"size:150;not null"`
	Description     string `gorm:"type:text"`
	Status          string `gorm:"size:50;default:pending;index"`
	ProgressPercent int
	ErrorDetails    *string `gorm:"type:text"`
	AITool          string  `gorm:"size:100"`
	CreatedAt       time.Time

	Media    []jobMediaModel `gorm:"foreignKey:JobID"`
	Campaign *campaignModel  `gorm:"foreignKey:JobID"`
}

func (jobModel) TableName() string { return "jobs" }

// jobMediaModel is the persistence row for job media references.
type jobMediaModel struct {
	ID          int64  `gorm:"primaryKey"`
	JobID       *int64 `gorm:"index"`
	JobName     string `gorm:"size:150"`
	MediaType   string `gorm:"size:50;not null;default:video/mp4"`
	DisplayName string `gorm:"size:150"`
	MediaURL    string `gorm:"size:500"`
	StorageKey  string `gorm:"size:255"`
	StorageURL  string `gorm:"size:500"`
	CreatedAt   time.Time
}

func (jobMediaModel) TableName() string { return "job_media" }

// campaignModel is the persistence row for campaigns.
type campaignModel struct {
	ID          int64  `gorm:"primaryKey"`
	JobID       int64  `gorm:"not null;index"`
	Name        string `gorm:"size:150;not null"`
	Description string `gorm:"type:text"`
	Budget      int64
	CreatedAt   time.Time
}

func (campaignModel) TableName() string { return "campaigns" }

// GormRepository persists jobs in PostgreSQL through gorm. Every method uses
// a short-lived session scoped to the call's context.
type GormRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Connect opens a PostgreSQL-backed repository and verifies connectivity.
func Connect(dsn string, logger *slog.Logger) (*GormRepository, error) {
	if dsn == "" {
		return nil, errors.New("job: postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("job: open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("job: resolve sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("job: ping postgres: %w", err)
	}

	return NewGormRepository(db, logger), nil
}

// NewGormRepository wraps an existing gorm handle.
func NewGormRepository(db *gorm.DB, logger *slog.Logger) *GormRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormRepository{db: db, logger: logger}
}

// AutoMigrate creates or updates the job, media, and campaign tables.
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&jobModel{}, &jobMediaModel{}, &campaignModel{})
}

// Close releases the underlying connection pool.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create persists a new job with its owned rows and assigns IDs.
func (r *GormRepository) Create(ctx context.Context, job *Job) error {
	row := jobRowFromEntity(job)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("job: create: %w", err)
	}
	*job = *row.toEntity()
	return nil
}

// Get retrieves a job with its media and campaign loaded.
func (r *GormRepository) Get(ctx context.Context, id int64) (*Job, error) {
	var row jobModel
	err := r.db.WithContext(ctx).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("job_media.id asc") }).
		Preload("Campaign").
		First(&row, id).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job: get %d: %w", id, err)
	}
	return row.toEntity(), nil
}

// Update persists the job's status, progress, and error details.
func (r *GormRepository) Update(ctx context.Context, job *Job) error {
	var details *string
	if job.ErrorDetails != "" {
		d := job.ErrorDetails
		details = &d
	}

	result := r.db.WithContext(ctx).
		Model(&jobModel{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":           string(job.Status),
			"progress_percent": job.ProgressPercent,
			"error_details":    details,
		})
	if result.Error != nil {
		return fmt.Errorf("job: update %d: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ResetProcessing forces processing jobs back to pending.
func (r *GormRepository) ResetProcessing(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&jobModel{}).
		Where("status = ?", string(StatusProcessing)).
		Update("status", string(StatusPending))
	if result.Error != nil {
		return 0, fmt.Errorf("job: reset processing: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListForReprocessing returns pending and failed job IDs ordered by creation
// time ascending.
func (r *GormRepository) ListForReprocessing(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&jobModel{}).
		Where("status IN ?", []string{string(StatusPending), string(StatusFailed)}).
		Order("created_at asc").
		Pluck("id", &ids).
		Error
	if err != nil {
		return nil, fmt.Errorf("job: list for reprocessing: %w", err)
	}
	return ids, nil
}

// AttachMedia persists a media row and assigns its ID.
func (r *GormRepository) AttachMedia(ctx context.Context, media *JobMedia) error {
	row := mediaRowFromEntity(media)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("job: attach media: %w", err)
	}
	media.ID = row.ID
	media.CreatedAt = row.CreatedAt
	return nil
}

// jobRowFromEntity maps a domain job to its persistence row.
func jobRowFromEntity(job *Job) jobModel {
	var details *string
	if job.ErrorDetails != "" {
		d := job.ErrorDetails
		details = &d
	}

	row := jobModel{
		ID:              job.ID,
		Title:           job.Title,
		Description:     job.Description,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ErrorDetails:    details,
		AITool:          job.AITool,
		CreatedAt:       job.CreatedAt,
	}
	for i := range job.Media {
		row.Media = append(row.Media, mediaRowFromEntity(&job.Media[i]))
	}
	if job.Campaign != nil {
		row.Campaign = &campaignModel{
			ID:          job.Campaign.ID,
			JobID:       job.Campaign.JobID,
			Name:        job.Campaign.Name,
			Description: job.Campaign.Description,
			Budget:      job.Campaign.Budget,
			CreatedAt:   job.Campaign.CreatedAt,
		}
	}
	return row
}

// mediaRowFromEntity maps a domain media reference to its persistence row.
func mediaRowFromEntity(media *JobMedia) jobMediaModel {
	var jobID *int64
	if media.JobID != 0 {
		id := media.JobID
		jobID = &id
	}
	return jobMediaModel{
		ID:          media.ID,
		JobID:       jobID,
		JobName:     media.JobName,
		MediaType:   media.MediaType,
		DisplayName: media.DisplayName,
		MediaURL:    media.MediaURL,
		StorageKey:  media.StorageKey,
		StorageURL:  media.StorageURL,
		CreatedAt:   media.CreatedAt,
	}
}

// toEntity maps a persistence row back to the domain job.
func (m *jobModel) toEntity() *Job {
	job := &Job{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Status:          Status(m.Status),
		ProgressPercent: m.ProgressPercent,
		AITool:          m.AITool,
		CreatedAt:       m.CreatedAt,
	}
	if m.ErrorDetails != nil {
		job.ErrorDetails = *m.ErrorDetails
	}
	for i := range m.Media {
		job.Media = append(job.Media, *m.Media[i].toEntity())
	}
	if m.Campaign != nil {
		job.Campaign = &Campaign{
			ID:          m.Campaign.ID,
			JobID:       m.Campaign.JobID,
			Name:        m.Campaign.Name,
			Description: m.Campaign.Description,
			Budget:      m.Campaign.Budget,
			CreatedAt:   m.Campaign.CreatedAt,
		}
	}
	return job
}

// toEntity maps a media row back to the domain reference.
func (m *jobMediaModel) toEntity() *JobMedia {
	media := &JobMedia{
		ID:          m.ID,
		JobName:     m.JobName,
		MediaType:   m.MediaType,
		DisplayName: m.DisplayName,
		MediaURL:    m.MediaURL,
		StorageKey:  m.StorageKey,
		StorageURL:  m.StorageURL,
		CreatedAt:   m.CreatedAt,
	}
	if m.JobID != nil {
		media.JobID = *m.JobID
	}
	return media
}
