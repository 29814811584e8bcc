package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository interface {
	Insert(ctx context.Context, j *models.ProcessingJob) error
	GetByID(ctx context.Context, id string) (*models.ProcessingJob, error)
	LatestByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error)
	// ActiveByVideo returns a pending or processing job for the video, or
	// utils.ErrNotFound when none is in flight.
	ActiveByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error)
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	SetProgress(ctx context.Context, id string, progress int) error
	MarkCompleted(ctx context.Context, id string, summary datatypes.JSON) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	DeleteByVideo(ctx context.Context, videoID string) error
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Insert(ctx context.Context, j *models.ProcessingJob) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.ProcessingJob, error) {
	var row models.ProcessingJob
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *jobRepo) LatestByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error) {
	var row models.ProcessingJob
	err := r.db.WithContext(ctx).
		Where("video_id = ? AND job_type = ?", videoID, jobType).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *jobRepo) ActiveByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error) {
	var row models.ProcessingJob
	err := r.db.WithContext(ctx).
		Where("video_id = ? AND job_type = ? AND status IN ?",
			videoID, jobType,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.JobStatusProcessing,
			"progress":   0,
			"started_at": startedAt,
		}).Error
}

func (r *jobRepo) SetProgress(ctx context.Context, id string, progress int) error {
	// progress only moves forward within a run
	return r.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ? AND progress <= ?", id, progress).
		Update("progress", progress).Error
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string, summary datatypes.JSON) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         models.JobStatusCompleted,
			"progress":       100,
			"result_summary": summary,
			"completed_at":   now,
		}).Error
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.JobStatusFailed,
			"error_message": errMsg,
			"completed_at":  now,
		}).Error
}

func (r *jobRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&models.ProcessingJob{}).Error
}
