package postgres

import (
	"context"
	"errors"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/utils"
	"gorm.io/gorm"
)

type VideoRepository interface {
	Insert(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id string) (*models.Video, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error)
	SetStatus(ctx context.Context, id string, status models.VideoStatus) error
	Delete(ctx context.Context, id string) error

	UpsertMetadata(ctx context.Context, m *models.VideoMetadata) error
	GetMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error)
	SetThumbnailPath(ctx context.Context, videoID, path string) error
	DeleteMetadata(ctx context.Context, videoID string) error
}

type videoRepo struct {
	db *gorm.DB
}

func NewVideoRepo(db *gorm.DB) VideoRepository {
	return &videoRepo{db: db}
}

func (r *videoRepo) Insert(ctx context.Context, v *models.Video) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *videoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	var row models.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *videoRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Video
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *videoRepo) SetStatus(ctx context.Context, id string, status models.VideoStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *videoRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error
}

func (r *videoRepo) UpsertMetadata(ctx context.Context, m *models.VideoMetadata) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *videoRepo) GetMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	var row models.VideoMetadata
	err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *videoRepo) SetThumbnailPath(ctx context.Context, videoID, path string) error {
	return r.db.WithContext(ctx).
		Model(&models.VideoMetadata{}).
		Where("video_id = ?", videoID).
		Update("thumbnail_path", path).Error
}

func (r *videoRepo) DeleteMetadata(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&models.VideoMetadata{}).Error
}
