package postgres

import (
	"context"

	"github.com/signsense/signsense/internal/models"
	"gorm.io/gorm"
)

type FrameRepository interface {
	InsertBatch(ctx context.Context, frames []models.ExtractedFrame) error
	ListByVideo(ctx context.Context, videoID string) ([]models.ExtractedFrame, error)
	CountByVideo(ctx context.Context, videoID string) (int64, error)
	DeleteByVideo(ctx context.Context, videoID string) error
}

type frameRepo struct {
	db *gorm.DB
}

func NewFrameRepo(db *gorm.DB) FrameRepository {
	return &frameRepo{db: db}
}

func (r *frameRepo) InsertBatch(ctx context.Context, frames []models.ExtractedFrame) error {
	if len(frames) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(frames, 200).Error
}

func (r *frameRepo) ListByVideo(ctx context.Context, videoID string) ([]models.ExtractedFrame, error) {
	var rows []models.ExtractedFrame
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("frame_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *frameRepo) CountByVideo(ctx context.Context, videoID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ExtractedFrame{}).
		Where("video_id = ?", videoID).
		Count(&n).Error
	return n, err
}

func (r *frameRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&models.ExtractedFrame{}).Error
}
