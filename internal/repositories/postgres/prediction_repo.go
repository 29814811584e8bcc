package postgres

import (
	"context"
	"errors"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/utils"
	"gorm.io/gorm"
)

type PredictionRepository interface {
	// Insert appends a new row; predictions are never updated in place.
	Insert(ctx context.Context, p *models.Prediction) error
	LatestByVideo(ctx context.Context, videoID string) (*models.Prediction, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Prediction, error)
	DeleteByVideo(ctx context.Context, videoID string) error
}

type predictionRepo struct {
	db *gorm.DB
}

func NewPredictionRepo(db *gorm.DB) PredictionRepository {
	return &predictionRepo{db: db}
}

func (r *predictionRepo) Insert(ctx context.Context, p *models.Prediction) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *predictionRepo) LatestByVideo(ctx context.Context, videoID string) (*models.Prediction, error) {
	var row models.Prediction
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *predictionRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Prediction
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *predictionRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&models.Prediction{}).Error
}
