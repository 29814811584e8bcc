package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/signsense/signsense/internal/cache"
	"github.com/signsense/signsense/internal/models"
	pgrepo "github.com/signsense/signsense/internal/repositories/postgres"
	"github.com/signsense/signsense/internal/storage"
	"github.com/signsense/signsense/internal/utils"
)

const statusCacheTTL = 2 * time.Second

// VideoStatusView is the merged job-plus-prediction snapshot clients poll.
// State is derived: "completed" requires both a terminal successful job and
// at least one prediction; a completed job with no prediction yet is still
// "processing".
type VideoStatusView struct {
	VideoID     string             `json:"video_id"`
	VideoStatus models.VideoStatus `json:"video_status"`
	State       string             `json:"state"`

	JobID       string     `json:"job_id,omitempty"`
	JobStatus   string     `json:"job_status,omitempty"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Prediction *models.Prediction `json:"prediction,omitempty"`
}

type UploadInput struct {
	UserID   string
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

type VideoService interface {
	Upload(ctx context.Context, in UploadInput) (*models.Video, error)
	Get(ctx context.Context, videoID string) (*models.Video, error)
	GetMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error)
	// GetStatus returns the merged snapshot of the latest pipeline job and
	// the latest prediction for the video.
	GetStatus(ctx context.Context, videoID string) (*VideoStatusView, error)
	// Delete removes the video and everything derived from it: predictions,
	// frame rows and files, jobs, metadata, thumbnail and the upload itself.
	Delete(ctx context.Context, videoID string) error
}

type videoService struct {
	videos      pgrepo.VideoRepository
	jobs        pgrepo.JobRepository
	frames      pgrepo.FrameRepository
	predictions pgrepo.PredictionRepository
	store       storage.Store
	cache       cache.Cache
	log         *logrus.Logger
}

func NewVideoService(
	videos pgrepo.VideoRepository,
	jobs pgrepo.JobRepository,
	frames pgrepo.FrameRepository,
	predictions pgrepo.PredictionRepository,
	store storage.Store,
	c cache.Cache,
	log *logrus.Logger,
) VideoService {
	return &videoService{
		videos:      videos,
		jobs:        jobs,
		frames:      frames,
		predictions: predictions,
		store:       store,
		cache:       c,
		log:         log,
	}
}

func (s *videoService) Upload(ctx context.Context, in UploadInput) (*models.Video, error) {
	const op = "VideoService.Upload"

	if in.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if in.FileName == "" || in.Body == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is required", nil)
	}

	id := uuid.NewString()
	objectName := id + filepath.Ext(in.FileName)

	path, err := s.store.SaveUpload(objectName, in.Body)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store upload", err)
	}

	video := &models.Video{
		ID:         id,
		UserID:     in.UserID,
		FileName:   in.FileName,
		FilePath:   path,
		FileSize:   in.Size,
		MimeType:   in.MimeType,
		Status:     models.VideoStatusUploaded,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.videos.Insert(ctx, video); err != nil {
		_ = s.store.Delete(path)
		return nil, utils.E(utils.CodeInternal, op, "failed to persist video", err)
	}

	s.log.WithFields(logrus.Fields{
		"video_id": video.ID,
		"user_id":  in.UserID,
		"size":     in.Size,
	}).Info("video uploaded")
	return video, nil
}

func (s *videoService) Get(ctx context.Context, videoID string) (*models.Video, error) {
	const op = "VideoService.Get"

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load video", err)
	}
	return video, nil
}

func (s *videoService) GetMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	const op = "VideoService.GetMetadata"

	meta, err := s.videos.GetMetadata(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "metadata not available yet", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load metadata", err)
	}
	return meta, nil
}

func (s *videoService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	const op = "VideoService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	rows, err := s.videos.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list videos", err)
	}
	return rows, nil
}

func (s *videoService) GetStatus(ctx context.Context, videoID string) (*VideoStatusView, error) {
	const op = "VideoService.GetStatus"

	key := statusCacheKey(videoID)
	if s.cache != nil {
		var cached VideoStatusView
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load video", err)
	}

	view := &VideoStatusView{
		VideoID:     video.ID,
		VideoStatus: video.Status,
		State:       "pending",
	}

	job, err := s.jobs.LatestByVideo(ctx, videoID, models.JobTypeFullPipeline)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	if job != nil {
		view.JobID = job.ID
		view.JobStatus = string(job.Status)
		view.Progress = job.Progress
		view.Error = job.ErrorMessage
		view.CompletedAt = job.CompletedAt
	}

	pred, err := s.predictions.LatestByVideo(ctx, videoID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load prediction", err)
	}
	view.Prediction = pred

	// derive the client-facing state; a finished job with no prediction yet
	// means inference is still running, not a failure
	switch {
	case job == nil:
		view.State = "pending"
	case job.Status == models.JobStatusFailed || job.Status == models.JobStatusCancelled:
		view.State = "failed"
	case job.Status == models.JobStatusCompleted && pred != nil:
		view.State = "completed"
	default:
		view.State = "processing"
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, view, statusCacheTTL); err != nil {
			s.log.WithField("video_id", videoID).WithError(err).Debug("status cache write failed")
		}
	}
	return view, nil
}

func (s *videoService) Delete(ctx context.Context, videoID string) error {
	const op = "VideoService.Delete"

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load video", err)
	}

	log := s.log.WithField("video_id", videoID)

	if err := s.predictions.DeleteByVideo(ctx, videoID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete predictions", err)
	}
	if err := s.frames.DeleteByVideo(ctx, videoID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete frame rows", err)
	}
	if scratch, serr := s.store.ScratchDir("frames-" + videoID); serr == nil {
		if err := s.store.DeleteDir(scratch); err != nil {
			log.WithError(err).Warn("failed to remove frame files")
		}
	}
	if err := s.jobs.DeleteByVideo(ctx, videoID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete jobs", err)
	}

	if meta, merr := s.videos.GetMetadata(ctx, videoID); merr == nil && meta.ThumbnailPath != nil {
		if err := s.store.Delete(*meta.ThumbnailPath); err != nil {
			log.WithError(err).Warn("failed to remove thumbnail file")
		}
	}
	if err := s.videos.DeleteMetadata(ctx, videoID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete metadata", err)
	}

	if err := s.store.Delete(video.FilePath); err != nil {
		log.WithError(err).Warn("failed to remove upload file")
	}
	if err := s.videos.Delete(ctx, videoID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete video", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, statusCacheKey(videoID))
	}

	log.Info("video and derived data deleted")
	return nil
}

func statusCacheKey(videoID string) string { return "status:" + videoID }
