package services

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/signsense/signsense/internal/media"
	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/providers/engine"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) PredictVideo(ctx context.Context, videoPath string) (*engine.Result, error) {
	args := m.Called(ctx, videoPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

func (m *MockEngine) PredictFrames(ctx context.Context, framePaths []string) (*engine.Result, error) {
	args := m.Called(ctx, framePaths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

func (m *MockEngine) PredictWindow(ctx context.Context, frames [][]byte) (*engine.Result, error) {
	args := m.Called(ctx, frames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) Insert(ctx context.Context, v *models.Video) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVideoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Video), args.Error(1)
}

func (m *MockVideoRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Video), args.Error(1)
}

func (m *MockVideoRepo) SetStatus(ctx context.Context, id string, status models.VideoStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockVideoRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVideoRepo) UpsertMetadata(ctx context.Context, md *models.VideoMetadata) error {
	args := m.Called(ctx, md)
	return args.Error(0)
}

func (m *MockVideoRepo) GetMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoMetadata), args.Error(1)
}

func (m *MockVideoRepo) SetThumbnailPath(ctx context.Context, videoID, path string) error {
	args := m.Called(ctx, videoID, path)
	return args.Error(0)
}

func (m *MockVideoRepo) DeleteMetadata(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Insert(ctx context.Context, j *models.ProcessingJob) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *MockJobRepo) GetByID(ctx context.Context, id string) (*models.ProcessingJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessingJob), args.Error(1)
}

func (m *MockJobRepo) LatestByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error) {
	args := m.Called(ctx, videoID, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessingJob), args.Error(1)
}

func (m *MockJobRepo) ActiveByVideo(ctx context.Context, videoID string, jobType models.JobType) (*models.ProcessingJob, error) {
	args := m.Called(ctx, videoID, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessingJob), args.Error(1)
}

func (m *MockJobRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	args := m.Called(ctx, id, startedAt)
	return args.Error(0)
}

func (m *MockJobRepo) SetProgress(ctx context.Context, id string, progress int) error {
	args := m.Called(ctx, id, progress)
	return args.Error(0)
}

func (m *MockJobRepo) MarkCompleted(ctx context.Context, id string, summary datatypes.JSON) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func (m *MockJobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockJobRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockFrameRepo struct {
	mock.Mock
}

func (m *MockFrameRepo) InsertBatch(ctx context.Context, frames []models.ExtractedFrame) error {
	args := m.Called(ctx, frames)
	return args.Error(0)
}

func (m *MockFrameRepo) ListByVideo(ctx context.Context, videoID string) ([]models.ExtractedFrame, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExtractedFrame), args.Error(1)
}

func (m *MockFrameRepo) CountByVideo(ctx context.Context, videoID string) (int64, error) {
	args := m.Called(ctx, videoID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFrameRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockPredictionRepo struct {
	mock.Mock
}

func (m *MockPredictionRepo) Insert(ctx context.Context, p *models.Prediction) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPredictionRepo) LatestByVideo(ctx context.Context, videoID string) (*models.Prediction, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Prediction, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Prediction), args.Error(1)
}

func (m *MockPredictionRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockTranscriptRepo struct {
	mock.Mock
}

func (m *MockTranscriptRepo) InsertWindow(ctx context.Context, t *models.LiveTranscript) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTranscriptRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.LiveTranscript, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LiveTranscript), args.Error(1)
}

func (m *MockTranscriptRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, event models.LiveEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveUpload(objectName string, r io.Reader) (string, error) {
	args := m.Called(objectName, r)
	return args.String(0), args.Error(1)
}

func (m *MockStore) UploadPath(objectName string) string {
	args := m.Called(objectName)
	return args.String(0)
}

func (m *MockStore) ThumbnailPath(objectName string) string {
	args := m.Called(objectName)
	return args.String(0)
}

func (m *MockStore) ScratchDir(id string) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Exists(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockStore) Delete(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockStore) DeleteDir(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, videoPath string) (*media.Metadata, error) {
	args := m.Called(ctx, videoPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Metadata), args.Error(1)
}

type MockThumbnailer struct {
	mock.Mock
}

func (m *MockThumbnailer) Thumbnail(ctx context.Context, videoPath, outPath string, atSeconds float64) error {
	args := m.Called(ctx, videoPath, outPath, atSeconds)
	return args.Error(0)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, videoPath, outDir string, meta *media.Metadata, opts media.ExtractOptions) ([]media.Frame, error) {
	args := m.Called(ctx, videoPath, outDir, meta, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]media.Frame), args.Error(1)
}

type MockInference struct {
	mock.Mock
}

func (m *MockInference) PredictVideo(ctx context.Context, videoID string) (*models.Prediction, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockInference) PredictVideoAsync(videoID string) error {
	args := m.Called(videoID)
	return args.Error(0)
}

func (m *MockInference) PredictWindow(ctx context.Context, sessionID string, frames [][]byte) (*models.Prediction, error) {
	args := m.Called(ctx, sessionID, frames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}
