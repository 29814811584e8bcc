package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/providers/engine"
	"github.com/signsense/signsense/internal/utils"
)

func TestClassifyConfidence(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.0, ConfidenceVeryLow},
		{0.05, ConfidenceVeryLow},
		{0.1, ConfidenceLow},
		{0.3, ConfidenceLow},
		{0.5, ConfidenceMedium},
		{0.65, ConfidenceMedium},
		{0.8, ConfidenceHigh},
		{0.95, ConfidenceHigh},
		{1.0, ConfidenceHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyConfidence(tc.score), "score %v", tc.score)
	}
}

func newTestInferenceService(eng *MockEngine, videos *MockVideoRepo, frames *MockFrameRepo, predictions *MockPredictionRepo) InferenceService {
	return NewInferenceService(eng, videos, frames, predictions, nil, testLogger(), 1)
}

func TestPredictWindow_PersistsOneRowPerCall(t *testing.T) {
	eng := new(MockEngine)
	predictions := new(MockPredictionRepo)
	svc := newTestInferenceService(eng, new(MockVideoRepo), new(MockFrameRepo), predictions)
	ctx := context.Background()

	eng.On("PredictWindow", mock.Anything, mock.Anything).
		Return(&engine.Result{Text: "thanks", Confidence: 0.91, ModelVersion: "v1"}, nil).Twice()

	var inserted []*models.Prediction
	predictions.On("Insert", mock.Anything, mock.AnythingOfType("*models.Prediction")).
		Run(func(args mock.Arguments) {
			inserted = append(inserted, args.Get(1).(*models.Prediction))
		}).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		pred, err := svc.PredictWindow(ctx, "sess-1", [][]byte{{1}, {2}})
		require.NoError(t, err)
		assert.Equal(t, "thanks", pred.PredictedText)
	}

	require.Len(t, inserted, 2)
	for _, p := range inserted {
		require.NotNil(t, p.SessionID)
		assert.Equal(t, "sess-1", *p.SessionID)
		assert.Nil(t, p.VideoID)
		assert.Equal(t, 0.91, p.ConfidenceScore)
	}
	// every invocation gets its own row
	assert.NotEqual(t, inserted[0].ID, inserted[1].ID)
}

func TestPredictWindow_EngineFailureLeavesNoRow(t *testing.T) {
	eng := new(MockEngine)
	predictions := new(MockPredictionRepo)
	svc := newTestInferenceService(eng, new(MockVideoRepo), new(MockFrameRepo), predictions)

	eng.On("PredictWindow", mock.Anything, mock.Anything).
		Return(nil, errors.New("engine returned malformed output: confidence out of range")).Once()

	_, err := svc.PredictWindow(context.Background(), "sess-1", [][]byte{{1}})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	predictions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestPredictWindow_DeadlineMapsToTimeout(t *testing.T) {
	eng := new(MockEngine)
	svc := newTestInferenceService(eng, new(MockVideoRepo), new(MockFrameRepo), new(MockPredictionRepo))

	eng.On("PredictWindow", mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded).Once()

	_, err := svc.PredictWindow(context.Background(), "sess-1", [][]byte{{1}})
	assert.True(t, utils.IsCode(err, utils.CodeTimeout))
}

func TestPredictVideo_PrefersExtractedFrames(t *testing.T) {
	eng := new(MockEngine)
	videos := new(MockVideoRepo)
	frames := new(MockFrameRepo)
	predictions := new(MockPredictionRepo)
	svc := newTestInferenceService(eng, videos, frames, predictions)
	ctx := context.Background()

	videos.On("GetByID", mock.Anything, "vid-1").
		Return(&models.Video{ID: "vid-1", FilePath: "/data/uploads/vid-1.mp4"}, nil)
	frames.On("ListByVideo", mock.Anything, "vid-1").
		Return([]models.ExtractedFrame{
			{FilePath: "/data/tmp/frames-vid-1/frame_00000.jpg"},
			{FilePath: "/data/tmp/frames-vid-1/frame_00001.jpg"},
		}, nil)
	eng.On("PredictFrames", mock.Anything,
		[]string{"/data/tmp/frames-vid-1/frame_00000.jpg", "/data/tmp/frames-vid-1/frame_00001.jpg"}).
		Return(&engine.Result{Text: "hello", Confidence: 0.7, ModelVersion: "v1"}, nil).Once()
	predictions.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

	pred, err := svc.PredictVideo(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, pred.VideoID)
	assert.Equal(t, "vid-1", *pred.VideoID)

	eng.AssertNotCalled(t, "PredictVideo", mock.Anything, mock.Anything)
}

func TestPredictVideo_FallsBackToWholeVideo(t *testing.T) {
	eng := new(MockEngine)
	videos := new(MockVideoRepo)
	frames := new(MockFrameRepo)
	predictions := new(MockPredictionRepo)
	svc := newTestInferenceService(eng, videos, frames, predictions)

	videos.On("GetByID", mock.Anything, "vid-1").
		Return(&models.Video{ID: "vid-1", FilePath: "/data/uploads/vid-1.mp4"}, nil)
	frames.On("ListByVideo", mock.Anything, "vid-1").
		Return([]models.ExtractedFrame{}, nil)
	eng.On("PredictVideo", mock.Anything, "/data/uploads/vid-1.mp4").
		Return(&engine.Result{Text: "hi", Confidence: 0.6, ModelVersion: "v1"}, nil).Once()
	predictions.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.PredictVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	eng.AssertExpectations(t)
}

func TestPredictVideoAsync_RejectsWhenSaturated(t *testing.T) {
	eng := new(MockEngine)
	videos := new(MockVideoRepo)
	frames := new(MockFrameRepo)
	predictions := new(MockPredictionRepo)
	svc := newTestInferenceService(eng, videos, frames, predictions)

	release := make(chan struct{})
	videos.On("GetByID", mock.Anything, "vid-1").
		Return(&models.Video{ID: "vid-1", FilePath: "/data/uploads/vid-1.mp4"}, nil)
	frames.On("ListByVideo", mock.Anything, "vid-1").
		Return([]models.ExtractedFrame{}, nil)
	eng.On("PredictVideo", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&engine.Result{Text: "x", Confidence: 0.9, ModelVersion: "v1"}, nil)
	predictions.On("Insert", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.PredictVideoAsync("vid-1"))

	// pool size is 1; the second submission must be rejected, not queued
	err := svc.PredictVideoAsync("vid-1")
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	close(release)
	assert.Eventually(t, func() bool {
		return svc.PredictVideoAsync("vid-1") == nil
	}, 2*time.Second, 10*time.Millisecond)
}
