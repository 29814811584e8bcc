package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/providers/engine"
	"github.com/signsense/signsense/internal/relay"
	pgrepo "github.com/signsense/signsense/internal/repositories/postgres"
	"github.com/signsense/signsense/internal/utils"
)

var predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signsense_predictions_total",
	Help: "Total number of persisted predictions",
}, []string{"source", "level"})

// InferenceService is the gateway to the external prediction engine. Every
// successful invocation persists exactly one Prediction row; prior rows are
// never touched implicitly.
type InferenceService interface {
	PredictVideo(ctx context.Context, videoID string) (*models.Prediction, error)
	// PredictVideoAsync returns immediately; consumers poll video status for
	// the latest prediction. Rejected with UNAVAILABLE when the bounded
	// inference pool is saturated.
	PredictVideoAsync(videoID string) error
	PredictWindow(ctx context.Context, sessionID string, frames [][]byte) (*models.Prediction, error)
}

type inferenceService struct {
	engine      engine.Provider
	videos      pgrepo.VideoRepository
	frames      pgrepo.FrameRepository
	predictions pgrepo.PredictionRepository
	relay       relay.Publisher
	log         *logrus.Logger

	sem          chan struct{}
	asyncTimeout time.Duration
}

func NewInferenceService(
	eng engine.Provider,
	videos pgrepo.VideoRepository,
	frames pgrepo.FrameRepository,
	predictions pgrepo.PredictionRepository,
	pub relay.Publisher,
	log *logrus.Logger,
	concurrency int,
) InferenceService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &inferenceService{
		engine:       eng,
		videos:       videos,
		frames:       frames,
		predictions:  predictions,
		relay:        pub,
		log:          log,
		sem:          make(chan struct{}, concurrency),
		asyncTimeout: 10 * time.Minute,
	}
}

func (s *inferenceService) PredictVideo(ctx context.Context, videoID string) (*models.Prediction, error) {
	const op = "InferenceService.PredictVideo"

	if videoID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "video_id is required", nil)
	}

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load video", err)
	}

	frames, err := s.frames.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load extracted frames", err)
	}

	start := time.Now()
	var result *engine.Result
	if len(frames) > 0 {
		paths := make([]string, len(frames))
		for i, f := range frames {
			paths[i] = f.FilePath
		}
		result, err = s.engine.PredictFrames(ctx, paths)
	} else {
		result, err = s.engine.PredictVideo(ctx, video.FilePath)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "inference engine call failed", err)
	}

	pred, err := s.persist(ctx, result, &videoID, nil, time.Since(start), "video")
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist prediction", err)
	}

	if s.relay != nil {
		_ = s.relay.Publish(ctx, relay.VideoChannel(videoID),
			models.NewResultEvent(pred.PredictedText, pred.ConfidenceScore, pred.ModelVersion))
	}
	return pred, nil
}

func (s *inferenceService) PredictVideoAsync(videoID string) error {
	const op = "InferenceService.PredictVideoAsync"

	select {
	case s.sem <- struct{}{}:
	default:
		return utils.E(utils.CodeUnavailable, op, "inference pool is saturated", nil)
	}

	go func() {
		defer func() { <-s.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()

		if _, err := s.PredictVideo(ctx, videoID); err != nil {
			s.log.WithField("video_id", videoID).WithError(err).Error("async inference failed")
			if s.relay != nil {
				_ = s.relay.Publish(ctx, relay.VideoChannel(videoID),
					models.NewErrorEvent(models.ErrorKindInference, "inference failed"))
			}
		}
	}()
	return nil
}

func (s *inferenceService) PredictWindow(ctx context.Context, sessionID string, frames [][]byte) (*models.Prediction, error) {
	const op = "InferenceService.PredictWindow"

	if sessionID == "" || len(frames) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and a non-empty window are required", nil)
	}

	start := time.Now()
	result, err := s.engine.PredictWindow(ctx, frames)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, utils.E(utils.CodeTimeout, op, "window inference timed out", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "inference engine call failed", err)
	}

	pred, err := s.persist(ctx, result, nil, &sessionID, time.Since(start), "live")
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist prediction", err)
	}
	return pred, nil
}

func (s *inferenceService) persist(ctx context.Context, result *engine.Result, videoID, sessionID *string, elapsed time.Duration, source string) (*models.Prediction, error) {
	level := ClassifyConfidence(result.Confidence)

	entry := s.log.WithFields(logrus.Fields{
		"confidence": result.Confidence,
		"level":      level,
		"model":      result.ModelVersion,
	})
	if level == ConfidenceVeryLow {
		entry.Warn("very low confidence, likely feature-normalization failure upstream")
	} else {
		entry.Debug("prediction classified")
	}

	procMS := result.ProcessingTimeMs
	if procMS == 0 {
		procMS = elapsed.Milliseconds()
	}

	pred := &models.Prediction{
		ID:               uuid.NewString(),
		VideoID:          videoID,
		SessionID:        sessionID,
		PredictedText:    result.Text,
		ConfidenceScore:  result.Confidence,
		ProcessingTimeMs: procMS,
		ModelVersion:     result.ModelVersion,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.predictions.Insert(ctx, pred); err != nil {
		return nil, err
	}

	predictionsTotal.WithLabelValues(source, string(level)).Inc()
	return pred, nil
}
