package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/signsense/signsense/config"
	"github.com/signsense/signsense/internal/media"
	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/relay"
	pgrepo "github.com/signsense/signsense/internal/repositories/postgres"
	"github.com/signsense/signsense/internal/storage"
	"github.com/signsense/signsense/internal/utils"
)

// PipelineStream is the Redis stream the bounded worker pool consumes.
const PipelineStream = "videos:process"

var (
	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signsense_pipeline_duration_seconds",
		Help:    "Duration of full pipeline runs in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	pipelineJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signsense_pipeline_jobs_total",
		Help: "Total number of pipeline jobs run",
	}, []string{"status"})
)

// PipelineService orchestrates metadata probe, thumbnail generation and
// frame extraction as one tracked ProcessingJob. Submission never blocks
// the caller; execution happens on the worker pool.
type PipelineService interface {
	SubmitFullPipeline(ctx context.Context, videoID string) (jobID string, err error)
	// Execute runs one submitted job to a terminal status. Called by the
	// pipeline worker pool, never by request handlers.
	Execute(ctx context.Context, jobID string) error
	GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error)
}

type pipelineService struct {
	videos    pgrepo.VideoRepository
	jobs      pgrepo.JobRepository
	frames    pgrepo.FrameRepository
	store     storage.Store
	uploader  storage.Uploader // optional thumbnail publishing
	prober    media.Prober
	thumbs    media.Thumbnailer
	extractor media.FrameExtractor
	inference InferenceService
	relay     relay.Publisher
	rdb       *redis.Client
	log       *logrus.Logger
	cfg       config.Processing
}

func NewPipelineService(
	videos pgrepo.VideoRepository,
	jobs pgrepo.JobRepository,
	frames pgrepo.FrameRepository,
	store storage.Store,
	uploader storage.Uploader,
	prober media.Prober,
	thumbs media.Thumbnailer,
	extractor media.FrameExtractor,
	inference InferenceService,
	pub relay.Publisher,
	rdb *redis.Client,
	log *logrus.Logger,
	cfg config.Processing,
) PipelineService {
	return &pipelineService{
		videos:    videos,
		jobs:      jobs,
		frames:    frames,
		store:     store,
		uploader:  uploader,
		prober:    prober,
		thumbs:    thumbs,
		extractor: extractor,
		inference: inference,
		relay:     pub,
		rdb:       rdb,
		log:       log,
		cfg:       cfg,
	}
}

func (s *pipelineService) SubmitFullPipeline(ctx context.Context, videoID string) (string, error) {
	const op = "PipelineService.SubmitFullPipeline"

	if videoID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "video_id is required", nil)
	}

	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to load video", err)
	}

	// one full-pipeline job in flight per video at a time. A job stuck
	// in a non-terminal state past the staleness window (worker killed
	// mid-run, message acked before the status flipped) is reclaimed
	// here so the video cannot wedge forever.
	if active, err := s.jobs.ActiveByVideo(ctx, videoID, models.JobTypeFullPipeline); err == nil {
		if !s.jobStale(active) {
			return "", utils.E(utils.CodeConflict, op, "a pipeline job is already in flight for this video", nil)
		}
		s.log.WithFields(logrus.Fields{"job_id": active.ID, "video_id": videoID, "status": active.Status}).
			Warn("reclaiming stale pipeline job")
		if err := s.jobs.MarkFailed(ctx, active.ID, "abandoned before reaching a terminal state"); err != nil {
			return "", utils.E(utils.CodeInternal, op, "failed to reclaim stale job", err)
		}
	} else if !errors.Is(err, utils.ErrNotFound) {
		return "", utils.E(utils.CodeInternal, op, "failed to check in-flight jobs", err)
	}

	job := &models.ProcessingJob{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		JobType:   models.JobTypeFullPipeline,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create job", err)
	}

	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: PipelineStream,
		Values: map[string]any{
			"job_id":   job.ID,
			"video_id": videoID,
		},
	}).Err(); err != nil {
		_ = s.jobs.MarkFailed(ctx, job.ID, "failed to enqueue job")
		return "", utils.E(utils.CodeUnavailable, op, "failed to enqueue job", err)
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "video_id": videoID}).Info("pipeline job submitted")
	return job.ID, nil
}

// jobStale reports whether a non-terminal job has outlived the staleness
// window. Processing jobs age from their start, pending ones from creation.
func (s *pipelineService) jobStale(job *models.ProcessingJob) bool {
	ttl := s.cfg.JobStaleAfter
	if ttl <= 0 {
		ttl = time.Hour
	}
	ref := job.CreatedAt
	if job.StartedAt != nil {
		ref = *job.StartedAt
	}
	return time.Since(ref) > ttl
}

func (s *pipelineService) GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	const op = "PipelineService.GetJob"

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	return job, nil
}

func (s *pipelineService) Execute(ctx context.Context, jobID string) error {
	const op = "PipelineService.Execute"

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	if job.Status != models.JobStatusPending {
		// stream redelivery of an already-handled message
		s.log.WithFields(logrus.Fields{"job_id": jobID, "status": job.Status}).Info("skipping non-pending job")
		return nil
	}

	video, err := s.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		return s.failJob(ctx, job, "video row disappeared before processing", err)
	}

	start := time.Now()
	status := "success"
	defer func() {
		pipelineDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		pipelineJobsTotal.WithLabelValues(status).Inc()
	}()

	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "video_id": video.ID})

	if err := s.jobs.MarkProcessing(ctx, job.ID, time.Now().UTC()); err != nil {
		status = "error"
		return utils.E(utils.CodeInternal, op, "failed to mark job processing", err)
	}
	_ = s.videos.SetStatus(ctx, video.ID, models.VideoStatusProcessing)
	s.publishProgress(ctx, video.ID, 0)

	// stage 0: the source must exist and be readable before any work starts
	if err := s.store.Exists(video.FilePath); err != nil {
		status = "error"
		return s.failJob(ctx, job, "source video is missing or unreadable", err)
	}

	// stage 1: metadata probe (load-bearing: frame extraction needs it)
	meta, err := s.prober.Probe(ctx, video.FilePath)
	if err != nil {
		status = "error"
		return s.failJob(ctx, job, "metadata extraction failed: "+err.Error(), err)
	}
	if err := s.videos.UpsertMetadata(ctx, &models.VideoMetadata{
		VideoID:         video.ID,
		DurationSeconds: meta.DurationSeconds,
		FrameRate:       meta.FrameRate,
		Width:           meta.Width,
		Height:          meta.Height,
		Bitrate:         meta.Bitrate,
		Codecs:          strings.Join(meta.Codecs, ","),
		HasAudio:        meta.HasAudio,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}); err != nil {
		status = "error"
		return s.failJob(ctx, job, "failed to persist video metadata", err)
	}
	_ = s.jobs.SetProgress(ctx, job.ID, 25)
	s.publishProgress(ctx, video.ID, 25)

	// stage 2: thumbnail; failure here never fails the job
	if err := s.generateThumbnail(ctx, video, meta); err != nil {
		log.WithError(err).Warn("thumbnail stage failed, continuing")
	}
	_ = s.jobs.SetProgress(ctx, job.ID, 50)
	s.publishProgress(ctx, video.ID, 50)

	// stage 3: frame extraction
	scratch, err := s.store.ScratchDir("frames-" + video.ID)
	if err != nil {
		status = "error"
		return s.failJob(ctx, job, "failed to allocate frame scratch dir", err)
	}
	extracted, err := s.extractor.Extract(ctx, video.FilePath, scratch, meta, media.ExtractOptions{
		IntervalSeconds: s.cfg.SampleIntervalSeconds,
		MaxFrames:       s.cfg.MaxFrames,
		KeyframeStride:  s.cfg.KeyframeStride,
	})
	if err != nil {
		_ = s.store.DeleteDir(scratch)
		status = "error"
		return s.failJob(ctx, job, "frame extraction failed: "+err.Error(), err)
	}

	// a retry is a fresh run: replace any frames from a previous attempt
	if err := s.frames.DeleteByVideo(ctx, video.ID); err != nil {
		log.WithError(err).Warn("failed to clear stale frames before insert")
	}
	rows := make([]models.ExtractedFrame, len(extracted))
	now := time.Now().UTC()
	for i, f := range extracted {
		rows[i] = models.ExtractedFrame{
			ID:               uuid.NewString(),
			VideoID:          video.ID,
			FrameNumber:      f.Number,
			TimestampSeconds: f.TimestampSeconds,
			FilePath:         f.FilePath,
			Width:            f.Width,
			Height:           f.Height,
			IsKeyframe:       f.IsKeyframe,
			CreatedAt:        now,
		}
	}
	if err := s.frames.InsertBatch(ctx, rows); err != nil {
		status = "error"
		return s.failJob(ctx, job, "failed to persist extracted frames", err)
	}

	summary, _ := json.Marshal(map[string]any{
		"frame_count":      len(rows),
		"interval_seconds": media.EffectiveInterval(meta.DurationSeconds, s.cfg.SampleIntervalSeconds, s.cfg.MaxFrames),
	})
	if err := s.jobs.MarkCompleted(ctx, job.ID, datatypes.JSON(summary)); err != nil {
		status = "error"
		return utils.E(utils.CodeInternal, op, "failed to mark job completed", err)
	}
	_ = s.videos.SetStatus(ctx, video.ID, models.VideoStatusProcessed)
	s.publishProgress(ctx, video.ID, 100)

	log.WithField("frames", len(rows)).Info("pipeline job completed")

	// explicit continuation: inference runs only after the job is complete,
	// never on a timer
	if s.inference != nil {
		if err := s.inference.PredictVideoAsync(video.ID); err != nil {
			log.WithError(err).Warn("failed to trigger inference after pipeline completion")
		}
	}
	return nil
}

func (s *pipelineService) generateThumbnail(ctx context.Context, video *models.Video, meta *media.Metadata) error {
	thumbPath := s.store.ThumbnailPath(video.ID + ".jpg")
	if err := s.thumbs.Thumbnail(ctx, video.FilePath, thumbPath, meta.DurationSeconds/2); err != nil {
		return err
	}

	stored := thumbPath
	if s.uploader != nil {
		f, err := os.Open(thumbPath)
		if err != nil {
			return err
		}
		defer f.Close()

		url, err := s.uploader.Upload(ctx, "thumbnails/"+filepath.Base(thumbPath), "image/jpeg", f)
		if err != nil {
			return fmt.Errorf("thumbnail upload failed: %w", err)
		}
		stored = url
	}
	return s.videos.SetThumbnailPath(ctx, video.ID, stored)
}

func (s *pipelineService) failJob(ctx context.Context, job *models.ProcessingJob, msg string, cause error) error {
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "video_id": job.VideoID}).
		WithError(cause).Error(msg)

	if err := s.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		s.log.WithField("job_id", job.ID).WithError(err).Error("failed to mark job failed")
	}
	_ = s.videos.SetStatus(ctx, job.VideoID, models.VideoStatusFailed)

	if s.relay != nil {
		_ = s.relay.Publish(ctx, relay.VideoChannel(job.VideoID),
			models.NewErrorEvent(models.ErrorKindInternal, msg))
	}
	return utils.E(utils.CodeInternal, "PipelineService.Execute", msg, cause)
}

func (s *pipelineService) publishProgress(ctx context.Context, videoID string, progress int) {
	if s.relay == nil {
		return
	}
	// job progress reuses the progress shape: n of 100
	_ = s.relay.Publish(ctx, relay.VideoChannel(videoID), models.NewProgressEvent(progress, 100))
}
