package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/signsense/signsense/config"
	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/relay"
	mongorepo "github.com/signsense/signsense/internal/repositories/mongo"
	"github.com/signsense/signsense/internal/utils"
)

var liveWindowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signsense_live_windows_total",
	Help: "Total number of dispatched live windows",
}, []string{"outcome"})

// LiveSessionInfo is the caller-visible view of a session.
type LiveSessionInfo struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LiveService owns the process-wide session registry. All buffer mutation
// happens under per-session locks behind the four operations below; nothing
// else may touch a buffer.
type LiveService interface {
	CreateSession(ctx context.Context, ownerID string) (*LiveSessionInfo, error)
	// SubmitFrame appends one frame. Below a full window it returns a
	// progress event immediately; the frame that fills the window drains the
	// buffer and blocks until the dispatched inference returns, errors, or
	// hits the deadline.
	SubmitFrame(ctx context.Context, sessionID string, frame []byte) (models.LiveEvent, error)
	// CloseSession discards the buffer. Idempotent: closing a session that
	// is already gone is not an error.
	CloseSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*LiveSessionInfo, error)
	// Start launches the idle-session sweeper; Stop tears it down.
	Start(ctx context.Context)
	Stop()
}

type liveSession struct {
	id        string
	ownerID   string
	createdAt time.Time

	mu          sync.Mutex // guards frames, windowIndex, lastActive
	frames      [][]byte
	windowIndex int64
	lastActive  time.Time

	dispatchMu sync.Mutex // serializes window dispatch for this session
}

type liveService struct {
	mu       sync.RWMutex // guards the registry map only
	sessions map[string]*liveSession

	inference   InferenceService
	relay       relay.Publisher
	transcripts mongorepo.TranscriptRepository
	log         *logrus.Logger
	cfg         config.Processing

	dispatchSem chan struct{} // bounded live-dispatch pool

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewLiveService(
	inference InferenceService,
	pub relay.Publisher,
	transcripts mongorepo.TranscriptRepository,
	log *logrus.Logger,
	cfg config.Processing,
) LiveService {
	concurrency := cfg.LiveConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &liveService{
		sessions:    make(map[string]*liveSession),
		inference:   inference,
		relay:       pub,
		transcripts: transcripts,
		log:         log,
		cfg:         cfg,
		dispatchSem: make(chan struct{}, concurrency),
		stopCh:      make(chan struct{}),
	}
}

func (s *liveService) CreateSession(ctx context.Context, ownerID string) (*LiveSessionInfo, error) {
	const op = "LiveService.CreateSession"

	if ownerID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "owner_id is required", nil)
	}

	sess := &liveSession{
		id:         uuid.NewString(),
		ownerID:    ownerID,
		createdAt:  time.Now().UTC(),
		lastActive: time.Now().UTC(),
		frames:     make([][]byte, 0, s.cfg.WindowSize),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session_id": sess.id, "owner_id": ownerID}).Info("live session created")
	return &LiveSessionInfo{SessionID: sess.id, OwnerID: ownerID, CreatedAt: sess.createdAt}, nil
}

func (s *liveService) GetSession(ctx context.Context, sessionID string) (*LiveSessionInfo, error) {
	const op = "LiveService.GetSession"

	sess, ok := s.lookup(sessionID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return &LiveSessionInfo{SessionID: sess.id, OwnerID: sess.ownerID, CreatedAt: sess.createdAt}, nil
}

func (s *liveService) SubmitFrame(ctx context.Context, sessionID string, frame []byte) (models.LiveEvent, error) {
	const op = "LiveService.SubmitFrame"

	if len(frame) == 0 {
		return models.LiveEvent{}, utils.E(utils.CodeInvalidArgument, op, "frame payload is empty", nil)
	}
	sess, ok := s.lookup(sessionID)
	if !ok {
		return models.LiveEvent{}, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}

	// append and, if this frame completes the window, drain atomically
	sess.mu.Lock()
	sess.lastActive = time.Now().UTC()
	sess.frames = append(sess.frames, frame)
	count := len(sess.frames)
	if count < s.cfg.WindowSize {
		sess.mu.Unlock()
		event := models.NewProgressEvent(count, s.cfg.WindowSize)
		s.publish(ctx, sessionID, event)
		return event, nil
	}
	window := sess.frames
	sess.frames = make([][]byte, 0, s.cfg.WindowSize)
	windowIndex := sess.windowIndex
	sess.windowIndex++
	sess.mu.Unlock()

	return s.dispatchWindow(ctx, sess, window, windowIndex)
}

// dispatchWindow runs one full window against the engine under the hard
// deadline. The buffer was already drained, so new frames accumulate freely
// while this is in flight; dispatchMu keeps it to one dispatch per session.
func (s *liveService) dispatchWindow(ctx context.Context, sess *liveSession, window [][]byte, windowIndex int64) (models.LiveEvent, error) {
	sess.dispatchMu.Lock()
	defer sess.dispatchMu.Unlock()

	select {
	case s.dispatchSem <- struct{}{}:
	case <-ctx.Done():
		event := models.NewErrorEvent(models.ErrorKindTimeout, "window dispatch cancelled before start")
		s.publish(context.Background(), sess.id, event)
		return event, nil
	}
	defer func() { <-s.dispatchSem }()

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	pred, err := s.inference.PredictWindow(dctx, sess.id, window)
	if err != nil {
		outcome := "error"
		kind := models.ErrorKindInference
		msg := "inference failed for window"
		if utils.IsCode(err, utils.CodeTimeout) || errors.Is(dctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
			kind = models.ErrorKindTimeout
			msg = "window inference timed out"
		}
		liveWindowsTotal.WithLabelValues(outcome).Inc()
		s.log.WithFields(logrus.Fields{
			"session_id":   sess.id,
			"window_index": windowIndex,
		}).WithError(err).Warn(msg)

		event := models.NewErrorEvent(kind, msg)
		s.publish(context.Background(), sess.id, event)
		return event, nil
	}

	liveWindowsTotal.WithLabelValues("result").Inc()

	if s.transcripts != nil {
		if terr := s.transcripts.InsertWindow(dctx, &models.LiveTranscript{
			SessionID:        sess.id,
			WindowIndex:      windowIndex,
			PredictedText:    pred.PredictedText,
			Confidence:       pred.ConfidenceScore,
			ModelVersion:     pred.ModelVersion,
			ProcessingTimeMs: pred.ProcessingTimeMs,
			Timestamp:        time.Now().UTC(),
			ExpiresAt:        time.Now().UTC().Add(s.cfg.TranscriptTTL),
		}); terr != nil {
			s.log.WithField("session_id", sess.id).WithError(terr).Warn("failed to record live transcript")
		}
	}

	event := models.NewResultEvent(pred.PredictedText, pred.ConfidenceScore, pred.ModelVersion)
	s.publish(ctx, sess.id, event)
	return event, nil
}

func (s *liveService) CloseSession(ctx context.Context, sessionID string) error {
	const op = "LiveService.CloseSession"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil // already gone
	}

	sess.mu.Lock()
	sess.frames = nil
	sess.mu.Unlock()

	s.log.WithField("session_id", sessionID).Info("live session closed")
	return nil
}

func (s *liveService) Start(ctx context.Context) {
	interval := s.cfg.SessionIdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweepIdle()
			}
		}
	}()
}

func (s *liveService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *liveService) sweepIdle() {
	cutoff := time.Now().UTC().Add(-s.cfg.SessionIdleTTL)

	s.mu.Lock()
	var expired []*liveSession
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.mu.Lock()
		sess.frames = nil
		sess.mu.Unlock()
		s.log.WithField("session_id", sess.id).Info("idle live session swept")
	}
}

func (s *liveService) lookup(sessionID string) (*liveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

func (s *liveService) publish(ctx context.Context, sessionID string, event models.LiveEvent) {
	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, relay.SessionChannel(sessionID), event); err != nil {
		s.log.WithField("session_id", sessionID).WithError(err).Debug("event publish failed")
	}
}
