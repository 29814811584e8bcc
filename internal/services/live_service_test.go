package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/signsense/signsense/config"
	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/utils"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func liveTestConfig(windowSize int, dispatchTimeout time.Duration) config.Processing {
	return config.Processing{
		WindowSize:      windowSize,
		DispatchTimeout: dispatchTimeout,
		SessionIdleTTL:  5 * time.Minute,
		LiveConcurrency: 4,
	}
}

func newTestLiveService(inference *MockInference, cfg config.Processing) LiveService {
	return NewLiveService(inference, nil, nil, testLogger(), cfg)
}

func TestSubmitFrame_ProgressUntilWindowFull(t *testing.T) {
	inference := new(MockInference)
	svc := newTestLiveService(inference, liveTestConfig(30, 30*time.Second))
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	conf := 0.92
	inference.On("PredictWindow", mock.Anything, sess.SessionID, mock.Anything).
		Return(&models.Prediction{
			PredictedText:   "hello",
			ConfidenceScore: conf,
			ModelVersion:    "v1",
		}, nil).Once()

	for i := 1; i < 30; i++ {
		event, err := svc.SubmitFrame(ctx, sess.SessionID, []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, models.EventProgress, event.Type)
		assert.Equal(t, i, event.FrameCount)
		assert.Equal(t, 30, event.WindowSize)
	}

	event, err := svc.SubmitFrame(ctx, sess.SessionID, []byte{30})
	require.NoError(t, err)
	assert.Equal(t, models.EventResult, event.Type)
	assert.Equal(t, "hello", event.PredictedText)
	require.NotNil(t, event.Confidence)
	assert.Equal(t, conf, *event.Confidence)

	inference.AssertNumberOfCalls(t, "PredictWindow", 1)

	// the dispatched window held exactly the 30 buffered frames
	window := inference.Calls[0].Arguments.Get(2).([][]byte)
	assert.Len(t, window, 30)
}

func TestSubmitFrame_TimeoutEventAndDrainedBuffer(t *testing.T) {
	inference := new(MockInference)
	cfg := liveTestConfig(2, 50*time.Millisecond)
	svc := newTestLiveService(inference, cfg)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	inference.On("PredictWindow", mock.Anything, sess.SessionID, mock.Anything).
		Run(func(args mock.Arguments) {
			dctx := args.Get(0).(context.Context)
			<-dctx.Done() // engine never answers
		}).
		Return(nil, utils.E(utils.CodeTimeout, "InferenceService.PredictWindow", "window inference timed out", context.DeadlineExceeded)).
		Once()

	_, err = svc.SubmitFrame(ctx, sess.SessionID, []byte{1})
	require.NoError(t, err)

	start := time.Now()
	event, err := svc.SubmitFrame(ctx, sess.SessionID, []byte{2})
	require.NoError(t, err)

	assert.Equal(t, models.EventError, event.Type)
	assert.Equal(t, models.ErrorKindTimeout, event.Kind)
	assert.Less(t, time.Since(start), cfg.DispatchTimeout+time.Second,
		"dispatch must give up at the deadline, not hang")

	// the window was drained before dispatch, so the next frame starts fresh
	next, err := svc.SubmitFrame(ctx, sess.SessionID, []byte{3})
	require.NoError(t, err)
	assert.Equal(t, models.EventProgress, next.Type)
	assert.Equal(t, 1, next.FrameCount)
}

func TestSubmitFrame_InferenceErrorIsNotTimeout(t *testing.T) {
	inference := new(MockInference)
	svc := newTestLiveService(inference, liveTestConfig(1, 30*time.Second))
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	inference.On("PredictWindow", mock.Anything, sess.SessionID, mock.Anything).
		Return(nil, utils.E(utils.CodeUnavailable, "InferenceService.PredictWindow", "inference engine call failed", nil)).
		Once()

	event, err := svc.SubmitFrame(ctx, sess.SessionID, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, models.EventError, event.Type)
	assert.Equal(t, models.ErrorKindInference, event.Kind)
}

func TestSubmitFrame_SessionsAreIsolated(t *testing.T) {
	inference := new(MockInference)
	svc := newTestLiveService(inference, liveTestConfig(3, 30*time.Second))
	ctx := context.Background()

	a, err := svc.CreateSession(ctx, "user-a")
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, "user-b")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.SubmitFrame(ctx, a.SessionID, []byte{byte(i)})
		require.NoError(t, err)
	}

	// b's frame count is unaffected by a's two frames
	event, err := svc.SubmitFrame(ctx, b.SessionID, []byte{9})
	require.NoError(t, err)
	assert.Equal(t, 1, event.FrameCount)

	inference.AssertNotCalled(t, "PredictWindow", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitFrame_Validation(t *testing.T) {
	inference := new(MockInference)
	svc := newTestLiveService(inference, liveTestConfig(30, 30*time.Second))
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.SubmitFrame(ctx, sess.SessionID, nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.SubmitFrame(ctx, "no-such-session", []byte{1})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestCloseSession_Idempotent(t *testing.T) {
	inference := new(MockInference)
	svc := newTestLiveService(inference, liveTestConfig(30, 30*time.Second))
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(ctx, sess.SessionID))
	require.NoError(t, svc.CloseSession(ctx, sess.SessionID))

	// frames after close are rejected, not buffered
	_, err = svc.SubmitFrame(ctx, sess.SessionID, []byte{1})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSweepIdle_RemovesStaleSessions(t *testing.T) {
	inference := new(MockInference)
	cfg := liveTestConfig(30, 30*time.Second)
	cfg.SessionIdleTTL = 10 * time.Millisecond
	svc := newTestLiveService(inference, cfg).(*liveService)
	ctx := context.Background()

	stale, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fresh, err := svc.CreateSession(ctx, "user-2")
	require.NoError(t, err)

	svc.sweepIdle()

	_, err = svc.GetSession(ctx, stale.SessionID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	_, err = svc.GetSession(ctx, fresh.SessionID)
	assert.NoError(t, err)
}
