package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/services"
)

type stubLive struct {
	sess *services.LiveSessionInfo
}

func (s *stubLive) CreateSession(ctx context.Context, ownerID string) (*services.LiveSessionInfo, error) {
	return s.sess, nil
}

func (s *stubLive) SubmitFrame(ctx context.Context, sessionID string, frame []byte) (models.LiveEvent, error) {
	return models.NewProgressEvent(1, 30), nil
}

func (s *stubLive) CloseSession(ctx context.Context, sessionID string) error { return nil }

func (s *stubLive) GetSession(ctx context.Context, sessionID string) (*services.LiveSessionInfo, error) {
	return s.sess, nil
}

func (s *stubLive) Start(ctx context.Context) {}
func (s *stubLive) Stop()                     {}

// The writer half of the socket must notice a client disconnect on its own,
// not only after the session channel delivers its next event. The broker
// here is unreachable, so nothing ever arrives on the pubsub side and the
// handler can only return via the read half closing.
func TestLiveWS_ReturnsWhenClientDisconnects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	live := &stubLive{sess: &services.LiveSessionInfo{
		SessionID: "sess-1",
		OwnerID:   "user-1",
		CreatedAt: time.Now().UTC(),
	}}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	h := NewWSHandler(live, rdb)
	handlerDone := make(chan struct{})

	r := gin.New()
	r.GET("/ws/live/:session_id", func(c *gin.Context) {
		c.Set("user_id", "user-1")
		h.LiveWS(c)
		close(handlerDone)
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live/sess-1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, conn.Close())

	select {
	case <-handlerDone:
	case <-time.After(3 * time.Second):
		t.Fatal("handler kept running after the client disconnected")
	}
}
