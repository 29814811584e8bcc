package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/signsense/signsense/internal/relay"
	"github.com/signsense/signsense/internal/services"
	"github.com/signsense/signsense/internal/utils"
)

type WSHandler struct {
	live     services.LiveService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(live services.LiveService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		live:  live,
		redis: rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type        string `json:"type"`
	FrameBase64 string `json:"frame_base64"`

	// close_session -> no fields
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// LiveWS streams camera frames in and session events out. Frames go through
// the same SubmitFrame path as the HTTP route; events reach the socket via
// the Redis session channel, so a session can be watched from more than one
// connection.
func (h *WSHandler) LiveWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.LiveWS", "missing session_id", nil))
		return
	}

	// authorize session ownership
	sess, err := h.live.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.OwnerID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.LiveWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe Redis -> WS
	pubsub := h.redis.Subscribe(ctx, relay.SessionChannel(sessionID))
	defer pubsub.Close()

	// reader: WS frames -> live service
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","kind":"input","message":"invalid json"}`))
				continue
			}

			switch msg.Type {
			case "frame":
				frame, derr := decodeFrame(msg.FrameBase64)
				if derr != nil || len(frame) == 0 {
					_ = wc.writeText([]byte(`{"type":"error","kind":"input","message":"frame_base64 required"}`))
					continue
				}

				// events come back on the pubsub channel; the return value
				// is only checked so hard failures surface on this socket
				if _, serr := h.live.SubmitFrame(ctx, sessionID, frame); serr != nil {
					_ = wc.writeText([]byte(`{"type":"error","kind":"internal","message":"frame rejected"}`))
				}

			case "close_session":
				_ = h.live.CloseSession(ctx, sessionID)
				return

			default:
				_ = wc.writeText([]byte(`{"type":"error","kind":"input","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS. Receiving through Channel keeps the
	// loop selectable, so a client disconnect tears the handler down
	// immediately instead of after the next published event.
	events := pubsub.Channel()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case m, open := <-events:
			if !open {
				return
			}
			// forward as-is (payload expected JSON string)
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
