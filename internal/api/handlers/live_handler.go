package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mongorepo "github.com/signsense/signsense/internal/repositories/mongo"
	"github.com/signsense/signsense/internal/services"
	"github.com/signsense/signsense/internal/utils"
)

type LiveHandler struct {
	live        services.LiveService
	transcripts mongorepo.TranscriptRepository
}

func NewLiveHandler(live services.LiveService, transcripts mongorepo.TranscriptRepository) *LiveHandler {
	return &LiveHandler{live: live, transcripts: transcripts}
}

func (h *LiveHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	info, err := h.live.CreateSession(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

type submitFrameReq struct {
	FrameBase64 string `json:"frame_base64"`
}

// SubmitFrame is the HTTP alternative to the WebSocket path. The response
// is whatever event the frame produced: progress, result or error.
func (h *LiveHandler) SubmitFrame(c *gin.Context) {
	const op = "LiveHandler.SubmitFrame"

	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req submitFrameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid json body", err))
		return
	}

	frame, err := decodeFrame(req.FrameBase64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid frame_base64", err))
		return
	}

	event, err := h.live.SubmitFrame(c.Request.Context(), sess.SessionID, frame)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *LiveHandler) Get(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *LiveHandler) Close(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.live.CloseSession(c.Request.Context(), sess.SessionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Transcript returns the per-window prediction history of a session, oldest
// first. History survives session close until the TTL expires it.
func (h *LiveHandler) Transcript(c *gin.Context) {
	const op = "LiveHandler.Transcript"

	if _, ok := requireUserID(c); !ok {
		return
	}
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing session_id", nil))
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "200"), 10, 64)
	rows, err := h.transcripts.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to load transcript", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "windows": rows})
}

func (h *LiveHandler) ownedSession(c *gin.Context) (*services.LiveSessionInfo, bool) {
	const op = "LiveHandler"

	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing session_id", nil))
		return nil, false
	}

	sess, err := h.live.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sess.OwnerID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return sess, true
}

func decodeFrame(b64 string) ([]byte, error) {
	raw := b64
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	return base64.StdEncoding.DecodeString(raw)
}
