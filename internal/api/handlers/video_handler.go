package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/signsense/signsense/internal/models"
	"github.com/signsense/signsense/internal/services"
	"github.com/signsense/signsense/internal/utils"
)

const maxUploadBytes = 200 << 20

var allowedVideoTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/quicktime":  {},
	"video/webm":       {},
	"video/x-matroska": {},
	"video/x-msvideo":  {},
}

type VideoHandler struct {
	videos    services.VideoService
	pipeline  services.PipelineService
	inference services.InferenceService
}

func NewVideoHandler(videos services.VideoService, pipeline services.PipelineService, inference services.InferenceService) *VideoHandler {
	return &VideoHandler{videos: videos, pipeline: pipeline, inference: inference}
}

// Upload accepts a multipart video, stores it and submits the processing
// pipeline in one go. The response carries both the video and the job id.
func (h *VideoHandler) Upload(c *gin.Context) {
	const op = "VideoHandler.Upload"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("video")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "multipart field 'video' is required", err))
		return
	}
	if fh.Size > maxUploadBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "video exceeds the upload size limit", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer f.Close()

	// sniff real content type instead of trusting the part header
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	mimeType := http.DetectContentType(head[:n])
	if !acceptableVideoType(mimeType, fh.Filename) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unsupported video format", nil))
		return
	}
	body := io.MultiReader(strings.NewReader(string(head[:n])), f)

	video, err := h.videos.Upload(c.Request.Context(), services.UploadInput{
		UserID:   userID,
		FileName: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Body:     io.LimitReader(body, maxUploadBytes),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	jobID, err := h.pipeline.SubmitFullPipeline(c.Request.Context(), video.ID)
	if err != nil {
		// the upload itself succeeded; report it with the submission failure
		c.JSON(http.StatusAccepted, gin.H{
			"video":            video,
			"job_id":           nil,
			"processing_error": "failed to submit processing, retry via POST /videos/:video_id/process",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"video": video, "job_id": jobID})
}

func (h *VideoHandler) Get(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *VideoHandler) GetMetadata(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	meta, err := h.videos.GetMetadata(c.Request.Context(), video.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *VideoHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.videos.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": rows})
}

// Status returns the merged job and prediction snapshot for polling clients.
func (h *VideoHandler) Status(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	view, err := h.videos.GetStatus(c.Request.Context(), video.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Process submits a fresh pipeline run for an already-uploaded video. Used
// to retry after a failed run; an in-flight run yields a conflict.
func (h *VideoHandler) Process(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	jobID, err := h.pipeline.SubmitFullPipeline(c.Request.Context(), video.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// ProcessAny resubmits processing for any video regardless of owner. Admin
// only; used to recover stuck uploads on behalf of users.
func (h *VideoHandler) ProcessAny(c *gin.Context) {
	const op = "VideoHandler.ProcessAny"

	videoID := c.Param("video_id")
	if videoID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing video_id", nil))
		return
	}
	jobID, err := h.pipeline.SubmitFullPipeline(c.Request.Context(), videoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// Predict runs inference synchronously against the video's extracted frames
// and returns the persisted prediction.
func (h *VideoHandler) Predict(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	pred, err := h.inference.PredictVideo(c.Request.Context(), video.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

func (h *VideoHandler) Delete(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	if err := h.videos.Delete(c.Request.Context(), video.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VideoHandler) GetJob(c *gin.Context) {
	const op = "VideoHandler.GetJob"

	if _, ok := requireUserID(c); !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing job_id", nil))
		return
	}
	job, err := h.pipeline.GetJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ownedVideo loads the path video and checks the caller owns it.
func (h *VideoHandler) ownedVideo(c *gin.Context) (*models.Video, bool) {
	const op = "VideoHandler"

	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	videoID := c.Param("video_id")
	if videoID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing video_id", nil))
		return nil, false
	}

	v, err := h.videos.Get(c.Request.Context(), videoID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if v.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return v, true
}

func acceptableVideoType(sniffed, filename string) bool {
	if _, ok := allowedVideoTypes[sniffed]; ok {
		return true
	}
	// mp4/mov often sniff as application/octet-stream; fall back to extension
	if sniffed == "application/octet-stream" {
		switch strings.ToLower(lastExt(filename)) {
		case ".mp4", ".mov", ".webm", ".mkv", ".avi":
			return true
		}
	}
	return false
}

func lastExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
