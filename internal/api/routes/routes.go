package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signsense/signsense/internal/api/handlers"
	"github.com/signsense/signsense/internal/api/middleware"
)

type Deps struct {
	Video *handlers.VideoHandler
	Live  *handlers.LiveHandler
	WS    *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/videos", d.Video.Upload)
	auth.GET("/videos", d.Video.List)
	auth.GET("/videos/:video_id", d.Video.Get)
	auth.GET("/videos/:video_id/metadata", d.Video.GetMetadata)
	auth.GET("/videos/:video_id/status", d.Video.Status)
	auth.POST("/videos/:video_id/process", d.Video.Process)
	auth.POST("/videos/:video_id/predict", d.Video.Predict)
	auth.DELETE("/videos/:video_id", d.Video.Delete)

	auth.GET("/jobs/:job_id", d.Video.GetJob)

	auth.POST("/live/sessions", d.Live.Create)
	auth.GET("/live/sessions/:session_id", d.Live.Get)
	auth.POST("/live/sessions/:session_id/frames", d.Live.SubmitFrame)
	auth.GET("/live/sessions/:session_id/transcript", d.Live.Transcript)
	auth.DELETE("/live/sessions/:session_id", d.Live.Close)

	// WebSocket
	auth.GET("/ws/live/:session_id", d.WS.LiveWS)

	// Admin maintenance
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/videos/:video_id/process", d.Video.ProcessAny)
}
