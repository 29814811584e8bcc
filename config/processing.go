package config

import (
	"os"
	"strconv"
	"time"
)

// Processing groups the pipeline and live-session tunables. Defaults match
// the reference policy: 30-frame windows dispatched under a 30s deadline,
// 1s sampling capped at 1000 frames, every 30th frame flagged as key.
type Processing struct {
	WindowSize      int
	DispatchTimeout time.Duration
	SessionIdleTTL  time.Duration
	LiveConcurrency int

	PipelineWorkers      int
	InferenceConcurrency int

	SampleIntervalSeconds float64
	MaxFrames             int
	KeyframeStride        int

	// JobStaleAfter bounds how long a pipeline job may sit in a
	// non-terminal state before a resubmission treats it as abandoned.
	JobStaleAfter time.Duration

	TranscriptTTL time.Duration
}

func LoadProcessing() Processing {
	return Processing{
		WindowSize:      getEnvAsIntOrDefault("LIVE_WINDOW_SIZE", 30),
		DispatchTimeout: time.Duration(getEnvAsIntOrDefault("LIVE_DISPATCH_TIMEOUT_SECONDS", 30)) * time.Second,
		SessionIdleTTL:  time.Duration(getEnvAsIntOrDefault("LIVE_SESSION_IDLE_SECONDS", 300)) * time.Second,
		LiveConcurrency: getEnvAsIntOrDefault("LIVE_DISPATCH_CONCURRENCY", 8),

		PipelineWorkers:      getEnvAsIntOrDefault("PIPELINE_WORKERS", 4),
		InferenceConcurrency: getEnvAsIntOrDefault("INFERENCE_CONCURRENCY", 4),

		SampleIntervalSeconds: getEnvAsFloatOrDefault("FRAME_SAMPLE_INTERVAL_SECONDS", 1.0),
		MaxFrames:             getEnvAsIntOrDefault("FRAME_MAX_COUNT", 1000),
		KeyframeStride:        getEnvAsIntOrDefault("FRAME_KEYFRAME_STRIDE", 30),

		JobStaleAfter: time.Duration(getEnvAsIntOrDefault("PIPELINE_JOB_STALE_SECONDS", 3600)) * time.Second,

		TranscriptTTL: time.Duration(getEnvAsIntOrDefault("TRANSCRIPT_TTL_HOURS", 24)) * time.Hour,
	}
}

func GetEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
