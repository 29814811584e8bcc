package engine

import "context"

// Result is what the external pose/ML engine returns. The engine is the
// sole source of truth for predicted text; callers never alter it.
type Result struct {
	Text             string
	Confidence       float64
	ModelVersion     string
	ProcessingTimeMs int64
}

// Provider is the black-box prediction engine: bytes or frame files in,
// a prediction with a confidence score out.
type Provider interface {
	// PredictVideo runs inference over a whole stored video file.
	PredictVideo(ctx context.Context, videoPath string) (*Result, error)
	// PredictFrames runs inference over a batch of extracted frame files.
	PredictFrames(ctx context.Context, framePaths []string) (*Result, error)
	// PredictWindow runs inference over one live window of raw frame payloads.
	PredictWindow(ctx context.Context, frames [][]byte) (*Result, error)
	Close() error
}
