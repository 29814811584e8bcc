// Package media wraps ffmpeg/ffprobe for the three pipeline stages:
// metadata probing, thumbnail generation and interval frame extraction.
package media

import "context"

type Metadata struct {
	DurationSeconds float64
	FrameRate       float64
	Width           int
	Height          int
	Bitrate         int64
	Codecs          []string
	HasAudio        bool
}

type Frame struct {
	Number           int
	TimestampSeconds float64
	FilePath         string
	Width            int
	Height           int
	IsKeyframe       bool
}

type ExtractOptions struct {
	// IntervalSeconds is the base sampling interval; the effective interval
	// is stretched so at most MaxFrames frames are emitted.
	IntervalSeconds float64
	MaxFrames       int
	// KeyframeStride flags every Nth emitted frame as a keyframe.
	KeyframeStride int
}

type Prober interface {
	Probe(ctx context.Context, videoPath string) (*Metadata, error)
}

type Thumbnailer interface {
	Thumbnail(ctx context.Context, videoPath, outPath string, atSeconds float64) error
}

type FrameExtractor interface {
	Extract(ctx context.Context, videoPath, outDir string, meta *Metadata, opts ExtractOptions) ([]Frame, error)
}

// EffectiveInterval returns max(base, duration/maxFrames): the sampling
// interval that never yields more than maxFrames frames.
func EffectiveInterval(durationSeconds, baseInterval float64, maxFrames int) float64 {
	if baseInterval <= 0 {
		baseInterval = 1.0
	}
	if maxFrames > 0 {
		if stretched := durationSeconds / float64(maxFrames); stretched > baseInterval {
			return stretched
		}
	}
	return baseInterval
}
