package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FFMpeg implements Thumbnailer and FrameExtractor over the ffmpeg binary.
type FFMpeg struct {
	Bin string
	Log *logrus.Logger
}

func NewFFMpeg(log *logrus.Logger) *FFMpeg {
	return &FFMpeg{Bin: "ffmpeg", Log: log}
}

func (f *FFMpeg) Thumbnail(ctx context.Context, videoPath, outPath string, atSeconds float64) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.bin(),
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=640:-2",
		"-q:v", "3",
		"-y",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail failed: %w, output: %s", err, truncate(out))
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg wrote no thumbnail: %w", err)
	}
	return nil
}

// Extract samples one frame per effective interval. Each timestamp is seeked
// independently; frames that fail to decode are skipped. Zero extracted
// frames is an error.
func (f *FFMpeg) Extract(ctx context.Context, videoPath, outDir string, meta *Metadata, opts ExtractOptions) ([]Frame, error) {
	if meta == nil || meta.DurationSeconds <= 0 {
		return nil, fmt.Errorf("frame extraction needs probed metadata")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	interval := EffectiveInterval(meta.DurationSeconds, opts.IntervalSeconds, opts.MaxFrames)
	stride := opts.KeyframeStride
	if stride <= 0 {
		stride = 30
	}

	var frames []Frame
	number := 0
	for ts := 0.0; ts < meta.DurationSeconds; ts += interval {
		if opts.MaxFrames > 0 && len(frames) >= opts.MaxFrames {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("frame_%05d.jpg", number))
		cmd := exec.CommandContext(ctx, f.bin(),
			"-ss", fmt.Sprintf("%.3f", ts),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			outPath,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			if f.Log != nil {
				f.Log.WithFields(logrus.Fields{
					"video":     videoPath,
					"timestamp": ts,
				}).WithError(err).Warnf("frame decode failed, skipping: %s", truncate(out))
			}
			number++
			continue
		}
		if _, err := os.Stat(outPath); err != nil {
			number++
			continue
		}

		// the stride counts emitted frames, not attempted timestamps,
		// so decode skips never shift or starve the keyframe cadence
		frames = append(frames, Frame{
			Number:           number,
			TimestampSeconds: ts,
			FilePath:         outPath,
			Width:            meta.Width,
			Height:           meta.Height,
			IsKeyframe:       len(frames)%stride == 0,
		})
		number++
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", videoPath)
	}
	return frames, nil
}

func (f *FFMpeg) bin() string {
	if f.Bin != "" {
		return f.Bin
	}
	return "ffmpeg"
}

func truncate(out []byte) string {
	const max = 400
	if len(out) > max {
		return string(out[:max]) + "..."
	}
	return string(out)
}
