package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFProbe extracts container and stream metadata with the ffprobe binary.
type FFProbe struct {
	// Bin overrides the binary name, mainly for tests.
	Bin string
}

func NewFFProbe() *FFProbe { return &FFProbe{Bin: "ffprobe"} }

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (p *FFProbe) Probe(ctx context.Context, videoPath string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, p.bin(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", videoPath, err)
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("ffprobe produced unparseable output: %w", err)
	}

	meta := &Metadata{}
	meta.DurationSeconds, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	meta.Bitrate, _ = strconv.ParseInt(raw.Format.BitRate, 10, 64)

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if meta.Width == 0 {
				meta.Width = s.Width
				meta.Height = s.Height
				meta.FrameRate = parseFrameRate(s.AvgFrameRate)
				if meta.FrameRate == 0 {
					meta.FrameRate = parseFrameRate(s.RFrameRate)
				}
			}
		case "audio":
			meta.HasAudio = true
		}
		if s.CodecName != "" {
			meta.Codecs = append(meta.Codecs, s.CodecName)
		}
	}

	if meta.DurationSeconds <= 0 || meta.Width == 0 {
		return nil, fmt.Errorf("file %s is not a readable video", videoPath)
	}
	return meta, nil
}

func (p *FFProbe) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "ffprobe"
}

// parseFrameRate turns ffprobe's rational form ("30000/1001") into a float.
func parseFrameRate(r string) float64 {
	r = strings.TrimSpace(r)
	if r == "" || r == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(r, "/")
	if !found {
		f, _ := strconv.ParseFloat(r, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
