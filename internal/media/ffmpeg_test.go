package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stands in for the real binary: refuses one timestamp and writes an empty
// jpg for the rest, simulating a mid-video decode failure.
const stubExtractorScript = `#!/bin/sh
ts="$2"
for a in "$@"; do out="$a"; done
if [ "$ts" = "1.000" ]; then exit 1; fi
: > "$out"
`

func TestExtract_KeyframeCadenceSurvivesDecodeSkips(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg-stub")
	require.NoError(t, os.WriteFile(bin, []byte(stubExtractorScript), 0o755))

	f := &FFMpeg{Bin: bin}
	meta := &Metadata{DurationSeconds: 3.0, Width: 640, Height: 480}

	frames, err := f.Extract(context.Background(), "in.mp4", filepath.Join(dir, "out"), meta, ExtractOptions{
		IntervalSeconds: 1.0,
		KeyframeStride:  2,
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	// frame numbers keep the attempted-sample gap, timestamps stay truthful
	assert.Equal(t, 0, frames[0].Number)
	assert.Equal(t, 2, frames[1].Number)
	assert.InDelta(t, 0.0, frames[0].TimestampSeconds, 1e-9)
	assert.InDelta(t, 2.0, frames[1].TimestampSeconds, 1e-9)

	// the stride walks emitted frames: the skip at 1s must not land both
	// survivors on even sample numbers and flag them all as keyframes
	assert.True(t, frames[0].IsKeyframe)
	assert.False(t, frames[1].IsKeyframe)
}

func TestExtract_AllDecodesFailingIsAnError(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg-stub")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	f := &FFMpeg{Bin: bin}
	meta := &Metadata{DurationSeconds: 2.0, Width: 640, Height: 480}

	_, err := f.Extract(context.Background(), "in.mp4", filepath.Join(dir, "out"), meta, ExtractOptions{
		IntervalSeconds: 1.0,
	})
	require.Error(t, err)
}
