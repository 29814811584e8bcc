package relay

import (
	"context"

	"github.com/signsense/signsense/internal/models"
)

// Publisher delivers progress/result/error events to the channel keyed by
// session or job id. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, channel string, event models.LiveEvent) error
}

func SessionChannel(sessionID string) string { return "live:" + sessionID + ":events" }

func VideoChannel(videoID string) string { return "video:" + videoID + ":status" }
