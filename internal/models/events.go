package models

type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// Error kinds carried by error events. A timeout is deliberately distinct
// from an inference failure so callers can tell "engine too slow" from
// "engine said no".
const (
	ErrorKindTimeout   = "timeout"
	ErrorKindInference = "inference"
	ErrorKindInput     = "input"
	ErrorKindInternal  = "internal"
)

// LiveEvent is the single wire shape for live-session and job events.
// Exactly one of the three field groups is populated, selected by Type.
type LiveEvent struct {
	Type EventType `json:"type"`

	// progress
	FrameCount int `json:"frame_count,omitempty"`
	WindowSize int `json:"window_size,omitempty"`

	// result
	PredictedText string   `json:"predicted_text,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	ModelVersion  string   `json:"model_version,omitempty"`

	// error
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewProgressEvent(frameCount, windowSize int) LiveEvent {
	return LiveEvent{Type: EventProgress, FrameCount: frameCount, WindowSize: windowSize}
}

func NewResultEvent(text string, confidence float64, modelVersion string) LiveEvent {
	return LiveEvent{Type: EventResult, PredictedText: text, Confidence: &confidence, ModelVersion: modelVersion}
}

func NewErrorEvent(kind, message string) LiveEvent {
	return LiveEvent{Type: EventError, Kind: kind, Message: message}
}
