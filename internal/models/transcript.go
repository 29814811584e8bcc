package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LiveTranscript is the per-window history of a live session, kept in Mongo
// with a TTL so sessions leave a queryable trail without being persisted
// themselves.
type LiveTranscript struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID   string             `bson:"session_id" json:"session_id"`
	WindowIndex int64              `bson:"window_index" json:"window_index"`

	PredictedText    string  `bson:"predicted_text" json:"predicted_text"`
	Confidence       float64 `bson:"confidence" json:"confidence"`
	ModelVersion     string  `bson:"model_version,omitempty" json:"model_version,omitempty"`
	ProcessingTimeMs int64   `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
