package models

import "time"

// Prediction is one inference invocation result: a batch run over a video's
// frames or a single live window. Exactly one of VideoID/SessionID is set.
// ConfidenceScore is persisted verbatim as returned by the engine.
type Prediction struct {
	ID        string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VideoID   *string `gorm:"column:video_id;type:uuid;index" json:"video_id,omitempty"`
	SessionID *string `gorm:"column:session_id;type:uuid;index" json:"session_id,omitempty"`

	PredictedText    string  `gorm:"column:predicted_text;type:text" json:"predicted_text"`
	ConfidenceScore  float64 `gorm:"column:confidence_score;type:double precision" json:"confidence_score"`
	ProcessingTimeMs int64   `gorm:"column:processing_time_ms;type:bigint" json:"processing_time_ms"`
	ModelVersion     string  `gorm:"column:model_version;type:text" json:"model_version"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Prediction) TableName() string { return "predictions" }
