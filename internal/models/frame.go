package models

import "time"

// ExtractedFrame is one sampled timestamp of a processed video.
// FrameNumber is unique per video and strictly increasing with
// TimestampSeconds; frames are deleted en masse with their video.
type ExtractedFrame struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VideoID string `gorm:"column:video_id;type:uuid;index:idx_frames_video" json:"video_id"`

	FrameNumber      int     `gorm:"column:frame_number;type:integer" json:"frame_number"`
	TimestampSeconds float64 `gorm:"column:timestamp_seconds;type:double precision" json:"timestamp_seconds"`
	FilePath         string  `gorm:"column:file_path;type:text" json:"file_path"`

	Width       int      `gorm:"column:width;type:integer" json:"width"`
	Height      int      `gorm:"column:height;type:integer" json:"height"`
	IsKeyframe  bool     `gorm:"column:is_keyframe" json:"is_keyframe"`
	MotionScore *float64 `gorm:"column:motion_score;type:double precision" json:"motion_score,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (ExtractedFrame) TableName() string { return "extracted_frames" }
