package models

import "time"

type VideoStatus string

const (
	VideoStatusUploaded   VideoStatus = "uploaded"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusProcessed  VideoStatus = "processed"
	VideoStatusFailed     VideoStatus = "failed"
)

type Video struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID   string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	FileName string `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath string `gorm:"column:file_path;type:text" json:"file_path"`

	FileSize int64       `gorm:"column:file_size;type:bigint" json:"file_size"`
	MimeType string      `gorm:"column:mime_type;type:text" json:"mime_type"`
	Status   VideoStatus `gorm:"column:status;type:text" json:"status"`

	UploadedAt time.Time `gorm:"column:uploaded_at;type:timestamptz" json:"uploaded_at"`
}

func (Video) TableName() string { return "videos" }

// VideoMetadata is created once by the metadata stage; the thumbnail stage
// may later fill ThumbnailPath.
type VideoMetadata struct {
	VideoID string `gorm:"column:video_id;type:uuid;primaryKey" json:"video_id"`

	DurationSeconds float64 `gorm:"column:duration_seconds;type:double precision" json:"duration_seconds"`
	FrameRate       float64 `gorm:"column:frame_rate;type:double precision" json:"frame_rate"`
	Width           int     `gorm:"column:width;type:integer" json:"width"`
	Height          int     `gorm:"column:height;type:integer" json:"height"`
	Bitrate         int64   `gorm:"column:bitrate;type:bigint" json:"bitrate"`
	Codecs          string  `gorm:"column:codecs;type:text" json:"codecs"`
	HasAudio        bool    `gorm:"column:has_audio" json:"has_audio"`

	ThumbnailPath *string `gorm:"column:thumbnail_path;type:text" json:"thumbnail_path,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (VideoMetadata) TableName() string { return "video_metadata" }
