package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobType string

const (
	JobTypeMetadata        JobType = "metadata"
	JobTypeThumbnail       JobType = "thumbnail"
	JobTypeFrameExtraction JobType = "frame-extraction"
	JobTypeFullPipeline    JobType = "full-pipeline"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never transition again.
// A retry is a new job row, never a resurrection.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	case JobStatusPending, JobStatusProcessing:
		return false
	}
	return false
}

// ProcessingJob tracks one execution attempt of the video pipeline.
// Progress is monotonically non-decreasing while status is "processing";
// ErrorMessage is set iff status is "failed".
type ProcessingJob struct {
	ID      string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VideoID string    `gorm:"column:video_id;type:uuid;index" json:"video_id"`
	JobType JobType   `gorm:"column:job_type;type:text" json:"job_type"`
	Status  JobStatus `gorm:"column:status;type:text;index" json:"status"`

	Progress      int            `gorm:"column:progress;type:integer" json:"progress"`
	ErrorMessage  *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ResultSummary datatypes.JSON `gorm:"column:result_summary;type:jsonb" json:"result_summary,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
}

func (ProcessingJob) TableName() string { return "processing_jobs" }
