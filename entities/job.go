package entities

import (
	"github.com/google/uuid"
	"time"
	"worker-minutes/constant"
)

type Job struct {
	ID                     uuid.UUID          `json:"jobId" gorm:"type:uuid;primary_key"`
	UserID                 string             `json:"userId" gorm:"type:varchar(128);not null;index:idx_jobs_user_id"`
	Status                 constant.JobStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_jobs_status"`
	AudioRef               string             `json:"audioRef" gorm:"type:varchar(1024);not null"`
	AudioSizeBytes         int64              `json:"audioSizeBytes" gorm:"type:bigint;not null;default:0"`
	AudioDurationSeconds   *float64           `json:"audioDurationSeconds,omitempty" gorm:"type:double precision"`
	TranscriptionJobHandle *string            `json:"transcriptionJobHandle,omitempty" gorm:"type:varchar(255)"`
	TranscriptArtifactRef  *string            `json:"transcriptArtifactRef,omitempty" gorm:"type:varchar(1024)"`
	MinutesArtifactRef     *string            `json:"minutesArtifactRef,omitempty" gorm:"type:varchar(1024)"`
	ErrorMessage           *string            `json:"errorMessage,omitempty" gorm:"type:text"`
	CreatedAt              time.Time          `json:"createdAt" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time          `json:"updatedAt" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string {
	return "minutes_jobs"
}
