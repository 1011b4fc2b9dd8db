package dto

import (
	"github.com/google/uuid"
	"worker-minutes/entities"
)

type MinutesJobMessage struct {
	JobId          uuid.UUID `json:"jobId"`
	UserId         string    `json:"userId"`
	AudioObjectRef string    `json:"audioObjectRef"`
}

type CreateJobRequest struct {
	UserId               string   `json:"userId" validate:"required,max=128"`
	AudioRef             string   `json:"audioRef" validate:"required,max=1024"`
	AudioSizeBytes       int64    `json:"audioSizeBytes" validate:"gt=0"`
	AudioDurationSeconds *float64 `json:"audioDurationSeconds,omitempty" validate:"omitempty,gte=0"`
}

type ListJobsResponse struct {
	Jobs   []entities.Job `json:"jobs"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
