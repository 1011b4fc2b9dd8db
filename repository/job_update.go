package repository

import (
	"fmt"
	"worker-minutes/constant"
	"worker-minutes/entities"
)

// JobUpdate lists the fields to change. Nil fields are left untouched.
type JobUpdate struct {
	Status                 *constant.JobStatus
	AudioDurationSeconds   *float64
	TranscriptionJobHandle *string
	TranscriptArtifactRef  *string
	MinutesArtifactRef     *string
	ErrorMessage           *string
}

// Check reports whether the update may be applied to a job currently in status.
func (u JobUpdate) Check(status constant.JobStatus) error {
	if status.IsTerminal() {
		return ErrJobTerminal
	}
	if u.Status != nil && !status.CanTransitionTo(*u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, *u.Status)
	}
	return nil
}

func (u JobUpdate) Columns() map[string]interface{} {
	columns := map[string]interface{}{}
	if u.Status != nil {
		columns["status"] = *u.Status
	}
	if u.AudioDurationSeconds != nil {
		columns["audio_duration_seconds"] = *u.AudioDurationSeconds
	}
	if u.TranscriptionJobHandle != nil {
		columns["transcription_job_handle"] = *u.TranscriptionJobHandle
	}
	if u.TranscriptArtifactRef != nil {
		columns["transcript_artifact_ref"] = *u.TranscriptArtifactRef
	}
	if u.MinutesArtifactRef != nil {
		columns["minutes_artifact_ref"] = *u.MinutesArtifactRef
	}
	if u.ErrorMessage != nil {
		columns["error_message"] = *u.ErrorMessage
	}
	return columns
}

func (u JobUpdate) ApplyTo(job *entities.Job) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.AudioDurationSeconds != nil {
		v := *u.AudioDurationSeconds
		job.AudioDurationSeconds = &v
	}
	if u.TranscriptionJobHandle != nil {
		v := *u.TranscriptionJobHandle
		job.TranscriptionJobHandle = &v
	}
	if u.TranscriptArtifactRef != nil {
		v := *u.TranscriptArtifactRef
		job.TranscriptArtifactRef = &v
	}
	if u.MinutesArtifactRef != nil {
		v := *u.MinutesArtifactRef
		job.MinutesArtifactRef = &v
	}
	if u.ErrorMessage != nil {
		v := *u.ErrorMessage
		job.ErrorMessage = &v
	}
}

// AppliedTo reports whether job already carries every field of the update,
// which is the case when an earlier attempt committed but its reply was lost.
func (u JobUpdate) AppliedTo(job *entities.Job) bool {
	if job == nil {
		return false
	}
	if u.Status != nil && job.Status != *u.Status {
		return false
	}
	return sameFloat(u.AudioDurationSeconds, job.AudioDurationSeconds) &&
		sameString(u.TranscriptionJobHandle, job.TranscriptionJobHandle) &&
		sameString(u.TranscriptArtifactRef, job.TranscriptArtifactRef) &&
		sameString(u.MinutesArtifactRef, job.MinutesArtifactRef) &&
		sameString(u.ErrorMessage, job.ErrorMessage)
}

// sameString is true when want is unset or equals got.
func sameString(want, got *string) bool {
	return want == nil || (got != nil && *got == *want)
}

func sameFloat(want, got *float64) bool {
	return want == nil || (got != nil && *got == *want)
}
