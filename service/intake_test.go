package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-minutes/constant"
	"worker-minutes/dto"
)

type publisherStub struct {
	messages []any
	err      error
}

func (p *publisherStub) Publish(_ context.Context, message any) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message)
	return nil
}

func TestIntake_SubmitCreatesAndPublishes(t *testing.T) {
	repo := newMemRepo()
	pub := &publisherStub{}
	duration := 61.5

	job, err := NewIntake(repo, pub).Submit(context.Background(), dto.CreateJobRequest{
		UserId:               " u1 ",
		AudioRef:             "uploads/u1/standup.mp3",
		AudioSizeBytes:       4096,
		AudioDurationSeconds: &duration,
	})
	require.NoError(t, err)

	stored := repo.job(job.ID)
	assert.Equal(t, constant.JobStatusSubmitted, stored.Status)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, 61.5, *stored.AudioDurationSeconds)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, dto.MinutesJobMessage{
		JobId:          job.ID,
		UserId:         "u1",
		AudioObjectRef: "uploads/u1/standup.mp3",
	}, pub.messages[0])
}

func TestIntake_ValidationError(t *testing.T) {
	repo := newMemRepo()
	pub := &publisherStub{}

	_, err := NewIntake(repo, pub).Submit(context.Background(), dto.CreateJobRequest{UserId: "u1", AudioRef: "  "})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["audioRef"])
	assert.Equal(t, "must be greater than 0", verr.Fields["audioSizeBytes"])
	assert.NotContains(t, verr.Fields, "userId")
	assert.Equal(t, "invalid submission: audioRef: is required; audioSizeBytes: must be greater than 0", err.Error())

	assert.Empty(t, pub.messages)
	jobs, _ := repo.Query(context.Background(), "u1", 10, 0)
	assert.Empty(t, jobs)
}

func TestIntake_PublishFailureMarksJobFailed(t *testing.T) {
	repo := newMemRepo()
	pub := &publisherStub{err: errors.New("channel closed")}

	_, err := NewIntake(repo, pub).Submit(context.Background(), dto.CreateJobRequest{
		UserId:         "u1",
		AudioRef:       "uploads/u1/a.mp3",
		AudioSizeBytes: 1,
	})
	require.Error(t, err)

	jobs, _ := repo.Query(context.Background(), "u1", 10, 0)
	require.Len(t, jobs, 1)
	assert.Equal(t, constant.JobStatusFailed, jobs[0].Status)
	assert.Contains(t, *jobs[0].ErrorMessage, "channel closed")
}
