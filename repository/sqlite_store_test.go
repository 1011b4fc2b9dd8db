package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-minutes/constant"
	"worker-minutes/entities"
)

func newTestStore(t *testing.T) JobRepository {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func status(s constant.JobStatus) *constant.JobStatus { return &s }

func str(s string) *string { return &s }

func submittedJob(userId string) *entities.Job {
	return &entities.Job{
		UserID:         userId,
		Status:         constant.JobStatusSubmitted,
		AudioRef:       "uploads/" + userId + "/meeting.mp3",
		AudioSizeBytes: 1024,
	}
}

func TestSQLiteStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := submittedJob("u1")
	require.NoError(t, s.Create(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	got, err := s.Get(ctx, job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, constant.JobStatusSubmitted, got.Status)
	assert.Equal(t, "uploads/u1/meeting.mp3", got.AudioRef)
	assert.Equal(t, int64(1024), got.AudioSizeBytes)
	assert.Nil(t, got.AudioDurationSeconds)
	assert.Nil(t, got.TranscriptionJobHandle)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Get(ctx, job.ID, "someone-else")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Get(ctx, uuid.New(), "u1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteStore_UpdatePartialFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	job := submittedJob("u1")
	require.NoError(t, s.Create(ctx, job))

	updated, err := s.Update(ctx, job.ID, "u1", JobUpdate{
		Status:                 status(constant.JobStatusTranscribing),
		TranscriptionJobHandle: str("minutes-abc-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusTranscribing, updated.Status)
	assert.Equal(t, "minutes-abc-1", *updated.TranscriptionJobHandle)

	duration := 12.5
	_, err = s.Update(ctx, job.ID, "u1", JobUpdate{AudioDurationSeconds: &duration})
	require.NoError(t, err)

	got, err := s.Get(ctx, job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusTranscribing, got.Status)
	assert.Equal(t, "minutes-abc-1", *got.TranscriptionJobHandle)
	assert.Equal(t, 12.5, *got.AudioDurationSeconds)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestSQLiteStore_UpdateRefusesInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	job := submittedJob("u1")
	require.NoError(t, s.Create(ctx, job))

	_, err := s.Update(ctx, job.ID, "u1", JobUpdate{Status: status(constant.JobStatusCompleted)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Update(ctx, job.ID, "u2", JobUpdate{Status: status(constant.JobStatusTranscribing)})
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = s.Update(ctx, job.ID, "u1", JobUpdate{
		Status:       status(constant.JobStatusFailed),
		ErrorMessage: str("boom"),
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, job.ID, "u1", JobUpdate{ErrorMessage: str("overwrite")})
	assert.ErrorIs(t, err, ErrJobTerminal)

	got, err := s.Get(ctx, job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "boom", *got.ErrorMessage)
	assert.Equal(t, constant.JobStatusFailed, got.Status)
}

func TestSQLiteStore_Query(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		job := submittedJob("u1")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, job))
		ids = append(ids, job.ID)
	}
	require.NoError(t, s.Create(ctx, submittedJob("u2")))

	page, err := s.Query(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, err = s.Query(ctx, "u1", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	all, err := s.Query(ctx, "u1", 0, -3)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.Query(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
