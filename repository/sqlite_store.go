package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"time"
	"worker-minutes/constant"
	"worker-minutes/entities"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a single-file job store. It serves local
// runs where no PostgreSQL instance is available.
func NewSQLiteStore(path string) (JobRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s := &sqliteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS minutes_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		audio_ref TEXT NOT NULL,
		audio_size_bytes INTEGER NOT NULL DEFAULT 0,
		audio_duration_seconds REAL,
		transcription_job_handle TEXT,
		transcript_artifact_ref TEXT,
		minutes_artifact_ref TEXT,
		error_message TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_user_id ON minutes_jobs (user_id, created_at)`); err != nil {
		return fmt.Errorf("migrate index: %w", err)
	}
	return nil
}

func (s *sqliteStore) Create(ctx context.Context, job *entities.Job) error {
	if err := prepareNew(job, time.Now()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO minutes_jobs (id, user_id, status, audio_ref, audio_size_bytes, audio_duration_seconds,
			transcription_job_handle, transcript_artifact_ref, minutes_artifact_ref, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.UserID, job.Status.String(), job.AudioRef, job.AudioSizeBytes, nullFloat(job.AudioDurationSeconds),
		nullString(job.TranscriptionJobHandle), nullString(job.TranscriptArtifactRef), nullString(job.MinutesArtifactRef),
		nullString(job.ErrorMessage), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const selectJob = `SELECT id, user_id, status, audio_ref, audio_size_bytes, audio_duration_seconds,
	transcription_job_handle, transcript_artifact_ref, minutes_artifact_ref, error_message, created_at, updated_at
	FROM minutes_jobs`

func (s *sqliteStore) Get(ctx context.Context, jobId uuid.UUID, userId string) (*entities.Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = ? AND user_id = ?`, jobId.String(), userId)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *sqliteStore) Update(ctx context.Context, jobId uuid.UUID, userId string, update JobUpdate) (*entities.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, selectJob+` WHERE id = ? AND user_id = ?`, jobId.String(), userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := update.Check(job.Status); err != nil {
		return nil, err
	}

	update.ApplyTo(job)
	job.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE minutes_jobs
		SET status = ?, audio_duration_seconds = ?, transcription_job_handle = ?, transcript_artifact_ref = ?,
			minutes_artifact_ref = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		job.Status.String(), nullFloat(job.AudioDurationSeconds), nullString(job.TranscriptionJobHandle),
		nullString(job.TranscriptArtifactRef), nullString(job.MinutesArtifactRef), nullString(job.ErrorMessage),
		formatTime(job.UpdatedAt), jobId.String(), userId,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrJobConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return job, nil
}

func (s *sqliteStore) Query(ctx context.Context, userId string, limit, offset int) ([]entities.Job, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.QueryContext(ctx, selectJob+` WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]entities.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*entities.Job, error) {
	var job entities.Job
	var id, status, created, updated string
	var duration sql.NullFloat64
	var handle, transcriptRef, minutesRef, errMsg sql.NullString

	if err := row.Scan(&id, &job.UserID, &status, &job.AudioRef, &job.AudioSizeBytes, &duration,
		&handle, &transcriptRef, &minutesRef, &errMsg, &created, &updated); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", id, err)
	}
	job.ID = parsed
	job.Status = constant.JobStatus(status)
	if duration.Valid {
		v := duration.Float64
		job.AudioDurationSeconds = &v
	}
	job.TranscriptionJobHandle = stringPtr(handle)
	job.TranscriptArtifactRef = stringPtr(transcriptRef)
	job.MinutesArtifactRef = stringPtr(minutesRef)
	job.ErrorMessage = stringPtr(errMsg)
	if job.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
