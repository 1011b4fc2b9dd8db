package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"time"
	"worker-minutes/entities"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobTerminal       = errors.New("job is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrJobConflict       = errors.New("job changed concurrently")
)

const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
)

// JobRepository stores Job records keyed by (jobId, userId). Update is a
// partial, conditional write: terminal jobs are never modified and status
// may only move along the forward transition table.
type JobRepository interface {
	Create(ctx context.Context, job *entities.Job) error
	Get(ctx context.Context, jobId uuid.UUID, userId string) (*entities.Job, error)
	Update(ctx context.Context, jobId uuid.UUID, userId string, update JobUpdate) (*entities.Job, error)
	Query(ctx context.Context, userId string, limit, offset int) ([]entities.Job, error)
	Migrate(ctx context.Context) error
	Close() error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (JobRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Migrate(ctx context.Context) error {
	return r.GetDB().WithContext(ctx).AutoMigrate(&entities.Job{})
}

func (r *repo) Create(ctx context.Context, job *entities.Job) error {
	if err := prepareNew(job, time.Now()); err != nil {
		return err
	}
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) Get(ctx context.Context, jobId uuid.UUID, userId string) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.GetDB().WithContext(ctx).First(job, "id = ? AND user_id = ?", jobId, userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *repo) Update(ctx context.Context, jobId uuid.UUID, userId string, update JobUpdate) (*entities.Job, error) {
	var updated *entities.Job
	err := r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job := &entities.Job{}
		err := tx.First(job, "id = ? AND user_id = ?", jobId, userId).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}
		if err := update.Check(job.Status); err != nil {
			return err
		}

		now := time.Now().UTC()
		columns := update.Columns()
		columns["updated_at"] = now
		res := tx.Model(&entities.Job{}).
			Where("id = ? AND user_id = ? AND status = ?", jobId, userId, job.Status).
			Updates(columns)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobConflict
		}

		update.ApplyTo(job)
		job.UpdatedAt = now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repo) Query(ctx context.Context, userId string, limit, offset int) ([]entities.Job, error) {
	limit, offset = clampPage(limit, offset)
	var jobs []entities.Job
	err := r.GetDB().WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) Close() error {
	db, err := r.GetDB().DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func prepareNew(job *entities.Job, now time.Time) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.UserID == "" {
		return errors.New("job.UserID is required")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		return fmt.Errorf("job %s has no status", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now.UTC()
	}
	job.UpdatedAt = job.CreatedAt
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
