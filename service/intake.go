package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"reflect"
	"strings"
	"worker-minutes/constant"
	"worker-minutes/dto"
	"worker-minutes/entities"
	"worker-minutes/repository"
)

// Publisher hands a job message to the queue the workflow consumes.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// Intake creates jobs at SUBMITTED and enqueues them for the workflow.
type Intake interface {
	Submit(ctx context.Context, req dto.CreateJobRequest) (*entities.Job, error)
}

type intake struct {
	repo      repository.JobRepository
	publisher Publisher
	validate  *validator.Validate
}

func NewIntake(repo repository.JobRepository, publisher Publisher) Intake {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &intake{
		repo:      repo,
		publisher: publisher,
		validate:  validate,
	}
}

func (i *intake) Submit(ctx context.Context, req dto.CreateJobRequest) (*entities.Job, error) {
	req.UserId = strings.TrimSpace(req.UserId)
	req.AudioRef = strings.TrimSpace(req.AudioRef)
	if err := i.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field()] = describe(fe)
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}

	job := &entities.Job{
		ID:                   uuid.New(),
		UserID:               req.UserId,
		Status:               constant.JobStatusSubmitted,
		AudioRef:             req.AudioRef,
		AudioSizeBytes:       req.AudioSizeBytes,
		AudioDurationSeconds: req.AudioDurationSeconds,
	}
	if err := i.repo.Create(ctx, job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create job")
		return nil, err
	}

	message := dto.MinutesJobMessage{
		JobId:          job.ID,
		UserId:         job.UserID,
		AudioObjectRef: job.AudioRef,
	}
	if err := i.publisher.Publish(ctx, message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
		failed := constant.JobStatusFailed
		reason := fmt.Sprintf("enqueue job: %v", err)
		if _, updateErr := i.repo.Update(ctx, job.ID, job.UserID, repository.JobUpdate{Status: &failed, ErrorMessage: &reason}); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update job status")
		}
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Str("user_id", job.UserID).Msg("job submitted")
	return job, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
