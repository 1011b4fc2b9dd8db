package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"worker-minutes/dto"
	"worker-minutes/service"
)

type ServiceDependencies struct {
	MinutesService service.Service
}

// JobHandler decodes a MinutesJobMessage delivery and runs its workflow.
func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.MinutesJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal minutes job message")
		return errors.Join(service.ErrNonRetryable, err)
	}
	if job.JobId == uuid.Nil || job.UserId == "" {
		err := fmt.Errorf("message is missing jobId or userId")
		zerolog.Ctx(ctx).Error().Err(err).Msg("invalid minutes job message")
		return errors.Join(service.ErrNonRetryable, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.JobId.String()).
		Str("user_id", job.UserId).
		Msg("received minutes job message")

	return deps.MinutesService.Process(ctx, job)
}
