package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"path"
	"sync"
	"time"
	"worker-minutes/constant"
	"worker-minutes/dto"
	"worker-minutes/entities"
	"worker-minutes/pkg/minutes"
	"worker-minutes/pkg/storage"
	"worker-minutes/pkg/transcribe"
	"worker-minutes/pkg/transcript"
	"worker-minutes/repository"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultTimeout        = 2 * time.Hour
	DefaultPersistRetries = 5
	DefaultMaxPollErrors  = 5
	DefaultPersistDelay   = 200 * time.Millisecond
	DefaultMinutesPrefix  = "minutes"
)

type Transcriber interface {
	Submit(ctx context.Context, req transcribe.SubmissionRequest) (string, error)
	Poll(ctx context.Context, handle string) (transcribe.PollResult, error)
}

type TranscriptParser interface {
	Parse(raw transcript.RecognizerOutput) (entities.ParsedTranscript, error)
}

type MinutesGenerator interface {
	Generate(ctx context.Context, jobID string, t entities.ParsedTranscript) (entities.Minutes, error)
}

type WorkflowConfig struct {
	PollInterval   time.Duration
	Timeout        time.Duration
	PersistRetries int
	PersistDelay   time.Duration
	MaxPollErrors  int
	MinutesPrefix  string
}

// Service runs the minutes workflow for one job message.
type Service interface {
	Process(ctx context.Context, message dto.MinutesJobMessage) error
}

type Dependencies struct {
	Repo        repository.JobRepository
	Artifacts   storage.ArtifactStore
	Transcriber Transcriber
	Parser      TranscriptParser
	Generator   MinutesGenerator
}

type service struct {
	Dependencies
	cfg      WorkflowConfig
	inflight sync.Map
}

func NewService(deps Dependencies, cfg WorkflowConfig) Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PersistRetries <= 0 {
		cfg.PersistRetries = DefaultPersistRetries
	}
	if cfg.PersistDelay <= 0 {
		cfg.PersistDelay = DefaultPersistDelay
	}
	if cfg.MaxPollErrors <= 0 {
		cfg.MaxPollErrors = DefaultMaxPollErrors
	}
	if cfg.MinutesPrefix == "" {
		cfg.MinutesPrefix = DefaultMinutesPrefix
	}
	return &service{
		Dependencies: deps,
		cfg:          cfg,
	}
}

// Process drives the job from its persisted status until it is COMPLETED or
// FAILED. A job that ends FAILED is a handled outcome and yields nil; errors
// are returned only when the job record could not be read or written, or when
// ctx was cancelled before the job reached a terminal status.
func (s *service) Process(ctx context.Context, message dto.MinutesJobMessage) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("job_id", message.JobId.String()).Str("user_id", message.UserId).Logger()
	ctx = logger.WithContext(ctx)

	if _, running := s.inflight.LoadOrStore(message.JobId, struct{}{}); running {
		zerolog.Ctx(ctx).Warn().Msg("job is already being processed")
		return nil
	}
	defer s.inflight.Delete(message.JobId)

	job, err := s.load(ctx, message)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		zerolog.Ctx(ctx).Info().Str("status", job.Status.String()).Msg("job already finished")
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("status", job.Status.String()).Msg("processing job")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	for !job.Status.IsTerminal() {
		next, stepErr := s.step(runCtx, job, message)
		if stepErr != nil {
			err = stepErr
			break
		}
		job = next
	}
	if err == nil {
		zerolog.Ctx(ctx).Info().Str("status", job.Status.String()).Msg("job finished")
		return nil
	}

	if ctx.Err() != nil {
		zerolog.Ctx(ctx).Warn().Str("status", job.Status.String()).Msg("job interrupted")
		return fmt.Errorf("job %s interrupted in state %s: %w", job.ID, job.Status, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		timeoutErr := fmt.Errorf("%w after %s in state %s", ErrWorkflowTimeout, s.cfg.Timeout, job.Status)
		_, err = s.fail(context.WithoutCancel(ctx), job, timeoutErr)
		return err
	}
	return err
}

func (s *service) load(ctx context.Context, message dto.MinutesJobMessage) (*entities.Job, error) {
	operation := func() (*entities.Job, error) {
		job, err := s.Repo.Get(ctx, message.JobId, message.UserId)
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, backoff.Permanent(err)
		}
		return job, err
	}
	job, err := backoff.Retry(ctx, operation, s.storeRetryOptions(ctx, "load")...)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find job")
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, errors.Join(ErrNonRetryable, err)
		}
		return nil, err
	}
	return job, nil
}

func (s *service) step(ctx context.Context, job *entities.Job, message dto.MinutesJobMessage) (*entities.Job, error) {
	switch job.Status {
	case constant.JobStatusSubmitted:
		return s.submit(ctx, job, message)
	case constant.JobStatusTranscribing:
		return s.awaitTranscript(ctx, job)
	case constant.JobStatusGenerating:
		return s.generate(ctx, job)
	default:
		return s.fail(ctx, job, fmt.Errorf("unknown job status %q", job.Status))
	}
}

func (s *service) submit(ctx context.Context, job *entities.Job, message dto.MinutesJobMessage) (*entities.Job, error) {
	audioRef := job.AudioRef
	if audioRef == "" {
		audioRef = message.AudioObjectRef
	}
	handle, err := s.Transcriber.Submit(ctx, transcribe.SubmissionRequest{
		JobID:    job.ID.String(),
		AudioRef: audioRef,
	})
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("submit transcription: %w", err))
	}

	next := constant.JobStatusTranscribing
	return s.persist(ctx, job, repository.JobUpdate{Status: &next, TranscriptionJobHandle: &handle})
}

// awaitTranscript polls the stored handle until the provider reports a
// terminal state. The handle is never regenerated, so a resumed job keeps
// following the provider job it already started.
func (s *service) awaitTranscript(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	if job.TranscriptionJobHandle == nil || *job.TranscriptionJobHandle == "" {
		return s.fail(ctx, job, errors.New("job is transcribing without a transcription handle"))
	}
	handle := *job.TranscriptionJobHandle

	pollErrors := 0
	for {
		res, err := s.Transcriber.Poll(ctx, handle)
		if err != nil {
			var perr *transcribe.ProviderError
			if ctx.Err() == nil && errors.As(err, &perr) && perr.Transient {
				pollErrors++
				if pollErrors < s.cfg.MaxPollErrors {
					zerolog.Ctx(ctx).Warn().Err(err).Int("poll_errors", pollErrors).Msg("transient poll error")
					if err := s.wait(ctx); err != nil {
						return nil, err
					}
					continue
				}
			}
			return s.fail(ctx, job, fmt.Errorf("poll transcription %s: %w", handle, err))
		}
		pollErrors = 0

		switch res.Status {
		case transcribe.PollCompleted:
			next := constant.JobStatusGenerating
			ref := res.TranscriptRef
			return s.persist(ctx, job, repository.JobUpdate{Status: &next, TranscriptArtifactRef: &ref})
		case transcribe.PollFailed:
			return s.fail(ctx, job, fmt.Errorf("transcription %s failed: %s", handle, res.Reason))
		}

		zerolog.Ctx(ctx).Debug().Str("handle", handle).Dur("wait", s.cfg.PollInterval).Msg("transcription in progress")
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *service) generate(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	if job.TranscriptArtifactRef == nil || *job.TranscriptArtifactRef == "" {
		return s.fail(ctx, job, errors.New("job is generating without a transcript artifact"))
	}

	data, err := s.Artifacts.Get(ctx, *job.TranscriptArtifactRef)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("fetch transcript %s: %w", *job.TranscriptArtifactRef, err))
	}
	raw, err := transcript.Decode(data)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("decode transcript: %w", err))
	}
	parsed, err := s.Parser.Parse(raw)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("parse transcript: %w", err))
	}
	zerolog.Ctx(ctx).Info().
		Int("segments", len(parsed.Segments)).
		Int("speakers", parsed.SpeakerCount).
		Float64("duration_seconds", parsed.DurationSeconds).
		Msg("transcript parsed")

	m, err := s.Generator.Generate(ctx, job.ID.String(), parsed)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("generate minutes: %w", err))
	}

	ref := path.Join(s.cfg.MinutesPrefix, job.UserID, job.ID.String()+".md")
	if err := s.Artifacts.Put(ctx, ref, []byte(minutes.Render(m, transcript.Format(parsed))), constant.ContentTypeMarkdown); err != nil {
		return s.fail(ctx, job, fmt.Errorf("store minutes: %w", err))
	}

	next := constant.JobStatusCompleted
	update := repository.JobUpdate{Status: &next, MinutesArtifactRef: &ref}
	if job.AudioDurationSeconds == nil {
		duration := parsed.DurationSeconds
		update.AudioDurationSeconds = &duration
	}
	return s.persist(ctx, job, update)
}

// fail records cause as the job's error message and moves it to FAILED. A
// cancelled ctx is returned as is so the caller can tell shutdown and
// timeout apart from a component failure.
func (s *service) fail(ctx context.Context, job *entities.Job, cause error) (*entities.Job, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%v: %w", cause, ctx.Err())
	}
	zerolog.Ctx(ctx).Error().Err(cause).Str("status", job.Status.String()).Msg("job failed")

	failed := constant.JobStatusFailed
	message := cause.Error()
	return s.persist(ctx, job, repository.JobUpdate{Status: &failed, ErrorMessage: &message})
}

// persist writes one transition, retrying transient store failures.
func (s *service) persist(ctx context.Context, job *entities.Job, update repository.JobUpdate) (*entities.Job, error) {
	target := job.Status
	if update.Status != nil {
		target = *update.Status
	}

	operation := func() (*entities.Job, error) {
		updated, err := s.Repo.Update(ctx, job.ID, job.UserID, update)
		if err != nil {
			if errors.Is(err, repository.ErrJobTerminal) || errors.Is(err, repository.ErrInvalidTransition) {
				if current, ok := s.alreadyApplied(ctx, job, update); ok {
					return current, nil
				}
				return nil, backoff.Permanent(err)
			}
			if errors.Is(err, repository.ErrJobNotFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return updated, nil
	}

	updated, err := backoff.Retry(ctx, operation, s.storeRetryOptions(ctx, "update")...)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("status", target.String()).Msg("failed to update job status")
		return nil, &PersistenceError{JobId: job.ID, Status: target, Err: err}
	}

	zerolog.Ctx(ctx).Info().Str("from", job.Status.String()).Str("to", updated.Status.String()).Msg("job transition")
	return updated, nil
}

// alreadyApplied re-reads the job after a rejected write. A job that already
// holds every field of update means an earlier attempt committed.
func (s *service) alreadyApplied(ctx context.Context, job *entities.Job, update repository.JobUpdate) (*entities.Job, bool) {
	current, err := s.Repo.Get(ctx, job.ID, job.UserID)
	if err != nil || !update.AppliedTo(current) {
		return nil, false
	}
	zerolog.Ctx(ctx).Warn().Str("status", current.Status.String()).Msg("job update was already committed")
	return current, true
}

func (s *service) storeRetryOptions(ctx context.Context, op string) []backoff.RetryOption {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.PersistDelay
	bo.MaxInterval = 10 * time.Second
	return []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.cfg.PersistRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("op", op).Dur("wait", wait).Msg("job store call failed, retrying")
		}),
	}
}

func (s *service) wait(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
