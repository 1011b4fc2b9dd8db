// Package transcribe submits audio to a speech-to-text provider and interprets
// the provider's job status.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"worker-minutes/constant"
	"worker-minutes/pkg/storage"
	"worker-minutes/pkg/transcript"
)

const (
	DefaultLanguageCode  = "en-US"
	DefaultMediaFormat   = "mp3"
	DefaultMaxSpeakers   = 10
	DefaultHandlePrefix  = "minutes"
	DefaultOutputPrefix  = "transcripts"
	DefaultSubmitRetries = 3

	maxHandleLength = 200
)

// JobState is the provider-side state of a transcription job.
type JobState string

const (
	JobStateQueued     JobState = "QUEUED"
	JobStateInProgress JobState = "IN_PROGRESS"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateFailed     JobState = "FAILED"
)

// StartJobRequest is what the provider receives for one transcription.
type StartJobRequest struct {
	Name           string
	AudioURI       string
	LanguageCode   string
	MediaFormat    string
	OutputLocation string
	SpeakerLabels  SpeakerLabeling
}

type SpeakerLabeling struct {
	Enabled     bool
	MaxSpeakers int
}

// JobDescription is a provider status snapshot. A completed job carries
// either a TranscriptURI or an inline Result.
type JobDescription struct {
	State         JobState
	TranscriptURI string
	Result        *transcript.RecognizerOutput
	FailureReason string
}

// SpeechClient is the narrow surface of a speech-to-text provider. StartJob
// returns the provider's reference for the job, or "" when the provider
// addresses jobs by the requested name.
type SpeechClient interface {
	StartJob(ctx context.Context, req StartJobRequest) (string, error)
	DescribeJob(ctx context.Context, ref string) (JobDescription, error)
}

type PollStatus int

const (
	PollInProgress PollStatus = iota
	PollCompleted
	PollFailed
)

func (s PollStatus) String() string {
	switch s {
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	default:
		return "in_progress"
	}
}

type PollResult struct {
	Status        PollStatus
	TranscriptRef string
	Reason        string
}

type SubmissionRequest struct {
	JobID    string
	AudioRef string
}

type Config struct {
	HandlePrefix   string
	AudioURIPrefix string
	LanguageCode   string
	MediaFormat    string
	MaxSpeakers    int
	OutputPrefix   string
	SubmitRetries  int
	RetryDelay     time.Duration
}

// Adapter implements submission and polling on top of a SpeechClient.
type Adapter struct {
	client    SpeechClient
	artifacts storage.ArtifactStore
	cfg       Config
	now       func() time.Time
}

func NewAdapter(client SpeechClient, artifacts storage.ArtifactStore, cfg Config) *Adapter {
	if cfg.HandlePrefix == "" {
		cfg.HandlePrefix = DefaultHandlePrefix
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = DefaultLanguageCode
	}
	if cfg.MediaFormat == "" {
		cfg.MediaFormat = DefaultMediaFormat
	}
	if cfg.MaxSpeakers <= 0 {
		cfg.MaxSpeakers = DefaultMaxSpeakers
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = DefaultOutputPrefix
	}
	if cfg.SubmitRetries <= 0 {
		cfg.SubmitRetries = DefaultSubmitRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Adapter{
		client:    client,
		artifacts: artifacts,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit starts a transcription and returns the handle Poll expects. The
// generated name is kept across transient retries so one Submit never asks
// the provider for two differently named jobs.
func (a *Adapter) Submit(ctx context.Context, req SubmissionRequest) (string, error) {
	if strings.TrimSpace(req.AudioRef) == "" {
		return "", &ProviderError{Op: "start", Err: errors.New("empty audio reference")}
	}

	name := HandleName(a.cfg.HandlePrefix, req.JobID, a.now())
	startReq := StartJobRequest{
		Name:           name,
		AudioURI:       a.audioURI(req.AudioRef),
		LanguageCode:   a.cfg.LanguageCode,
		MediaFormat:    a.cfg.MediaFormat,
		OutputLocation: a.cfg.OutputPrefix,
		SpeakerLabels: SpeakerLabeling{
			Enabled:     true,
			MaxSpeakers: a.cfg.MaxSpeakers,
		},
	}

	operation := func() (string, error) {
		ref, err := a.client.StartJob(ctx, startReq)
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && perr.Transient {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return ref, nil
	}
	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("handle", name).Dur("wait", wait).Msg("transcription submit failed, retrying")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.cfg.RetryDelay
	ref, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(a.cfg.SubmitRetries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", &ProviderError{Op: "start", Err: err}
	}

	if ref == "" {
		ref = name
	}
	zerolog.Ctx(ctx).Info().Str("handle", ref).Str("audio_uri", startReq.AudioURI).Msg("transcription submitted")
	return ref, nil
}

// Poll maps the provider state of handle onto a PollResult. Unknown states are
// reported as in progress.
func (a *Adapter) Poll(ctx context.Context, handle string) (PollResult, error) {
	desc, err := a.client.DescribeJob(ctx, handle)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return PollResult{}, err
		}
		return PollResult{}, &ProviderError{Op: "describe", Transient: true, Err: err}
	}

	switch desc.State {
	case JobStateCompleted:
		if desc.TranscriptURI != "" {
			return PollResult{Status: PollCompleted, TranscriptRef: desc.TranscriptURI}, nil
		}
		if desc.Result != nil {
			ref, err := a.storeResult(ctx, handle, desc.Result)
			if err != nil {
				return PollResult{}, err
			}
			return PollResult{Status: PollCompleted, TranscriptRef: ref}, nil
		}
		return PollResult{}, &MissingArtifactError{Handle: handle}
	case JobStateFailed:
		reason := desc.FailureReason
		if reason == "" {
			reason = "transcription failed without a reason"
		}
		return PollResult{Status: PollFailed, Reason: reason}, nil
	default:
		return PollResult{Status: PollInProgress}, nil
	}
}

func (a *Adapter) storeResult(ctx context.Context, handle string, out *transcript.RecognizerOutput) (string, error) {
	if out.JobName == "" {
		out.JobName = handle
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode transcript for %s: %w", handle, err)
	}
	ref := path.Join(a.cfg.OutputPrefix, sanitize(handle)+".json")
	if err := a.artifacts.Put(ctx, ref, data, constant.ContentTypeJSON); err != nil {
		return "", fmt.Errorf("store transcript for %s: %w", handle, err)
	}
	return ref, nil
}

func (a *Adapter) audioURI(ref string) string {
	if strings.Contains(ref, "://") || a.cfg.AudioURIPrefix == "" {
		return ref
	}
	return strings.TrimSuffix(a.cfg.AudioURIPrefix, "/") + "/" + strings.TrimPrefix(ref, "/")
}

var disallowed = regexp.MustCompile(`[^0-9A-Za-z._-]+`)

func sanitize(s string) string {
	return disallowed.ReplaceAllString(s, "-")
}

// HandleName builds "prefix-jobId-millis" restricted to [0-9A-Za-z._-] and at
// most 200 characters.
func HandleName(prefix, jobID string, at time.Time) string {
	name := sanitize(fmt.Sprintf("%s-%s-%d", prefix, jobID, at.UnixMilli()))
	if len(name) > maxHandleLength {
		name = name[len(name)-maxHandleLength:]
	}
	return name
}
