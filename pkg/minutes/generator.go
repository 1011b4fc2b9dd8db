// Package minutes turns a parsed transcript into structured meeting minutes
// using a generative-text model.
package minutes

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"worker-minutes/entities"
	"worker-minutes/pkg/llm"
	"worker-minutes/pkg/transcript"
)

const (
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = 2 * time.Second
	DefaultMaxOutputTokens = 8192
	DefaultTemperature     = 0.2
)

//go:embed prompt.txt
var promptTemplate string

// Config tunes invocation. Zero values fall back to the defaults above,
// except Temperature, which is passed through as given.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxOutputTokens int32
	Temperature     float32
}

// Generator builds prompts, calls the model with exponential backoff and maps
// its JSON answer into entities.Minutes. It keeps no per-job state.
type Generator struct {
	client llm.Client
	cfg    Config
	now    func() time.Time
}

func NewGenerator(client llm.Client, cfg Config) *Generator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return &Generator{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (g *Generator) Generate(ctx context.Context, jobID string, t entities.ParsedTranscript) (entities.Minutes, error) {
	text, err := g.invoke(ctx, BuildPrompt(t))
	if err != nil {
		return entities.Minutes{}, err
	}

	payload, err := parseResponse(text)
	if err != nil {
		return entities.Minutes{}, err
	}

	return g.toMinutes(jobID, payload, t), nil
}

// BuildPrompt embeds one "[HH:MM:SS] speaker: text" line per segment, or the
// full text when the transcript has no segments.
func BuildPrompt(t entities.ParsedTranscript) string {
	var body string
	if len(t.Segments) == 0 {
		body = t.FullText
	} else {
		var sb strings.Builder
		for _, seg := range t.Segments {
			sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", transcript.FormatTimestamp(seg.StartTime), seg.SpeakerID, seg.Text))
		}
		body = strings.TrimRight(sb.String(), "\n")
	}
	return strings.ReplaceAll(promptTemplate, "{{.Transcript}}", body)
}

// invoke calls the model up to MaxRetries times, waiting BaseDelay*2^(n-1)
// after the n-th failure.
func (g *Generator) invoke(ctx context.Context, prompt string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.cfg.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = g.cfg.BaseDelay << g.cfg.MaxRetries

	attempts := 0
	operation := func() (string, error) {
		attempts++
		resp, err := g.client.Invoke(ctx, llm.Request{
			Prompt:          prompt,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			Temperature:     g.cfg.Temperature,
		})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(resp.Text) == "" {
			return "", errors.New("empty model response")
		}
		return resp.Text, nil
	}
	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", attempts).Dur("wait", wait).Msg("minutes generation attempt failed, retrying")
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(g.cfg.MaxRetries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("minutes generation interrupted after %d attempts: %w", attempts, ctxErr)
		}
		return "", &ServiceUnavailableError{Attempts: attempts, Err: err}
	}
	return text, nil
}

// toMinutes assigns fresh ids to every item; ids from the model are never used.
func (g *Generator) toMinutes(jobID string, p responsePayload, t entities.ParsedTranscript) entities.Minutes {
	m := entities.Minutes{
		JobID:       jobID,
		GeneratedAt: g.now().UTC(),
		Summary:     p.Summary,
		Decisions:   make([]entities.Decision, 0, len(p.Decisions)),
		NextActions: make([]entities.NextAction, 0, len(p.NextActions)),
		Transcript:  t.FullText,
	}
	for _, d := range p.Decisions {
		m.Decisions = append(m.Decisions, entities.Decision{
			ID:          uuid.NewString(),
			Description: strings.TrimSpace(d.Description),
			Timestamp:   normalizeTimestamp(d.Timestamp),
		})
	}
	for _, a := range p.NextActions {
		m.NextActions = append(m.NextActions, entities.NextAction{
			ID:          uuid.NewString(),
			Description: strings.TrimSpace(a.Description),
			Assignee:    strings.TrimSpace(a.Assignee),
			DueDate:     a.DueDate,
			Timestamp:   normalizeTimestamp(a.Timestamp),
		})
	}
	if len(t.Segments) > 0 {
		m.Speakers = transcript.AggregateSpeakers(t.Segments)
	}
	return m
}
