package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"

	"worker-minutes/pkg/transcript"
)

// GoogleSpeechClient runs long-running recognition on Google Cloud
// Speech-to-Text. Jobs are addressed by the operation name the API returns.
type GoogleSpeechClient struct {
	svc *speech.Service
}

// NewGoogleSpeechClient authenticates with apiKey when set, otherwise with the
// service-account credentialsFile, otherwise with application default credentials.
func NewGoogleSpeechClient(ctx context.Context, apiKey, credentialsFile string) (*GoogleSpeechClient, error) {
	var opts []option.ClientOption
	switch {
	case apiKey != "":
		opts = append(opts, option.WithAPIKey(apiKey))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech service: %w", err)
	}
	return &GoogleSpeechClient{svc: svc}, nil
}

func (c *GoogleSpeechClient) StartJob(ctx context.Context, req StartJobRequest) (string, error) {
	cfg := &speech.RecognitionConfig{
		LanguageCode:               req.LanguageCode,
		Encoding:                   encodingFor(req.MediaFormat),
		EnableWordTimeOffsets:      true,
		EnableWordConfidence:       true,
		EnableAutomaticPunctuation: true,
	}
	if req.SpeakerLabels.Enabled {
		cfg.DiarizationConfig = &speech.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MaxSpeakerCount:          int64(req.SpeakerLabels.MaxSpeakers),
		}
	}

	op, err := c.svc.Speech.Longrunningrecognize(&speech.LongRunningRecognizeRequest{
		Config: cfg,
		Audio:  &speech.RecognitionAudio{Uri: req.AudioURI},
	}).Context(ctx).Do()
	if err != nil {
		return "", classify("start", err)
	}
	if op.Name == "" {
		return "", &ProviderError{Op: "start", Err: errors.New("operation has no name")}
	}
	return op.Name, nil
}

func (c *GoogleSpeechClient) DescribeJob(ctx context.Context, ref string) (JobDescription, error) {
	op, err := c.svc.Operations.Get(ref).Context(ctx).Do()
	if err != nil {
		return JobDescription{}, classify("describe", err)
	}
	if !op.Done {
		return JobDescription{State: JobStateInProgress}, nil
	}
	if op.Error != nil {
		return JobDescription{
			State:         JobStateFailed,
			FailureReason: fmt.Sprintf("code %d: %s", op.Error.Code, op.Error.Message),
		}, nil
	}
	if len(op.Response) == 0 {
		return JobDescription{State: JobStateCompleted}, nil
	}

	var resp speech.LongRunningRecognizeResponse
	if err := json.Unmarshal(op.Response, &resp); err != nil {
		return JobDescription{}, &ProviderError{Op: "describe", Err: fmt.Errorf("decode operation response: %w", err)}
	}
	out, err := convertResponse(ref, &resp)
	if err != nil {
		return JobDescription{}, &ProviderError{Op: "describe", Err: err}
	}
	return JobDescription{State: JobStateCompleted, Result: out}, nil
}

// classify marks throttling, server-side and network failures as transient.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		transient := gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
		return &ProviderError{Op: op, Transient: transient, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Op: op, Transient: true, Err: err}
	}
	return &ProviderError{Op: op, Err: err}
}

func encodingFor(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "MP3"
	case "flac":
		return "FLAC"
	case "ogg", "opus":
		return "OGG_OPUS"
	case "webm":
		return "WEBM_OPUS"
	case "amr":
		return "AMR"
	default:
		// wav and unknown formats: let the API read the header
		return ""
	}
}

// convertResponse rewrites Google's word list into recognizer output. With
// diarization on, the final result repeats every word with its speaker tag,
// so that list is used when present.
func convertResponse(name string, resp *speech.LongRunningRecognizeResponse) (*transcript.RecognizerOutput, error) {
	var texts []string
	var words []*speech.WordInfo
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			texts = append(texts, t)
		}
		words = append(words, alt.Words...)
	}
	if tagged := diarizedWords(resp.Results); tagged != nil {
		words = tagged
	}

	out := &transcript.RecognizerOutput{JobName: name, Status: string(JobStateCompleted)}
	if len(texts) > 0 {
		out.Results.Transcripts = []transcript.TranscriptText{{Transcript: strings.Join(texts, " ")}}
	}

	var segments []transcript.SpeakerSegment
	for i, w := range words {
		start, err := offsetSeconds(w.StartTime)
		if err != nil {
			return nil, fmt.Errorf("word %d start: %w", i, err)
		}
		end, err := offsetSeconds(w.EndTime)
		if err != nil {
			return nil, fmt.Errorf("word %d end: %w", i, err)
		}
		content, punct := splitPunctuation(w.Word)
		if content == "" {
			continue
		}

		label := ""
		if w.SpeakerTag > 0 {
			label = fmt.Sprintf("spk_%d", w.SpeakerTag-1)
		}
		out.Results.Items = append(out.Results.Items, transcript.Item{
			StartTime:    formatSeconds(start),
			EndTime:      formatSeconds(end),
			Type:         transcript.ItemTypePronunciation,
			SpeakerLabel: label,
			Alternatives: []transcript.Alternative{{
				Content:    content,
				Confidence: strconv.FormatFloat(w.Confidence, 'f', -1, 64),
			}},
		})
		if punct != "" {
			out.Results.Items = append(out.Results.Items, transcript.Item{
				Type:         transcript.ItemTypePunctuation,
				Alternatives: []transcript.Alternative{{Content: punct, Confidence: "0.0"}},
			})
		}

		if label == "" {
			continue
		}
		if n := len(segments); n > 0 && segments[n-1].SpeakerLabel == label {
			segments[n-1].EndTime = formatSeconds(end)
			continue
		}
		segments = append(segments, transcript.SpeakerSegment{
			StartTime:    formatSeconds(start),
			EndTime:      formatSeconds(end),
			SpeakerLabel: label,
		})
	}

	if len(segments) > 0 {
		speakers := map[string]struct{}{}
		for _, s := range segments {
			speakers[s.SpeakerLabel] = struct{}{}
		}
		out.Results.SpeakerLabels = &transcript.SpeakerLabels{Speakers: len(speakers), Segments: segments}
	}
	return out, nil
}

func diarizedWords(results []*speech.SpeechRecognitionResult) []*speech.WordInfo {
	if len(results) < 2 {
		return nil
	}
	last := results[len(results)-1]
	if last == nil || len(last.Alternatives) == 0 || last.Alternatives[0] == nil || len(last.Alternatives[0].Words) == 0 {
		return nil
	}
	for _, w := range last.Alternatives[0].Words {
		if w.SpeakerTag == 0 {
			return nil
		}
	}
	return last.Alternatives[0].Words
}

func offsetSeconds(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func splitPunctuation(word string) (string, string) {
	trimmed := strings.TrimRight(word, ".,?!;:")
	return trimmed, word[len(trimmed):]
}
