// Package transcript turns raw recognizer output into speaker-attributed segments.
package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"worker-minutes/entities"
)

// DefaultSpeakerID labels the single segment produced when the recognizer
// returned no speaker information.
const DefaultSpeakerID = "spk_0"

// MaxSeconds bounds every time offset, roughly 31 years of audio.
const MaxSeconds = 1e9

// token is a validated recognizer item.
type token struct {
	kind       ItemType
	text       string
	start      float64
	end        float64
	confidence float64
	speaker    string
}

// span is a speaker turn before its text has been reconstructed.
type span struct {
	speaker string
	start   float64
	end     float64
}

// Parser converts RecognizerOutput into a ParsedTranscript. It holds no
// state, so one Parser can be shared by every running job.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse is a pure function of raw: identical input always yields identical output.
func (p *Parser) Parse(raw RecognizerOutput) (entities.ParsedTranscript, error) {
	if len(raw.Results.Transcripts) == 0 {
		return entities.ParsedTranscript{}, &EmptyTranscriptError{Reason: "no transcripts"}
	}
	if len(raw.Results.Items) == 0 {
		return entities.ParsedTranscript{}, &EmptyTranscriptError{Reason: "no items"}
	}

	tokens, err := normalize(raw.Results.Items)
	if err != nil {
		return entities.ParsedTranscript{}, err
	}

	spans, err := speakerSpans(raw.Results.SpeakerLabels, tokens)
	if err != nil {
		return entities.ParsedTranscript{}, err
	}

	var segments []entities.TranscriptSegment
	if spans == nil {
		segments = []entities.TranscriptSegment{wholeStream(tokens)}
	} else {
		segments = make([]entities.TranscriptSegment, 0, len(spans))
		for _, s := range spans {
			segments = append(segments, buildSegment(s, tokens))
		}
	}

	duration := lastWordEnd(tokens)
	for _, seg := range segments {
		duration = math.Max(duration, seg.EndTime)
	}

	speakers := AggregateSpeakers(segments)
	return entities.ParsedTranscript{
		FullText:        raw.Results.Transcripts[0].Transcript,
		DurationSeconds: duration,
		SpeakerCount:    len(speakers),
		Segments:        segments,
		Speakers:        speakers,
	}, nil
}

func normalize(items []Item) ([]token, error) {
	tokens := make([]token, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("results.items[%d]", i)
		if len(item.Alternatives) == 0 || item.Alternatives[0].Content == "" {
			return nil, &MalformedOutputError{Field: field + ".alternatives", Message: "missing content"}
		}
		alt := item.Alternatives[0]

		switch item.Type {
		case ItemTypePunctuation:
			tokens = append(tokens, token{kind: ItemTypePunctuation, text: alt.Content})
		case ItemTypePronunciation:
			start, err := parseSeconds(field+".start_time", item.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := parseSeconds(field+".end_time", item.EndTime)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, &MalformedOutputError{Field: field, Message: "end_time precedes start_time"}
			}
			confidence, err := strconv.ParseFloat(alt.Confidence, 64)
			if err != nil {
				return nil, &MalformedOutputError{Field: field + ".alternatives[0].confidence", Message: "not a number", Cause: err}
			}
			if confidence < 0 || confidence > 1 {
				return nil, &MalformedOutputError{Field: field + ".alternatives[0].confidence", Message: "outside [0,1]"}
			}
			tokens = append(tokens, token{
				kind:       ItemTypePronunciation,
				text:       alt.Content,
				start:      start,
				end:        end,
				confidence: confidence,
				speaker:    item.SpeakerLabel,
			})
		default:
			return nil, &MalformedOutputError{Field: field + ".type", Message: fmt.Sprintf("unknown item type %q", item.Type)}
		}
	}
	return tokens, nil
}

// speakerSpans returns the declared speaker segments, or turns derived from
// per-word speaker labels when every word carries one. A nil result means the
// stream has no speaker information at all.
func speakerSpans(labels *SpeakerLabels, tokens []token) ([]span, error) {
	if labels != nil && len(labels.Segments) > 0 {
		spans := make([]span, 0, len(labels.Segments))
		for i, seg := range labels.Segments {
			field := fmt.Sprintf("results.speaker_labels.segments[%d]", i)
			if seg.SpeakerLabel == "" {
				return nil, &MalformedOutputError{Field: field + ".speaker_label", Message: "missing speaker label"}
			}
			start, err := parseSeconds(field+".start_time", seg.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := parseSeconds(field+".end_time", seg.EndTime)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, &MalformedOutputError{Field: field, Message: "end_time precedes start_time"}
			}
			spans = append(spans, span{speaker: seg.SpeakerLabel, start: start, end: end})
		}
		return spans, nil
	}

	var spans []span
	words := 0
	for _, t := range tokens {
		if t.kind != ItemTypePronunciation {
			continue
		}
		words++
		if t.speaker == "" {
			return nil, nil
		}
		if n := len(spans); n > 0 && spans[n-1].speaker == t.speaker {
			spans[n-1].end = t.end
			continue
		}
		spans = append(spans, span{speaker: t.speaker, start: t.start, end: t.end})
	}
	if words == 0 {
		return nil, nil
	}
	return spans, nil
}

// buildSegment walks the full token stream and keeps the words whose start
// time falls inside s. Punctuation sticks to the preceding word when that
// word was kept.
func buildSegment(s span, tokens []token) entities.TranscriptSegment {
	var b strings.Builder
	var sum float64
	var n int
	kept := false
	for _, t := range tokens {
		if t.kind == ItemTypePunctuation {
			if kept {
				b.WriteString(t.text)
			}
			continue
		}
		kept = t.start >= s.start && t.start <= s.end
		if !kept {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		sum += t.confidence
		n++
	}

	seg := entities.TranscriptSegment{
		SpeakerID: s.speaker,
		StartTime: s.start,
		EndTime:   s.end,
		Text:      strings.TrimRight(b.String(), " \t\n"),
	}
	if n > 0 {
		seg.Confidence = sum / float64(n)
	}
	return seg
}

func wholeStream(tokens []token) entities.TranscriptSegment {
	seg := buildSegment(span{speaker: DefaultSpeakerID, start: math.Inf(-1), end: math.Inf(1)}, tokens)
	seg.StartTime, seg.EndTime = 0, 0
	first := true
	for _, t := range tokens {
		if t.kind != ItemTypePronunciation {
			continue
		}
		if first {
			seg.StartTime = t.start
			first = false
		}
		seg.EndTime = t.end
	}
	return seg
}

func lastWordEnd(tokens []token) float64 {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].kind == ItemTypePronunciation {
			return tokens[i].end
		}
	}
	return 0
}

// AggregateSpeakers counts segments and speaking time per speaker, keeping
// speakers in order of first appearance.
func AggregateSpeakers(segments []entities.TranscriptSegment) []entities.SpeakerStat {
	index := make(map[string]int)
	stats := make([]entities.SpeakerStat, 0)
	for _, seg := range segments {
		i, ok := index[seg.SpeakerID]
		if !ok {
			i = len(stats)
			index[seg.SpeakerID] = i
			stats = append(stats, entities.SpeakerStat{ID: seg.SpeakerID})
		}
		stats[i].SegmentCount++
		stats[i].SpeakingSeconds += seg.EndTime - seg.StartTime
	}
	return stats
}

func parseSeconds(field, v string) (float64, error) {
	if v == "" {
		return 0, &MalformedOutputError{Field: field, Message: "missing"}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &MalformedOutputError{Field: field, Message: "not a number", Cause: err}
	}
	if f < 0 || f > MaxSeconds || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MalformedOutputError{Field: field, Message: "out of range"}
	}
	return f, nil
}
