package transcript

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(content string, start, end float64) Item {
	return Item{
		Type:         ItemTypePronunciation,
		StartTime:    fmt.Sprintf("%.2f", start),
		EndTime:      fmt.Sprintf("%.2f", end),
		Alternatives: []Alternative{{Content: content, Confidence: "0.9"}},
	}
}

func wordConf(content string, start, end float64, conf string) Item {
	it := word(content, start, end)
	it.Alternatives[0].Confidence = conf
	return it
}

func punct(content string) Item {
	return Item{
		Type:         ItemTypePunctuation,
		Alternatives: []Alternative{{Content: content, Confidence: "0.0"}},
	}
}

// kickoffOutput is a two-speaker meeting opening.
func kickoffOutput() RecognizerOutput {
	return RecognizerOutput{
		Results: RecognizerResults{
			Transcripts: []TranscriptText{{Transcript: "Hello let's start. Agreed, I will send the report by Friday."}},
			Items: []Item{
				word("Hello", 0.0, 0.5),
				word("let's", 0.6, 1.0),
				word("start", 1.1, 5.0),
				punct("."),
				word("Agreed", 6.0, 6.5),
				punct(","),
				word("I", 6.7, 6.8),
				word("will", 6.9, 7.1),
				word("send", 7.2, 7.5),
				word("the", 7.6, 7.7),
				word("report", 7.8, 8.3),
				word("by", 8.4, 8.6),
				word("Friday", 8.7, 12.0),
				punct("."),
			},
			SpeakerLabels: &SpeakerLabels{
				Speakers: 2,
				Segments: []SpeakerSegment{
					{StartTime: "0.0", EndTime: "5.0", SpeakerLabel: "spk_0"},
					{StartTime: "6.0", EndTime: "12.0", SpeakerLabel: "spk_1"},
				},
			},
		},
	}
}

func TestParse_TwoSpeakerSegments(t *testing.T) {
	got, err := NewParser().Parse(kickoffOutput())
	require.NoError(t, err)

	require.Len(t, got.Segments, 2)
	assert.Equal(t, 2, got.SpeakerCount)
	assert.Equal(t, "spk_0", got.Segments[0].SpeakerID)
	assert.Equal(t, "Hello let's start.", got.Segments[0].Text)
	assert.Equal(t, 0.0, got.Segments[0].StartTime)
	assert.Equal(t, 5.0, got.Segments[0].EndTime)
	assert.Equal(t, "spk_1", got.Segments[1].SpeakerID)
	assert.Equal(t, "Agreed, I will send the report by Friday.", got.Segments[1].Text)
	assert.InDelta(t, 0.9, got.Segments[1].Confidence, 1e-9)
	assert.Equal(t, 12.0, got.DurationSeconds)
	assert.Equal(t, "Hello let's start. Agreed, I will send the report by Friday.", got.FullText)
}

func TestParse_Deterministic(t *testing.T) {
	p := NewParser()
	first, err := p.Parse(kickoffOutput())
	require.NoError(t, err)
	second, err := p.Parse(kickoffOutput())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestParse_Invariants(t *testing.T) {
	inputs := map[string]RecognizerOutput{
		"segments": kickoffOutput(),
		"no speakers": func() RecognizerOutput {
			out := kickoffOutput()
			out.Results.SpeakerLabels = nil
			return out
		}(),
		"segment past last word": func() RecognizerOutput {
			out := kickoffOutput()
			out.Results.SpeakerLabels.Segments[1].EndTime = "13.5"
			return out
		}(),
		"repeated speaker": func() RecognizerOutput {
			out := kickoffOutput()
			out.Results.SpeakerLabels.Segments = append(out.Results.SpeakerLabels.Segments,
				SpeakerSegment{StartTime: "8.0", EndTime: "12.0", SpeakerLabel: "spk_0"})
			return out
		}(),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := NewParser().Parse(in)
			require.NoError(t, err)

			distinct := map[string]struct{}{}
			for _, seg := range got.Segments {
				distinct[seg.SpeakerID] = struct{}{}
				assert.GreaterOrEqual(t, got.DurationSeconds, seg.EndTime)
				assert.GreaterOrEqual(t, seg.EndTime, seg.StartTime)
				assert.GreaterOrEqual(t, seg.Confidence, 0.0)
				assert.LessOrEqual(t, seg.Confidence, 1.0)
			}
			assert.Equal(t, len(distinct), got.SpeakerCount)
			assert.Len(t, got.Speakers, got.SpeakerCount)
		})
	}
}

func TestParse_NoSpeakerInfoFallsBackToSingleSegment(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels = nil

	got, err := NewParser().Parse(out)
	require.NoError(t, err)

	require.Len(t, got.Segments, 1)
	seg := got.Segments[0]
	assert.Equal(t, DefaultSpeakerID, seg.SpeakerID)
	assert.Equal(t, "Hello let's start. Agreed, I will send the report by Friday.", seg.Text)
	assert.Equal(t, 0.0, seg.StartTime)
	assert.Equal(t, 12.0, seg.EndTime)
	assert.Equal(t, 1, got.SpeakerCount)
}

func TestParse_EmptySpeakerSegmentListFallsBack(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels = &SpeakerLabels{}

	got, err := NewParser().Parse(out)
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, DefaultSpeakerID, got.Segments[0].SpeakerID)
}

func TestParse_SpeakerTurnsFromWordLabels(t *testing.T) {
	items := []Item{
		word("Morning", 0.0, 0.4),
		punct("."),
		word("Hi", 1.0, 1.2),
		word("there", 1.3, 1.6),
	}
	items[0].SpeakerLabel = "spk_0"
	items[2].SpeakerLabel = "spk_1"
	items[3].SpeakerLabel = "spk_1"
	out := RecognizerOutput{Results: RecognizerResults{
		Transcripts: []TranscriptText{{Transcript: "Morning. Hi there"}},
		Items:       items,
	}}

	got, err := NewParser().Parse(out)
	require.NoError(t, err)

	require.Len(t, got.Segments, 2)
	assert.Equal(t, "Morning.", got.Segments[0].Text)
	assert.Equal(t, "Hi there", got.Segments[1].Text)
	assert.Equal(t, 1.0, got.Segments[1].StartTime)
	assert.Equal(t, 1.6, got.Segments[1].EndTime)
}

func TestParse_MeanConfidence(t *testing.T) {
	out := RecognizerOutput{Results: RecognizerResults{
		Transcripts: []TranscriptText{{Transcript: "a b"}},
		Items: []Item{
			wordConf("a", 0, 1, "0.5"),
			wordConf("b", 1, 2, "1.0"),
		},
	}}

	got, err := NewParser().Parse(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got.Segments[0].Confidence, 1e-9)
}

func TestParse_SegmentWithoutWordsHasZeroConfidence(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels.Segments = append(out.Results.SpeakerLabels.Segments,
		SpeakerSegment{StartTime: "20.0", EndTime: "21.0", SpeakerLabel: "spk_2"})

	got, err := NewParser().Parse(out)
	require.NoError(t, err)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, "", got.Segments[2].Text)
	assert.Equal(t, 0.0, got.Segments[2].Confidence)
	assert.Equal(t, 21.0, got.DurationSeconds)
}

func TestParse_SpeakerAggregates(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels.Segments = append(out.Results.SpeakerLabels.Segments,
		SpeakerSegment{StartTime: "12.0", EndTime: "14.0", SpeakerLabel: "spk_0"})

	got, err := NewParser().Parse(out)
	require.NoError(t, err)

	require.Len(t, got.Speakers, 2)
	assert.Equal(t, "spk_0", got.Speakers[0].ID)
	assert.Equal(t, 2, got.Speakers[0].SegmentCount)
	assert.InDelta(t, 7.0, got.Speakers[0].SpeakingSeconds, 1e-9)
	assert.Equal(t, "spk_1", got.Speakers[1].ID)
	assert.Equal(t, 1, got.Speakers[1].SegmentCount)
}

func TestParse_EmptyInput(t *testing.T) {
	var emptyErr *EmptyTranscriptError

	_, err := NewParser().Parse(RecognizerOutput{})
	require.ErrorAs(t, err, &emptyErr)

	_, err = NewParser().Parse(RecognizerOutput{Results: RecognizerResults{
		Transcripts: []TranscriptText{{Transcript: "hello"}},
	}})
	require.ErrorAs(t, err, &emptyErr)
	assert.Contains(t, err.Error(), "no items")
}

func TestParse_RejectsMalformedItems(t *testing.T) {
	base := func(items ...Item) RecognizerOutput {
		return RecognizerOutput{Results: RecognizerResults{
			Transcripts: []TranscriptText{{Transcript: "x"}},
			Items:       items,
		}}
	}

	cases := map[string]RecognizerOutput{
		"missing start":     base(Item{Type: ItemTypePronunciation, EndTime: "1.0", Alternatives: []Alternative{{Content: "x", Confidence: "1"}}}),
		"bad end":           base(Item{Type: ItemTypePronunciation, StartTime: "0", EndTime: "soon", Alternatives: []Alternative{{Content: "x", Confidence: "1"}}}),
		"end before start":  base(word("x", 2, 1)),
		"no alternatives":   base(Item{Type: ItemTypePronunciation, StartTime: "0", EndTime: "1"}),
		"bad confidence":    base(wordConf("x", 0, 1, "high")),
		"confidence over 1": base(wordConf("x", 0, 1, "1.5")),
		"unknown type":      base(Item{Type: "laughter", Alternatives: []Alternative{{Content: "ha"}}}),
		"end past bound":    base(Item{Type: ItemTypePronunciation, StartTime: "0", EndTime: "1e19", Alternatives: []Alternative{{Content: "x", Confidence: "1"}}}),
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser().Parse(in)
			var malformed *MalformedOutputError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestParse_RejectsMalformedSpeakerSegment(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels.Segments[0].SpeakerLabel = ""

	_, err := NewParser().Parse(out)
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Field, "speaker_label")
}

func TestParse_RejectsSegmentPastBound(t *testing.T) {
	out := kickoffOutput()
	out.Results.SpeakerLabels.Segments[1].EndTime = "9.3e18"

	_, err := NewParser().Parse(out)
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "results.speaker_labels.segments[1].end_time", malformed.Field)
	assert.Equal(t, "out of range", malformed.Message)
}

func TestDecode(t *testing.T) {
	raw, err := json.Marshal(kickoffOutput())
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, kickoffOutput(), out)

	_, err = Decode([]byte("{not json"))
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
}
