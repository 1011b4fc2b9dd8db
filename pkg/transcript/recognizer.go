package transcript

import (
	"encoding/json"
)

// ItemType distinguishes timed words from untimed punctuation in the token stream.
type ItemType string

const (
	ItemTypePronunciation ItemType = "pronunciation"
	ItemTypePunctuation   ItemType = "punctuation"
)

// RecognizerOutput is the raw, time-aligned result of a speech-to-text job.
// Times and confidences are decimal strings, as emitted by the recognizer.
type RecognizerOutput struct {
	JobName string            `json:"jobName,omitempty"`
	Status  string            `json:"status,omitempty"`
	Results RecognizerResults `json:"results"`
}

type RecognizerResults struct {
	Transcripts   []TranscriptText `json:"transcripts"`
	Items         []Item           `json:"items"`
	SpeakerLabels *SpeakerLabels   `json:"speaker_labels,omitempty"`
}

type TranscriptText struct {
	Transcript string `json:"transcript"`
}

type Item struct {
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	Type         ItemType      `json:"type"`
	Alternatives []Alternative `json:"alternatives"`
	SpeakerLabel string        `json:"speaker_label,omitempty"`
}

type Alternative struct {
	Confidence string `json:"confidence"`
	Content    string `json:"content"`
}

type SpeakerLabels struct {
	Speakers int              `json:"speakers"`
	Segments []SpeakerSegment `json:"segments"`
}

type SpeakerSegment struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	SpeakerLabel string `json:"speaker_label"`
}

// Decode unmarshals a stored recognizer artifact.
func Decode(data []byte) (RecognizerOutput, error) {
	var out RecognizerOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return RecognizerOutput{}, &MalformedOutputError{Field: "(root)", Message: "invalid recognizer JSON", Cause: err}
	}
	return out, nil
}
