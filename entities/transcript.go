package entities

// TranscriptSegment is one contiguous speaker turn. Times are in seconds.
type TranscriptSegment struct {
	SpeakerID  string  `json:"speakerId"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// SpeakerStat aggregates every segment attributed to one speaker.
type SpeakerStat struct {
	ID              string  `json:"id"`
	SegmentCount    int     `json:"segmentCount"`
	SpeakingSeconds float64 `json:"speakingSeconds"`
}

// ParsedTranscript is the speaker-attributed form of a recognizer result.
// SpeakerCount always equals the number of distinct Segments[].SpeakerID.
type ParsedTranscript struct {
	FullText        string              `json:"fullText"`
	DurationSeconds float64             `json:"durationSeconds"`
	SpeakerCount    int                 `json:"speakerCount"`
	Segments        []TranscriptSegment `json:"segments"`
	Speakers        []SpeakerStat       `json:"speakers"`
}
