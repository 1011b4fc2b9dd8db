package entities

import "time"

type Minutes struct {
	JobID       string        `json:"jobId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Summary     string        `json:"summary"`
	Decisions   []Decision    `json:"decisions"`
	NextActions []NextAction  `json:"nextActions"`
	Transcript  string        `json:"transcript"`
	Speakers    []SpeakerStat `json:"speakers,omitempty"`
}

type Decision struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type NextAction struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Assignee    string `json:"assignee,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}
