package constant

type JobStatus string

const (
	JobStatusSubmitted    JobStatus = "SUBMITTED"
	JobStatusTranscribing JobStatus = "TRANSCRIBING"
	JobStatusGenerating   JobStatus = "GENERATING"
	JobStatusCompleted    JobStatus = "COMPLETED"
	JobStatusFailed       JobStatus = "FAILED"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo enforces the forward-only job state machine. FAILED is
// reachable from every non-terminal status.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	switch s {
	case JobStatusSubmitted:
		return next == JobStatusTranscribing
	case JobStatusTranscribing:
		return next == JobStatusTranscribing || next == JobStatusGenerating
	case JobStatusGenerating:
		return next == JobStatusCompleted
	default:
		return false
	}
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)
