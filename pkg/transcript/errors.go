package transcript

import "fmt"

// EmptyTranscriptError is returned when the recognizer produced no transcript or no tokens.
type EmptyTranscriptError struct {
	Reason string
}

func (e *EmptyTranscriptError) Error() string {
	return fmt.Sprintf("empty transcript: %s", e.Reason)
}

// MalformedOutputError is returned when a recognizer field is missing or cannot be interpreted.
type MalformedOutputError struct {
	Field   string
	Message string
	Cause   error
}

func (e *MalformedOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed recognizer output at %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed recognizer output at %s: %s", e.Field, e.Message)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}
