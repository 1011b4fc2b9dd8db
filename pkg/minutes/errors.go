package minutes

import (
	"fmt"
	"strings"
)

// FieldError is one schema violation in the model response.
type FieldError struct {
	Field   string
	Message string
}

// ResponseParseError means the model output, after fence stripping, was not
// a JSON object of the expected shape.
type ResponseParseError struct {
	Message string
	Fields  []FieldError
	Cause   error
}

func (e *ResponseParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("unparseable minutes response: ")
	sb.WriteString(e.Message)
	for _, f := range e.Fields {
		sb.WriteString(fmt.Sprintf("; %s: %s", f.Field, f.Message))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

func (e *ResponseParseError) Unwrap() error {
	return e.Cause
}

// ServiceUnavailableError is returned once every invocation attempt failed.
type ServiceUnavailableError struct {
	Attempts int
	Err      error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("generative text service unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Err
}
