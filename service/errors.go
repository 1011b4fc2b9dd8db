package service

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"sort"
	"strings"
	"worker-minutes/constant"
)

// ErrNonRetryable marks failures that redelivering the message cannot fix.
var ErrNonRetryable = errors.New("non-retryable error")

var ErrWorkflowTimeout = errors.New("workflow timed out")

// PersistenceError is returned when a job write still fails after every retry.
// The job record no longer reflects the work actually done.
type PersistenceError struct {
	JobId  uuid.UUID
	Status constant.JobStatus
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job %s as %s: %v", e.JobId, e.Status, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a submission before any job is created.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}
