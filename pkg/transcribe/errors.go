package transcribe

import (
	"fmt"
)

// ProviderError wraps a failed call to the speech-to-text provider. Transient
// errors are expected to clear on their own and may be retried or re-polled.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("speech provider %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MissingArtifactError reports a job the provider marked complete without a
// retrievable transcript.
type MissingArtifactError struct {
	Handle string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("transcription %s completed without a transcript artifact", e.Handle)
}
