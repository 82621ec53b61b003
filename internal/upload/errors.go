package upload

import (
	"errors"
	"strings"

	"crewbe/internal/session"
)

// ErrExhausted matches any *Error.
var ErrExhausted = errors.New("upload strategies exhausted")

// Error reports that every real upload strategy failed.
type Error struct {
	Attempts []session.UploadAttempt
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.Strategy+": "+attempt.Error)
	}
	msg := "upload failed"
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool { return target == ErrExhausted }

// ErrorKind returns the classification used by the pipeline.
func (e *Error) ErrorKind() string { return "upload" }

// Category returns a human-readable description of the failure.
func (e *Error) Category() string {
	return "the recording could not be uploaded"
}
