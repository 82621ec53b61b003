package workflow

import (
	"context"
	"errors"
	"strings"

	"crewbe/internal/analysis"
	"crewbe/internal/capture"
	"crewbe/internal/upload"
)

// ErrorKind classifies why a session failed.
type ErrorKind string

const (
	ErrorCapture        ErrorKind = "capture"
	ErrorUpload         ErrorKind = "upload"
	ErrorDispatch       ErrorKind = "dispatch"
	ErrorAnalysisJob    ErrorKind = "analysis_job"
	ErrorPollingTimeout ErrorKind = "polling_timeout"
	ErrorInternal       ErrorKind = "internal"
)

// Failure is the terminal cause of a failed session.
type Failure struct {
	Kind     ErrorKind
	Category string
	Err      error
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Err == nil {
		return f.Category
	}
	return f.Category + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Detail returns the underlying error text, or the category when absent.
func (f *Failure) Detail() string {
	if f == nil {
		return ""
	}
	if f.Err != nil {
		return strings.TrimSpace(f.Err.Error())
	}
	return f.Category
}

type categorized interface {
	Category() string
}

// Classify maps an error from any pipeline stage onto a Failure.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}

	kind := ErrorInternal
	var (
		capErr      *capture.Error
		uploadErr   *upload.Error
		dispatchErr *analysis.DispatchError
		jobErr      *analysis.JobError
		timeoutErr  *analysis.TimeoutError
	)
	switch {
	case errors.As(err, &capErr):
		kind = ErrorCapture
	case errors.As(err, &uploadErr):
		kind = ErrorUpload
	case errors.As(err, &dispatchErr):
		kind = ErrorDispatch
	case errors.As(err, &jobErr):
		kind = ErrorAnalysisJob
	case errors.As(err, &timeoutErr):
		kind = ErrorPollingTimeout
	}

	category := "internal error"
	var c categorized
	if errors.As(err, &c) {
		category = c.Category()
	} else if errors.Is(err, context.Canceled) {
		category = "session was cancelled"
	}
	return &Failure{Kind: kind, Category: category, Err: err}
}
