package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"crewbe/internal/session"
)

var (
	// ErrDispatch matches any *DispatchError.
	ErrDispatch = errors.New("analysis dispatch failed")
	// ErrJobFailed matches any *JobError.
	ErrJobFailed = errors.New("analysis job failed")
	// ErrPollingTimeout matches any *TimeoutError.
	ErrPollingTimeout = errors.New("analysis polling timed out")
)

var titleCaser = cases.Title(language.English)

// JobFailure names one failed job and why.
type JobFailure struct {
	Kind   session.JobKind
	Handle string
	Reason string
}

func (f JobFailure) String() string {
	if f.Reason == "" {
		return f.Kind.Label()
	}
	return f.Kind.Label() + ": " + f.Reason
}

// DispatchError reports that analysis could not be started.
type DispatchError struct {
	Failures []JobFailure
	Err      error
}

func (e *DispatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "start analysis"
	if len(e.Failures) > 0 {
		msg += ": " + joinFailures(e.Failures)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DispatchError) Unwrap() error       { return e.Err }
func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }
func (e *DispatchError) ErrorKind() string    { return "dispatch" }

// Category returns a human-readable description of the failure.
func (e *DispatchError) Category() string {
	if e == nil || len(e.Failures) == 0 {
		return "analysis could not be started"
	}
	return "could not start " + labels(e.Failures)
}

// JobError reports that one or more analysis jobs failed.
type JobError struct {
	Failures []JobFailure
	Tick     int
}

func (e *JobError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "analysis failed: " + joinFailures(e.Failures)
}

func (e *JobError) Is(target error) bool { return target == ErrJobFailed }
func (e *JobError) ErrorKind() string    { return "analysis_job" }

// Category returns a human-readable description of the failure.
func (e *JobError) Category() string {
	if e == nil || len(e.Failures) == 0 {
		return "analysis failed"
	}
	return titleCaser.String(labels(e.Failures)) + " failed"
}

// Kinds returns the failed job kinds in dispatch order.
func (e *JobError) Kinds() []session.JobKind {
	out := make([]session.JobKind, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Kind)
	}
	return out
}

// TimeoutError reports that the jobs did not finish within the ceiling.
type TimeoutError struct {
	Waited  time.Duration
	Pending []session.JobKind
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	names := make([]string, 0, len(e.Pending))
	for _, kind := range e.Pending {
		names = append(names, kind.Label())
	}
	return fmt.Sprintf("analysis still running after %s (%s)", e.Waited.Round(time.Second), strings.Join(names, ", "))
}

func (e *TimeoutError) Is(target error) bool { return target == ErrPollingTimeout }
func (e *TimeoutError) ErrorKind() string    { return "polling_timeout" }

// Category returns a human-readable description of the failure.
func (e *TimeoutError) Category() string {
	return "analysis took too long"
}

func sortFailures(failures []JobFailure) {
	order := make(map[session.JobKind]int, 3)
	for i, kind := range session.AllJobKinds() {
		order[kind] = i
	}
	sort.SliceStable(failures, func(i, j int) bool {
		return order[failures[i].Kind] < order[failures[j].Kind]
	})
}

func joinFailures(failures []JobFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

func labels(failures []JobFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, f.Kind.Label())
	}
	return strings.Join(parts, " and ")
}
