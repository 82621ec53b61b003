package session

import (
	"time"
)

// Phase is the pipeline phase a session is in. Phases are owned by the
// workflow state machine; the store only records them.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseUploading Phase = "uploading"
	PhaseAnalyzing Phase = "analyzing"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

var phaseOrder = []Phase{
	PhaseIdle,
	PhaseRecording,
	PhaseUploading,
	PhaseAnalyzing,
	PhaseDone,
	PhaseFailed,
}

// AllPhases returns every phase in pipeline order.
func AllPhases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// ParsePhase converts a string into a Phase.
func ParsePhase(value string) (Phase, bool) {
	for _, phase := range phaseOrder {
		if string(phase) == value {
			return phase, true
		}
	}
	return "", false
}

// IsTerminal reports whether the phase ends a session.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// IsActive reports whether a session in this phase still has work in flight.
func (p Phase) IsActive() bool {
	switch p {
	case PhaseRecording, PhaseUploading, PhaseAnalyzing:
		return true
	default:
		return false
	}
}

// AttemptRole distinguishes the primary upload attempt from the fallback.
type AttemptRole string

const (
	RolePrimary  AttemptRole = "primary"
	RoleFallback AttemptRole = "fallback"
)

// AttemptOutcome is the result of one upload attempt.
type AttemptOutcome string

const (
	OutcomeSucceeded AttemptOutcome = "succeeded"
	OutcomeFailed    AttemptOutcome = "failed"
)

// UploadAttempt records one try at storing the recording. A session has one
// primary attempt and at most one fallback attempt.
type UploadAttempt struct {
	Role             AttemptRole    `json:"role"`
	Strategy         string         `json:"strategy"`
	Key              string         `json:"key,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	EndedAt          time.Time      `json:"ended_at"`
	BytesTransferred int64          `json:"bytes_transferred"`
	Outcome          AttemptOutcome `json:"outcome"`
	Error            string         `json:"error,omitempty"`
	// StrayObject is set when a failed attempt may have left an object behind
	// under Key. It is recorded for cleanup and otherwise ignored.
	StrayObject bool `json:"stray_object,omitempty"`
}

// Duration returns how long the attempt took.
func (a UploadAttempt) Duration() time.Duration {
	if a.EndedAt.IsZero() || a.StartedAt.IsZero() || a.EndedAt.Before(a.StartedAt) {
		return 0
	}
	return a.EndedAt.Sub(a.StartedAt)
}

// ThroughputMbps returns the attempt's transfer rate in megabits per second.
func (a UploadAttempt) ThroughputMbps() float64 {
	d := a.Duration()
	if d <= 0 || a.BytesTransferred <= 0 {
		return 0
	}
	return float64(a.BytesTransferred*8) / d.Seconds() / 1_000_000
}

// JobKind identifies one of the three analysis jobs.
type JobKind string

const (
	JobTranscription JobKind = "transcription"
	JobFace          JobKind = "face"
	JobSegment       JobKind = "segment"
)

// AllJobKinds returns the three job kinds in dispatch order.
func AllJobKinds() []JobKind {
	return []JobKind{JobTranscription, JobFace, JobSegment}
}

// WireName returns the short name the crewbe API uses for the job kind.
func (k JobKind) WireName() string {
	if k == JobTranscription {
		return "stt"
	}
	return string(k)
}

// ParseJobKind accepts both the long and the wire names.
func ParseJobKind(value string) (JobKind, bool) {
	switch value {
	case "stt", string(JobTranscription):
		return JobTranscription, true
	case string(JobFace):
		return JobFace, true
	case string(JobSegment):
		return JobSegment, true
	}
	return "", false
}

// Label returns a human-readable job name.
func (k JobKind) Label() string {
	switch k {
	case JobTranscription:
		return "speech-to-text"
	case JobFace:
		return "face detection"
	case JobSegment:
		return "segment detection"
	default:
		return string(k)
	}
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending       JobStatus = "pending"
	JobRunning       JobStatus = "running"
	JobSucceeded     JobStatus = "succeeded"
	JobFailed        JobStatus = "failed"
	JobFailedToStart JobStatus = "failed_to_start"
)

// IsTerminal reports whether no further status changes are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobFailedToStart
}

// IsFailure reports whether the status is any failure flavour.
func (s JobStatus) IsFailure() bool {
	return s == JobFailed || s == JobFailedToStart
}

// AnalysisJob is one remote analysis job. Exactly three exist per analyzed
// session, one per kind.
type AnalysisJob struct {
	Kind      JobKind   `json:"kind"`
	Handle    string    `json:"handle,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate identifies the person recorded in a session.
type Candidate struct {
	Name    string `json:"name,omitempty"`
	Airline string `json:"airline,omitempty"`
}

// Session is one recording session and everything the pipeline learned about it.
type Session struct {
	ID              string
	Phase           Phase
	Candidate       Candidate
	DurationSeconds float64
	BlobSize        int64
	BlobPath        string
	ContentType     string
	StorageKey      string
	Simulated       bool
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Attempts        []UploadAttempt
	Jobs            []AnalysisJob
	Report          *Report
}

// Job returns the job of the given kind, if present.
func (s *Session) Job(kind JobKind) (AnalysisJob, bool) {
	if s == nil {
		return AnalysisJob{}, false
	}
	for _, job := range s.Jobs {
		if job.Kind == kind {
			return job, true
		}
	}
	return AnalysisJob{}, false
}
