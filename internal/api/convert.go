package api

import (
	"strings"
	"time"

	"crewbe/internal/session"
)

// FormatTime renders a timestamp for the wire; zero times render empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// Now returns the current wire timestamp.
func Now() string {
	return FormatTime(time.Now())
}

// ParseTime parses a wire timestamp, accepting plain RFC3339 as well.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ToJobStatus maps a wire status onto the session job status. The second
// result is false for ERROR and unknown values, which mean the status query
// itself failed rather than the job.
func ToJobStatus(wire string) (session.JobStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(wire)) {
	case StatusCompleted, StatusSucceeded:
		return session.JobSucceeded, true
	case StatusFailed:
		return session.JobFailed, true
	case StatusQueued, StatusInProgress:
		return session.JobRunning, true
	default:
		return "", false
	}
}

// FacesToWire converts face detections, keeping at most limit (0 keeps all).
func FacesToWire(faces []session.FaceDetection, limit int) []Face {
	if limit > 0 && len(faces) > limit {
		faces = faces[:limit]
	}
	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		out = append(out, Face{
			Timestamp:  f.TimestampMillis,
			Confidence: f.Confidence,
			AgeLow:     f.AgeLow,
			AgeHigh:    f.AgeHigh,
			Smile:      f.Smile,
			EyesOpen:   f.EyesOpen,
			Emotion:    f.Emotion,
		})
	}
	return out
}

// FacesFromWire converts wire face detections.
func FacesFromWire(faces []Face) []session.FaceDetection {
	out := make([]session.FaceDetection, 0, len(faces))
	for _, f := range faces {
		out = append(out, session.FaceDetection{
			TimestampMillis: f.Timestamp,
			Confidence:      f.Confidence,
			AgeLow:          f.AgeLow,
			AgeHigh:         f.AgeHigh,
			Smile:           f.Smile,
			EyesOpen:        f.EyesOpen,
			Emotion:         f.Emotion,
		})
	}
	return out
}

// SegmentsToWire converts segments, keeping at most limit (0 keeps all).
func SegmentsToWire(segments []session.Segment, limit int) []Segment {
	if limit > 0 && len(segments) > limit {
		segments = segments[:limit]
	}
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, Segment{
			Type:                 s.Type,
			StartTimestampMillis: s.StartTimestampMillis,
			EndTimestampMillis:   s.EndTimestampMillis,
			DurationMillis:       s.DurationMillis,
		})
	}
	return out
}

// SegmentsFromWire converts wire segments.
func SegmentsFromWire(segments []Segment) []session.Segment {
	out := make([]session.Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, session.Segment{
			Type:                 s.Type,
			StartTimestampMillis: s.StartTimestampMillis,
			EndTimestampMillis:   s.EndTimestampMillis,
			DurationMillis:       s.DurationMillis,
		})
	}
	return out
}

// SessionView is the transport form of a session used by `crewbe show --json`.
type SessionView struct {
	ID              string                  `json:"id"`
	Phase           string                  `json:"phase"`
	Candidate       session.Candidate       `json:"candidate"`
	DurationSeconds float64                 `json:"durationSeconds"`
	BlobSize        int64                   `json:"blobSize"`
	StorageKey      string                  `json:"storageKey,omitempty"`
	Simulated       bool                    `json:"simulated"`
	ErrorKind       string                  `json:"errorKind,omitempty"`
	ErrorMessage    string                  `json:"errorMessage,omitempty"`
	CreatedAt       string                  `json:"createdAt"`
	UpdatedAt       string                  `json:"updatedAt"`
	Attempts        []session.UploadAttempt `json:"attempts"`
	Jobs            []session.AnalysisJob   `json:"jobs"`
	Report          *session.Report         `json:"report,omitempty"`
}

// FromSession converts a stored session into its transport form.
func FromSession(s *session.Session) SessionView {
	if s == nil {
		return SessionView{}
	}
	view := SessionView{
		ID:              s.ID,
		Phase:           string(s.Phase),
		Candidate:       s.Candidate,
		DurationSeconds: s.DurationSeconds,
		BlobSize:        s.BlobSize,
		StorageKey:      s.StorageKey,
		Simulated:       s.Simulated,
		ErrorKind:       s.ErrorKind,
		ErrorMessage:    s.ErrorMessage,
		CreatedAt:       FormatTime(s.CreatedAt),
		UpdatedAt:       FormatTime(s.UpdatedAt),
		Attempts:        s.Attempts,
		Jobs:            s.Jobs,
		Report:          s.Report,
	}
	if view.Attempts == nil {
		view.Attempts = []session.UploadAttempt{}
	}
	if view.Jobs == nil {
		view.Jobs = []session.AnalysisJob{}
	}
	return view
}
