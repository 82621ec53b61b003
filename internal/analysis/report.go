package analysis

import (
	"time"

	"crewbe/internal/session"
)

// ReportMeta carries the session metadata stamped into a report.
type ReportMeta struct {
	SessionID       string
	StorageKey      string
	Simulated       bool
	Candidate       session.Candidate
	DurationSeconds float64
	RecordedAt      time.Time
	// MaxFaces and MaxSegments cap the detections kept in the report; totals
	// always count every detection.
	MaxFaces    int
	MaxSegments int
}

// Merge builds the report from three successful results.
func Merge(meta ReportMeta, results Results) session.Report {
	faces := results.Faces
	if faces.Total < len(faces.Faces) {
		faces.Total = len(faces.Faces)
	}
	if meta.MaxFaces > 0 && len(faces.Faces) > meta.MaxFaces {
		faces.Faces = append([]session.FaceDetection(nil), faces.Faces[:meta.MaxFaces]...)
	}

	segments := results.Segments
	if segments.Total < len(segments.Segments) {
		segments.Total = len(segments.Segments)
	}
	if meta.MaxSegments > 0 && len(segments.Segments) > meta.MaxSegments {
		segments.Segments = append([]session.Segment(nil), segments.Segments[:meta.MaxSegments]...)
	}

	return session.Report{
		SessionID:       meta.SessionID,
		StorageKey:      meta.StorageKey,
		Simulated:       meta.Simulated,
		Candidate:       meta.Candidate,
		DurationSeconds: meta.DurationSeconds,
		RecordedAt:      meta.RecordedAt,
		CompletedAt:     time.Now().UTC(),
		Transcription:   results.Transcription,
		Faces:           faces,
		Segments:        segments,
	}
}
