package session

import "time"

// Report merges the three analysis results with session metadata. It exists
// only when every job succeeded, and it carries exactly one result per kind.
type Report struct {
	SessionID       string              `json:"session_id"`
	StorageKey      string              `json:"storage_key"`
	// Simulated is set when the upload was a placeholder and StorageKey names
	// no stored object.
	Simulated       bool                `json:"simulated"`
	Candidate       Candidate           `json:"candidate"`
	DurationSeconds float64             `json:"duration_seconds"`
	RecordedAt      time.Time           `json:"recorded_at"`
	CompletedAt     time.Time           `json:"completed_at"`
	Transcription   TranscriptionResult `json:"transcription"`
	Faces           FaceResult          `json:"faces"`
	Segments        SegmentResult       `json:"segments"`
}

// TranscriptionResult points at the transcript produced by the provider.
type TranscriptionResult struct {
	JobHandle   string `json:"job_handle"`
	ResultURI   string `json:"result_uri"`
	Language    string `json:"language,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// FaceResult summarizes face detections. Faces is capped; Total counts all.
type FaceResult struct {
	JobHandle string          `json:"job_handle"`
	Total     int             `json:"total"`
	Faces     []FaceDetection `json:"faces,omitempty"`
}

// FaceDetection is one detected face at a point in the recording.
type FaceDetection struct {
	TimestampMillis int64   `json:"timestamp_ms"`
	Confidence      float64 `json:"confidence"`
	AgeLow          int     `json:"age_low,omitempty"`
	AgeHigh         int     `json:"age_high,omitempty"`
	Smile           bool    `json:"smile,omitempty"`
	EyesOpen        bool    `json:"eyes_open,omitempty"`
	Emotion         string  `json:"emotion,omitempty"`
}

// SegmentResult summarizes detected segments. Segments is capped; Total counts all.
type SegmentResult struct {
	JobHandle string    `json:"job_handle"`
	Total     int       `json:"total"`
	Segments  []Segment `json:"segments,omitempty"`
}

// Segment is one technical cue or shot.
type Segment struct {
	Type                 string `json:"type"`
	StartTimestampMillis int64  `json:"start_ms"`
	EndTimestampMillis   int64  `json:"end_ms"`
	DurationMillis       int64  `json:"duration_ms"`
}
