package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Wire job statuses reported by the analysis routes.
const (
	StatusQueued     = "QUEUED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
	StatusError      = "ERROR"
)

// ErrorResponse is returned by every route on failure.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PresignRequest asks for a write credential. S3Key is the client-generated
// key; when empty the server generates one.
type PresignRequest struct {
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
	S3Key    string `json:"s3Key,omitempty"`
}

// PresignResponse carries a presigned PUT URL scoped to one key.
type PresignResponse struct {
	Success      bool   `json:"success"`
	PresignedURL string `json:"presignedUrl"`
	S3Key        string `json:"s3Key"`
	Bucket       string `json:"bucket"`
	ExpiresIn    int    `json:"expiresIn"`
	Timestamp    string `json:"timestamp"`
}

// DirectUploadResponse reports a proxied upload. S3Key is canonical.
type DirectUploadResponse struct {
	Success   bool   `json:"success"`
	S3Key     string `json:"s3Key"`
	Bucket    string `json:"bucket"`
	FileSize  int64  `json:"fileSize"`
	Timestamp string `json:"timestamp"`
}

// UploadStatusResponse reports whether an object exists.
type UploadStatusResponse struct {
	Success      bool   `json:"success"`
	Exists       bool   `json:"exists"`
	S3Key        string `json:"s3Key"`
	FileSize     int64  `json:"fileSize,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// StartAnalysisRequest starts analysis for an uploaded object.
type StartAnalysisRequest struct {
	S3Key  string `json:"s3Key"`
	Bucket string `json:"bucket,omitempty"`
	// LanguageCode is the BCP-47 speech-to-text hint. The server's configured
	// language applies when it is empty.
	LanguageCode string `json:"languageCode,omitempty"`
}

// JobStart is the outcome of starting one job: IN_PROGRESS with an id, or
// FAILED with an error.
type JobStart struct {
	JobID  string `json:"jobId,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AnalysisJobs groups the three start outcomes.
type AnalysisJobs struct {
	STT              JobStart `json:"stt"`
	FaceDetection    JobStart `json:"faceDetection"`
	SegmentDetection JobStart `json:"segmentDetection"`
}

// StartAnalysisResponse answers POST /api/analysis/start.
type StartAnalysisResponse struct {
	Success      bool         `json:"success"`
	S3Key        string       `json:"s3Key"`
	Bucket       string       `json:"bucket"`
	AnalysisJobs AnalysisJobs `json:"analysisJobs"`
	Timestamp    string       `json:"timestamp"`
}

// StartJobResponse answers POST /api/analysis/start/{type}.
type StartJobResponse struct {
	Success   bool     `json:"success"`
	JobType   string   `json:"jobType"`
	Job       JobStart `json:"job"`
	Timestamp string   `json:"timestamp"`
}

// Face is one face detection on the wire.
type Face struct {
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	AgeLow     int     `json:"ageLow,omitempty"`
	AgeHigh    int     `json:"ageHigh,omitempty"`
	Smile      bool    `json:"smile"`
	EyesOpen   bool    `json:"eyesOpen"`
	Emotion    string  `json:"emotion,omitempty"`
}

// Segment is one detected segment on the wire.
type Segment struct {
	Type                 string `json:"type"`
	StartTimestampMillis int64  `json:"startTimestampMillis"`
	EndTimestampMillis   int64  `json:"endTimestampMillis"`
	DurationMillis       int64  `json:"durationMillis"`
}

// JobStatus is the status of one job. Result fields are set only once the
// job completed.
type JobStatus struct {
	JobID          string    `json:"jobId,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreationTime   string    `json:"creationTime,omitempty"`
	CompletionTime string    `json:"completionTime,omitempty"`
	TranscriptURI  string    `json:"transcriptUri,omitempty"`
	LanguageCode   string    `json:"languageCode,omitempty"`
	FaceCount      int       `json:"faceCount,omitempty"`
	Faces          []Face    `json:"faceDetections,omitempty"`
	SegmentCount   int       `json:"segmentCount,omitempty"`
	Segments       []Segment `json:"segments,omitempty"`
}

// JobStatusResponse answers GET /api/analysis/status/{type}/{id}.
type JobStatusResponse struct {
	Success   bool      `json:"success"`
	JobType   string    `json:"jobType"`
	Result    JobStatus `json:"result"`
	Timestamp string    `json:"timestamp"`
}

// StatusAllRequest names job ids by wire type (stt, face, segment).
type StatusAllRequest struct {
	Jobs map[string]string `json:"jobs"`
}

// StatusAllResponse answers POST /api/analysis/status-all.
type StatusAllResponse struct {
	Success   bool                 `json:"success"`
	Results   map[string]JobStatus `json:"results"`
	Timestamp string               `json:"timestamp"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Region       string `json:"region"`
	Bucket       string `json:"bucket"`
	OutputBucket string `json:"outputBucket"`
	Version      string `json:"version,omitempty"`
	Timestamp    string `json:"timestamp"`
}
