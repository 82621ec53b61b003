package analysis

import (
	"context"
	"fmt"

	"crewbe/internal/session"
)

// Media locates the uploaded recording for a provider.
type Media struct {
	Bucket string
	Key    string
	// LanguageHint is a BCP-47 tag used by speech-to-text.
	LanguageHint string
}

// URI returns the s3:// location of the media.
func (m Media) URI() string {
	return fmt.Sprintf("s3://%s/%s", m.Bucket, m.Key)
}

// Status is a provider's answer to a status query. Exactly one result field is
// set when State is succeeded, matching the provider's kind.
type Status struct {
	State         session.JobStatus
	Reason        string
	Transcription *session.TranscriptionResult
	Faces         *session.FaceResult
	Segments      *session.SegmentResult
}

// Provider starts and queries one kind of remote analysis job.
type Provider interface {
	Kind() session.JobKind
	Start(ctx context.Context, media Media) (string, error)
	Status(ctx context.Context, handle string) (Status, error)
}

// Providers groups the three job providers.
type Providers struct {
	Transcription Provider
	Face          Provider
	Segment       Provider
}

// For returns the provider for a job kind.
func (p Providers) For(kind session.JobKind) Provider {
	switch kind {
	case session.JobTranscription:
		return p.Transcription
	case session.JobFace:
		return p.Face
	case session.JobSegment:
		return p.Segment
	default:
		return nil
	}
}

// Validate reports a missing provider.
func (p Providers) Validate() error {
	for _, kind := range session.AllJobKinds() {
		if p.For(kind) == nil {
			return fmt.Errorf("no provider configured for %s", kind)
		}
	}
	return nil
}
