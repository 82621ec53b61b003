package awscloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"

	"crewbe/internal/analysis"
	"crewbe/internal/session"
)

// TranscribeAPI is the subset of the Transcribe client used by Transcriber.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// TranscribeOptions configures transcription jobs.
type TranscribeOptions struct {
	OutputBucket     string
	MediaFormat      string
	MaxSpeakerLabels int
}

// Transcriber runs speech-to-text jobs.
type Transcriber struct {
	client TranscribeAPI
	opts   TranscribeOptions
	now    func() time.Time
}

// NewTranscriber wraps a Transcribe client.
func NewTranscriber(client TranscribeAPI, opts TranscribeOptions) *Transcriber {
	if opts.MediaFormat == "" {
		opts.MediaFormat = string(types.MediaFormatWebm)
	}
	return &Transcriber{client: client, opts: opts, now: time.Now}
}

func (t *Transcriber) Kind() session.JobKind { return session.JobTranscription }

// Start submits a job named interview-stt-<millis>-<suffix>. The transcript
// is written to transcriptions/<job>.json in the output bucket.
func (t *Transcriber) Start(ctx context.Context, media analysis.Media) (string, error) {
	if err := requireKey("start transcription", media); err != nil {
		return "", err
	}
	name := fmt.Sprintf("interview-stt-%d-%s", t.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	input := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
		Media:                &types.Media{MediaFileUri: aws.String(media.URI())},
		MediaFormat:          types.MediaFormat(t.opts.MediaFormat),
		LanguageCode:         types.LanguageCode(media.LanguageHint),
	}
	if t.opts.OutputBucket != "" {
		input.OutputBucketName = aws.String(t.opts.OutputBucket)
		input.OutputKey = aws.String("transcriptions/" + name + ".json")
	}
	if t.opts.MaxSpeakerLabels > 1 {
		input.Settings = &types.Settings{
			ShowSpeakerLabels: aws.Bool(true),
			MaxSpeakerLabels:  aws.Int32(int32(t.opts.MaxSpeakerLabels)),
		}
	}
	if _, err := t.client.StartTranscriptionJob(ctx, input); err != nil {
		return "", providerError("start transcription", err)
	}
	return name, nil
}

func (t *Transcriber) Status(ctx context.Context, handle string) (analysis.Status, error) {
	if err := requireHandle("transcription status", handle); err != nil {
		return analysis.Status{}, err
	}
	out, err := t.client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{TranscriptionJobName: aws.String(handle)})
	if err != nil {
		return analysis.Status{}, providerError("transcription status", err)
	}
	job := out.TranscriptionJob
	if job == nil {
		return analysis.Status{}, providerError("transcription status", fmt.Errorf("job %s missing from response", handle))
	}
	switch job.TranscriptionJobStatus {
	case types.TranscriptionJobStatusCompleted:
		result := &session.TranscriptionResult{
			Language: string(job.LanguageCode),
		}
		if job.Transcript != nil {
			result.ResultURI = aws.ToString(job.Transcript.TranscriptFileUri)
		}
		if job.CompletionTime != nil {
			result.CompletedAt = job.CompletionTime.UTC().Format(time.RFC3339)
		}
		return analysis.Status{State: session.JobSucceeded, Transcription: result}, nil
	case types.TranscriptionJobStatusFailed:
		return analysis.Status{State: session.JobFailed, Reason: failureReason(job.FailureReason, "transcription failed")}, nil
	default:
		return analysis.Status{State: session.JobRunning}, nil
	}
}
