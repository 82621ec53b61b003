package awscloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"

	"crewbe/internal/analysis"
	"crewbe/internal/config"
	"crewbe/internal/services"
)

// Clients bundles the SDK clients configured for one region.
type Clients struct {
	Storage   *Storage
	Providers analysis.Providers
	Region    string
}

// New loads the default AWS credential chain and builds storage plus the
// three providers from the [storage] and [analysis] sections.
func New(ctx context.Context, cfg *config.Config) (*Clients, error) {
	region := strings.TrimSpace(cfg.Storage.Region)
	if region == "" {
		return nil, services.Wrap(services.ErrConfiguration, "awscloud", "load", "storage.region is empty", nil)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "awscloud", "load", "aws credentials", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Storage.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	transcribeClient := transcribe.NewFromConfig(awsCfg)
	rekognitionClient := rekognition.NewFromConfig(awsCfg)

	return &Clients{
		Storage: NewStorage(s3Client, s3.NewPresignClient(s3Client), cfg.Storage.Bucket),
		Providers: analysis.Providers{
			Transcription: NewTranscriber(transcribeClient, TranscribeOptions{
				OutputBucket:     cfg.Analysis.OutputBucket,
				MediaFormat:      cfg.Analysis.MediaFormat,
				MaxSpeakerLabels: cfg.Analysis.MaxSpeakerLabels,
			}),
			Face:    NewFaceDetector(rekognitionClient),
			Segment: NewSegmentDetector(rekognitionClient, cfg.Analysis.SegmentTypes),
		},
		Region: region,
	}, nil
}

func providerError(op string, err error) error {
	return services.Wrap(services.ErrExternalTool, "awscloud", op, "", err)
}

func failureReason(message *string, fallback string) string {
	if reason := strings.TrimSpace(aws.ToString(message)); reason != "" {
		return reason
	}
	return fallback
}

func requireHandle(op, handle string) error {
	if strings.TrimSpace(handle) == "" {
		return services.Wrap(services.ErrValidation, "awscloud", op, "job handle is empty", nil)
	}
	return nil
}

func requireKey(op string, media analysis.Media) error {
	if strings.TrimSpace(media.Key) == "" || strings.TrimSpace(media.Bucket) == "" {
		return services.Wrap(services.ErrValidation, "awscloud", op, fmt.Sprintf("incomplete media location %q", media.URI()), nil)
	}
	return nil
}
