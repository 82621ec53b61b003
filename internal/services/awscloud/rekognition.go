package awscloud

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"crewbe/internal/analysis"
	"crewbe/internal/session"
)

const (
	pageSize = 1000
	maxPages = 20
)

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	StartFaceDetection(ctx context.Context, params *rekognition.StartFaceDetectionInput, optFns ...func(*rekognition.Options)) (*rekognition.StartFaceDetectionOutput, error)
	GetFaceDetection(ctx context.Context, params *rekognition.GetFaceDetectionInput, optFns ...func(*rekognition.Options)) (*rekognition.GetFaceDetectionOutput, error)
	StartSegmentDetection(ctx context.Context, params *rekognition.StartSegmentDetectionInput, optFns ...func(*rekognition.Options)) (*rekognition.StartSegmentDetectionOutput, error)
	GetSegmentDetection(ctx context.Context, params *rekognition.GetSegmentDetectionInput, optFns ...func(*rekognition.Options)) (*rekognition.GetSegmentDetectionOutput, error)
}

func video(media analysis.Media) *types.Video {
	return &types.Video{S3Object: &types.S3Object{
		Bucket: aws.String(media.Bucket),
		Name:   aws.String(media.Key),
	}}
}

// FaceDetector runs face detection with all facial attributes.
type FaceDetector struct {
	client RekognitionAPI
}

// NewFaceDetector wraps a Rekognition client.
func NewFaceDetector(client RekognitionAPI) *FaceDetector {
	return &FaceDetector{client: client}
}

func (d *FaceDetector) Kind() session.JobKind { return session.JobFace }

func (d *FaceDetector) Start(ctx context.Context, media analysis.Media) (string, error) {
	if err := requireKey("start face detection", media); err != nil {
		return "", err
	}
	out, err := d.client.StartFaceDetection(ctx, &rekognition.StartFaceDetectionInput{
		Video:          video(media),
		FaceAttributes: types.FaceAttributesAll,
	})
	if err != nil {
		return "", providerError("start face detection", err)
	}
	return aws.ToString(out.JobId), nil
}

// Status returns every detection once the job succeeded, following result
// pages so Total counts them all.
func (d *FaceDetector) Status(ctx context.Context, handle string) (analysis.Status, error) {
	if err := requireHandle("face detection status", handle); err != nil {
		return analysis.Status{}, err
	}
	input := &rekognition.GetFaceDetectionInput{JobId: aws.String(handle), MaxResults: aws.Int32(pageSize)}
	var faces []session.FaceDetection
	for page := 0; page < maxPages; page++ {
		out, err := d.client.GetFaceDetection(ctx, input)
		if err != nil {
			return analysis.Status{}, providerError("face detection status", err)
		}
		switch out.JobStatus {
		case types.VideoJobStatusFailed:
			return analysis.Status{State: session.JobFailed, Reason: failureReason(out.StatusMessage, "face detection failed")}, nil
		case types.VideoJobStatusSucceeded:
		default:
			return analysis.Status{State: session.JobRunning}, nil
		}
		for _, detection := range out.Faces {
			faces = append(faces, convertFace(detection))
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}
	return analysis.Status{
		State: session.JobSucceeded,
		Faces: &session.FaceResult{Total: len(faces), Faces: faces},
	}, nil
}

func convertFace(detection types.FaceDetection) session.FaceDetection {
	face := session.FaceDetection{TimestampMillis: detection.Timestamp}
	detail := detection.Face
	if detail == nil {
		return face
	}
	face.Confidence = float64(aws.ToFloat32(detail.Confidence))
	if detail.AgeRange != nil {
		face.AgeLow = int(aws.ToInt32(detail.AgeRange.Low))
		face.AgeHigh = int(aws.ToInt32(detail.AgeRange.High))
	}
	if detail.Smile != nil {
		face.Smile = detail.Smile.Value
	}
	if detail.EyesOpen != nil {
		face.EyesOpen = detail.EyesOpen.Value
	}
	var best float32
	for _, emotion := range detail.Emotions {
		if c := aws.ToFloat32(emotion.Confidence); c > best {
			best = c
			face.Emotion = string(emotion.Type)
		}
	}
	return face
}

// SegmentDetector runs technical cue and shot detection.
type SegmentDetector struct {
	client RekognitionAPI
	types  []types.SegmentType
}

// NewSegmentDetector wraps a Rekognition client. Empty segmentTypes selects
// TECHNICAL_CUE and SHOT.
func NewSegmentDetector(client RekognitionAPI, segmentTypes []string) *SegmentDetector {
	var selected []types.SegmentType
	for _, t := range segmentTypes {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			selected = append(selected, types.SegmentType(t))
		}
	}
	if len(selected) == 0 {
		selected = []types.SegmentType{types.SegmentTypeTechnicalCue, types.SegmentTypeShot}
	}
	return &SegmentDetector{client: client, types: selected}
}

func (d *SegmentDetector) Kind() session.JobKind { return session.JobSegment }

func (d *SegmentDetector) Start(ctx context.Context, media analysis.Media) (string, error) {
	if err := requireKey("start segment detection", media); err != nil {
		return "", err
	}
	out, err := d.client.StartSegmentDetection(ctx, &rekognition.StartSegmentDetectionInput{
		Video:        video(media),
		SegmentTypes: d.types,
	})
	if err != nil {
		return "", providerError("start segment detection", err)
	}
	return aws.ToString(out.JobId), nil
}

func (d *SegmentDetector) Status(ctx context.Context, handle string) (analysis.Status, error) {
	if err := requireHandle("segment detection status", handle); err != nil {
		return analysis.Status{}, err
	}
	input := &rekognition.GetSegmentDetectionInput{JobId: aws.String(handle), MaxResults: aws.Int32(pageSize)}
	var segments []session.Segment
	for page := 0; page < maxPages; page++ {
		out, err := d.client.GetSegmentDetection(ctx, input)
		if err != nil {
			return analysis.Status{}, providerError("segment detection status", err)
		}
		switch out.JobStatus {
		case types.VideoJobStatusFailed:
			return analysis.Status{State: session.JobFailed, Reason: failureReason(out.StatusMessage, "segment detection failed")}, nil
		case types.VideoJobStatusSucceeded:
		default:
			return analysis.Status{State: session.JobRunning}, nil
		}
		for _, seg := range out.Segments {
			segments = append(segments, session.Segment{
				Type:                 string(seg.Type),
				StartTimestampMillis: seg.StartTimestampMillis,
				EndTimestampMillis:   seg.EndTimestampMillis,
				DurationMillis:       aws.ToInt64(seg.DurationMillis),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}
	return analysis.Status{
		State:    session.JobSucceeded,
		Segments: &session.SegmentResult{Total: len(segments), Segments: segments},
	}, nil
}
