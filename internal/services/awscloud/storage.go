package awscloud

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"crewbe/internal/services"
)

// S3API is the subset of the S3 client used by Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used by Storage.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Exists       bool
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Storage writes and inspects recordings in one bucket.
type Storage struct {
	client    S3API
	presigner PresignAPI
	bucket    string
}

// NewStorage wraps S3 clients for bucket.
func NewStorage(client S3API, presigner PresignAPI, bucket string) *Storage {
	return &Storage{client: client, presigner: presigner, bucket: strings.TrimSpace(bucket)}
}

// Bucket returns the recording bucket.
func (s *Storage) Bucket() string { return s.bucket }

// PresignPut returns a PUT URL valid for ttl and scoped to key.
func (s *Storage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", providerError("presign put", err)
	}
	return req.URL, nil
}

// Put stores body under key with the server's own credentials.
func (s *Storage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return providerError("put object", err)
	}
	return nil
}

// Head reports whether key exists. A missing object is not an error.
func (s *Storage) Head(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, nil
		}
		return ObjectInfo{}, providerError("head object", err)
	}
	return ObjectInfo{
		Exists:       true,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
	}, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return errors.Is(err, services.ErrNotFound)
}
