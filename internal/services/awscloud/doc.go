// Package awscloud implements object storage and the three analysis
// providers on AWS: S3 for recordings, Transcribe for speech-to-text and
// Rekognition for face and segment detection.
//
// Each service is reached through a narrow interface over the SDK client so
// the daemon handlers and the providers can be exercised with fakes. Job
// statuses are normalized onto session.JobStatus here; the raw provider codes
// never leave this package except as failure reasons.
package awscloud
