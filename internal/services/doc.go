// Package services defines shared utilities consumed by the pipeline stages and
// their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so collaborator failures
//     (credential issuer, object storage, analysis providers) classify the same
//     way regardless of transport.
//
// Concrete collaborators live in subpackages: backend talks to the crewbe API
// over HTTP and awscloud talks to S3, Transcribe, and Rekognition directly.
package services
