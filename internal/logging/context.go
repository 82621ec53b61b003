package logging

import (
	"context"
	"log/slog"

	"crewbe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for recording session identifiers.
	FieldSessionID = "session_id"
	// FieldPhase is the standardized structured logging key for pipeline phase names.
	FieldPhase = "phase"
	// FieldJobKind is the standardized structured logging key for analysis job kinds (stt, face, segment).
	FieldJobKind = "job_kind"
	// FieldJobID is the standardized structured logging key for remote analysis job identifiers.
	FieldJobID = "job_id"
	// FieldStorageKey is the standardized structured logging key for object storage keys.
	FieldStorageKey = "storage_key"
	// FieldStrategy is the standardized structured logging key for upload strategy names.
	FieldStrategy = "strategy"
	// FieldSimulated flags uploads that reported success without storing an object.
	FieldSimulated = "simulated"
	// FieldEventType classifies a log line for filtering (e.g. upload_fallback).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
