package analysis

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"crewbe/internal/logging"
	"crewbe/internal/services"
	"crewbe/internal/session"
)

// Dispatcher starts the three analysis jobs for a storage key.
type Dispatcher struct {
	providers Providers
	bucket    string
	language  string
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher. language is a BCP-47 hint for
// speech-to-text and is canonicalized here.
func NewDispatcher(providers Providers, bucket, lang string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		bucket:    bucket,
		language:  NormalizeLanguage(lang),
		logger:    logging.NewComponentLogger(logger, "dispatch"),
	}
}

// NormalizeLanguage canonicalizes a BCP-47 tag, defaulting to ko-KR.
func NormalizeLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "ko-KR"
	}
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	return tag.String()
}

// Start launches the three jobs concurrently and returns them in dispatch
// order. A job whose start call fails is returned as failed_to_start with the
// error; the other jobs are unaffected. Start itself fails only when no job
// can be attempted.
func (d *Dispatcher) Start(ctx context.Context, key string) ([]session.AnalysisJob, error) {
	logger := logging.WithContext(ctx, d.logger)
	if strings.TrimSpace(key) == "" {
		return nil, &DispatchError{Err: services.Wrap(services.ErrValidation, "dispatch", "start", "storage key is empty", nil)}
	}
	if err := d.providers.Validate(); err != nil {
		return nil, &DispatchError{Err: services.Wrap(services.ErrConfiguration, "dispatch", "start", err.Error(), nil)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &DispatchError{Err: err}
	}

	media := Media{Bucket: d.bucket, Key: key, LanguageHint: d.language}
	kinds := session.AllJobKinds()
	jobs := make([]session.AnalysisJob, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind session.JobKind) {
			defer wg.Done()
			jobs[i] = d.startOne(ctx, logger, kind, media)
		}(i, kind)
	}
	wg.Wait()

	started := 0
	for _, job := range jobs {
		if job.Status != session.JobFailedToStart {
			started++
		}
	}
	logger.Info("analysis jobs dispatched",
		logging.String(logging.FieldEventType, "analysis_dispatched"),
		logging.String(logging.FieldStorageKey, key),
		logging.Int("started", started),
		logging.Int("failed_to_start", len(jobs)-started),
	)
	return jobs, nil
}

func (d *Dispatcher) startOne(ctx context.Context, logger *slog.Logger, kind session.JobKind, media Media) session.AnalysisJob {
	now := time.Now()
	job := session.AnalysisJob{Kind: kind, StartedAt: now, UpdatedAt: now}
	handle, err := d.providers.For(kind).Start(ctx, media)
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = session.JobFailedToStart
		job.Error = err.Error()
		logging.WarnWithContext(logger, "analysis job failed to start", "analysis_start_failed",
			logging.Error(err),
			logging.String(logging.FieldJobKind, string(kind)),
			logging.String(logging.FieldErrorHint, "check provider credentials and quotas"),
			logging.String(logging.FieldImpact, "session will fail without retrying"),
		)
		return job
	}
	job.Handle = handle
	job.Status = session.JobRunning
	logger.Debug("analysis job started",
		logging.String(logging.FieldJobKind, string(kind)),
		logging.String(logging.FieldJobID, handle),
	)
	return job
}
