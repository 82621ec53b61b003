package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crewbe/internal/logging"
	"crewbe/internal/session"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Results holds the three successful job payloads.
type Results struct {
	Transcription session.TranscriptionResult
	Faces         session.FaceResult
	Segments      session.SegmentResult
}

// PollerOptions configures the Poller.
type PollerOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnUpdate is called for every job whose status changed on a tick.
	OnUpdate func(session.AnalysisJob)
}

// Poller waits for dispatched jobs to finish.
type Poller struct {
	providers Providers
	opts      PollerOptions
	logger    *slog.Logger
}

// NewPoller constructs a Poller.
func NewPoller(providers Providers, opts PollerOptions, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	return &Poller{providers: providers, opts: opts, logger: logging.NewComponentLogger(logger, "poller")}
}

type tickResult struct {
	index  int
	status Status
	err    error
}

// Await polls until every job succeeded, any job failed, the ceiling passes,
// or ctx is cancelled. The wait between ticks is purely time-driven. On
// failure the remaining jobs are abandoned and left running remotely.
func (p *Poller) Await(ctx context.Context, jobs []session.AnalysisJob) (Results, error) {
	logger := logging.WithContext(ctx, p.logger)
	jobs = append([]session.AnalysisJob(nil), jobs...)

	if len(jobs) == 0 {
		return Results{}, &DispatchError{Err: errors.New("no analysis jobs to await")}
	}
	if failures := failedJobs(jobs); len(failures) > 0 {
		return Results{}, &DispatchError{Failures: failures}
	}

	var results Results
	started := time.Now()
	deadline := started.Add(p.opts.Timeout)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			logger.Info("analysis polling abandoned",
				logging.String(logging.FieldEventType, "analysis_abandoned"),
				logging.Int("tick", tick-1),
			)
			return Results{}, ctx.Err()
		case <-ticker.C:
		}

		for _, res := range p.queryPending(ctx, jobs) {
			job := &jobs[res.index]
			if res.err != nil {
				logger.Debug("status query failed; retrying next tick",
					logging.Error(res.err),
					logging.String(logging.FieldJobKind, string(job.Kind)),
					logging.Int("tick", tick),
				)
				continue
			}
			state := res.status.State
			if !state.IsTerminal() {
				state = session.JobRunning
			}
			if state == job.Status {
				continue
			}
			job.Status = state
			job.Error = res.status.Reason
			job.UpdatedAt = time.Now()
			if job.Status == session.JobSucceeded {
				collect(&results, *job, res.status)
			}
			if p.opts.OnUpdate != nil {
				p.opts.OnUpdate(*job)
			}
			logger.Info("analysis job status changed",
				logging.String(logging.FieldJobKind, string(job.Kind)),
				logging.String("status", string(job.Status)),
				logging.Int("tick", tick),
			)
		}

		if failures := failedJobs(jobs); len(failures) > 0 {
			logging.WarnWithContext(logger, "analysis job failed; abandoning remaining jobs", "analysis_failed",
				logging.Int("tick", tick),
				logging.Int("failed", len(failures)),
				logging.String(logging.FieldErrorHint, "inspect the failed job in the provider console"),
				logging.String(logging.FieldImpact, "session fails; remaining jobs keep running remotely"),
			)
			return Results{}, &JobError{Failures: failures, Tick: tick}
		}
		if allSucceeded(jobs) {
			logger.Info("analysis complete",
				logging.String(logging.FieldEventType, "analysis_complete"),
				logging.Int("ticks", tick),
				logging.Duration("elapsed", time.Since(started)),
			)
			return results, nil
		}
		if !time.Now().Before(deadline) {
			return Results{}, &TimeoutError{Waited: time.Since(started), Pending: pendingKinds(jobs)}
		}
	}
}

// queryPending fans status queries out to every non-terminal job and waits for
// all of them.
func (p *Poller) queryPending(ctx context.Context, jobs []session.AnalysisJob) []tickResult {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out []tickResult
	)
	for i, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}
		provider := p.providers.For(job.Kind)
		wg.Add(1)
		go func(i int, handle string) {
			defer wg.Done()
			status, err := provider.Status(ctx, handle)
			mu.Lock()
			out = append(out, tickResult{index: i, status: status, err: err})
			mu.Unlock()
		}(i, job.Handle)
	}
	wg.Wait()
	return out
}

func collect(results *Results, job session.AnalysisJob, status Status) {
	switch job.Kind {
	case session.JobTranscription:
		if status.Transcription != nil {
			results.Transcription = *status.Transcription
		}
		results.Transcription.JobHandle = job.Handle
	case session.JobFace:
		if status.Faces != nil {
			results.Faces = *status.Faces
		}
		results.Faces.JobHandle = job.Handle
	case session.JobSegment:
		if status.Segments != nil {
			results.Segments = *status.Segments
		}
		results.Segments.JobHandle = job.Handle
	}
}

func failedJobs(jobs []session.AnalysisJob) []JobFailure {
	var failures []JobFailure
	for _, job := range jobs {
		if job.Status.IsFailure() {
			failures = append(failures, JobFailure{Kind: job.Kind, Handle: job.Handle, Reason: job.Error})
		}
	}
	sortFailures(failures)
	return failures
}

func allSucceeded(jobs []session.AnalysisJob) bool {
	if len(jobs) == 0 {
		return false
	}
	for _, job := range jobs {
		if job.Status != session.JobSucceeded {
			return false
		}
	}
	return true
}

func pendingKinds(jobs []session.AnalysisJob) []session.JobKind {
	var out []session.JobKind
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			out = append(out, job.Kind)
		}
	}
	return out
}
