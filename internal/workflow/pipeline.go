package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crewbe/internal/analysis"
	"crewbe/internal/capture"
	"crewbe/internal/config"
	"crewbe/internal/logging"
	"crewbe/internal/notifications"
	"crewbe/internal/services"
	"crewbe/internal/session"
	"crewbe/internal/upload"
)

var (
	// ErrBusy is returned by Start when a session is already in progress.
	ErrBusy = errors.New("a session is already in progress")
	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("no recording in progress")
)

// Uploader stores a finished recording and returns its canonical key.
type Uploader interface {
	Upload(ctx context.Context, blob upload.Blob) (upload.Result, error)
}

// Deps bundles the collaborators a Pipeline drives.
type Deps struct {
	Store     *session.Store
	Device    capture.Device
	Uploader  Uploader
	Providers analysis.Providers
	Notifier  notifications.Service
}

// Snapshot is a point-in-time view of the pipeline.
type Snapshot struct {
	SessionID  string
	Phase      session.Phase
	StorageKey string
	Simulated  bool
	Elapsed    time.Duration
	Report     *session.Report
	Failure    *Failure
}

// Pipeline drives one session at a time through capture, upload and analysis.
type Pipeline struct {
	cfg        *config.Config
	opts       options
	deps       Deps
	logger     *slog.Logger
	dispatcher *analysis.Dispatcher
	bus        *eventBus

	mu       sync.Mutex
	phase    session.Phase
	starting bool
	current  *run
	snapshot Snapshot

	wg sync.WaitGroup
}

// run holds the state of one session between Start and its terminal phase.
type run struct {
	id        string
	recorder  *capture.Recorder
	hotplug   *capture.HotplugWatcher
	logger    *slog.Logger
	logCloser io.Closer
	cancel    context.CancelFunc
	finished  chan struct{}
}

// Option configures optional Pipeline behavior.
type Option func(*options)

type options struct {
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// WithPolling overrides the configured analysis poll interval and ceiling.
func WithPolling(interval, timeout time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
		o.pollTimeout = timeout
	}
}

// New constructs a Pipeline. The notifier defaults to a noop service.
func New(cfg *config.Config, deps Deps, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("workflow: session store is required")
	}
	if deps.Device == nil {
		return nil, errors.New("workflow: capture device is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("workflow: uploader is required")
	}
	if err := deps.Providers.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	o := options{pollInterval: cfg.PollInterval(), pollTimeout: cfg.AnalysisTimeout()}
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	return &Pipeline{
		cfg:        cfg,
		opts:       o,
		deps:       deps,
		logger:     logger,
		dispatcher: analysis.NewDispatcher(deps.Providers, cfg.Storage.Bucket, cfg.Analysis.Language, logger),
		bus:        newEventBus(),
		phase:      session.PhaseIdle,
		snapshot:   Snapshot{Phase: session.PhaseIdle},
	}, nil
}

// Subscribe registers an observer for subsequent events.
func (p *Pipeline) Subscribe(obs Observer) {
	p.bus.subscribe(obs)
}

// Phase returns the current phase.
func (p *Pipeline) Phase() session.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Snapshot returns the current pipeline view.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.snapshot
	snap.Phase = p.phase
	if p.current != nil && p.phase == session.PhaseRecording {
		snap.Elapsed = p.current.recorder.Elapsed()
	}
	return snap
}

// Start creates a session and begins recording. A device that cannot be
// acquired moves the session straight to failed and the capture error is
// returned.
func (p *Pipeline) Start(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.phase != session.PhaseIdle || p.starting {
		p.mu.Unlock()
		return "", ErrBusy
	}
	p.starting = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.starting = false
		p.mu.Unlock()
	}()

	candidate := session.Candidate{Name: p.cfg.Candidate.Name, Airline: p.cfg.Candidate.Airline}
	sess, err := p.deps.Store.Create(ctx, candidate, p.cfg.Capture.ContentType)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	runLogger, closer, err := logging.NewSessionLogger(p.logger, p.cfg.Paths.LogDir, sess.ID)
	if err != nil {
		p.logger.Warn("session log unavailable; continuing without it",
			logging.Error(err),
			logging.String(logging.FieldEventType, "session_log_unavailable"),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		)
		runLogger, closer = p.logger.With(logging.String(logging.FieldSessionID, sess.ID)), io.NopCloser(nil)
	}

	runCtx, cancel := context.WithCancel(services.WithSessionID(context.WithoutCancel(ctx), sess.ID))
	rt := &run{
		id:        sess.ID,
		logger:    runLogger,
		logCloser: closer,
		cancel:    cancel,
		finished:  make(chan struct{}),
	}
	rt.recorder = capture.NewRecorder(p.deps.Device, capture.Options{
		ChunkInterval: p.cfg.ChunkInterval(),
		MaxDuration:   p.cfg.MaxRecording(),
		ContentType:   p.cfg.Capture.ContentType,
	}, runLogger)

	p.mu.Lock()
	p.current = rt
	p.snapshot = Snapshot{SessionID: sess.ID}
	p.mu.Unlock()

	if err := rt.recorder.Start(runCtx); err != nil {
		p.fail(runCtx, rt, err)
		p.finish(rt)
		return sess.ID, err
	}

	if p.cfg.Capture.WatchHotplug {
		rt.hotplug = capture.NewHotplugWatcher(capture.DevicePath(p.cfg.Capture.Device), runLogger, rt.recorder.Interrupt)
		_ = rt.hotplug.Start(runCtx)
	}

	if err := p.transition(runCtx, rt, session.PhaseRecording); err != nil {
		rt.recorder.Interrupt(nil)
		_, _ = rt.recorder.Stop()
		rt.hotplug.Stop()
		p.finish(rt)
		return sess.ID, err
	}

	p.wg.Add(1)
	go p.execute(runCtx, rt)
	return sess.ID, nil
}

// Stop ends the recording. Upload and analysis continue in the background.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	rt := p.current
	phase := p.phase
	p.mu.Unlock()
	if rt == nil || phase == session.PhaseIdle {
		return ErrNotRecording
	}
	if phase != session.PhaseRecording {
		return nil
	}
	rt.recorder.Interrupt(nil)
	return nil
}

// Wait blocks until the current session reaches a terminal phase or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	rt := p.current
	p.mu.Unlock()
	if rt != nil {
		select {
		case <-rt.finished:
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}
	return p.Snapshot(), nil
}

// Reset abandons the current session and returns to idle. A session that had
// not finished is recorded as failed. Remote analysis jobs keep running.
func (p *Pipeline) Reset(ctx context.Context) error {
	p.mu.Lock()
	rt := p.current
	p.mu.Unlock()

	if rt != nil {
		rt.cancel()
		p.wg.Wait()
		<-rt.finished
		if !p.Phase().IsTerminal() {
			p.fail(ctx, rt, &Failure{Kind: ErrorInternal, Category: "session was reset before it finished"})
		}
	}

	p.mu.Lock()
	from := p.phase
	if from == session.PhaseIdle {
		p.mu.Unlock()
		return nil
	}
	if !CanTransition(from, session.PhaseIdle) {
		p.mu.Unlock()
		return &TransitionError{From: from, To: session.PhaseIdle}
	}
	p.phase = session.PhaseIdle
	p.current = nil
	p.snapshot = Snapshot{Phase: session.PhaseIdle}
	p.mu.Unlock()

	change := PhaseChange{From: from, To: session.PhaseIdle, At: time.Now()}
	if rt != nil {
		change.SessionID = rt.id
	}
	p.bus.publish(func(o Observer) { o.OnPhaseChange(change) })
	p.logger.Info("pipeline reset", logging.String("from", string(from)))
	return nil
}

// Close resets the pipeline and flushes pending observer events.
func (p *Pipeline) Close() error {
	err := p.Reset(context.Background())
	p.bus.close()
	return err
}

func (p *Pipeline) execute(ctx context.Context, rt *run) {
	defer p.wg.Done()
	defer p.finish(rt)

	select {
	case <-rt.recorder.Done():
	case <-ctx.Done():
		rt.recorder.Interrupt(nil)
	}
	recording, err := rt.recorder.Stop()
	rt.hotplug.Stop()
	if ctx.Err() != nil {
		return
	}
	if err == nil && recording.Size() == 0 {
		err = &capture.Error{Kind: capture.KindDeviceUnavailable, Device: p.deps.Device.Name(), Err: errors.New("no video data captured")}
	}
	if err != nil {
		p.fail(ctx, rt, err)
		return
	}
	p.saveCapture(ctx, rt, recording)

	if err := p.transition(ctx, rt, session.PhaseUploading); err != nil {
		return
	}
	result, err := p.deps.Uploader.Upload(services.WithStage(ctx, string(session.PhaseUploading)), upload.Blob{
		Data:        recording.Data,
		ContentType: recording.ContentType,
	})
	p.saveAttempts(ctx, rt, result.Attempts, err)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail(ctx, rt, err)
		return
	}
	if err := p.deps.Store.SetStorageKey(ctx, rt.id, result.Key, result.Simulated); err != nil {
		p.fail(ctx, rt, err)
		return
	}
	p.mu.Lock()
	p.snapshot.StorageKey = result.Key
	p.snapshot.Simulated = result.Simulated
	p.mu.Unlock()
	if result.Simulated {
		p.notify(ctx, rt, notifications.EventSimulatedUpload, notifications.Payload{"key": result.Key})
	}

	if err := p.transition(ctx, rt, session.PhaseAnalyzing); err != nil {
		return
	}
	analyzeCtx := services.WithStage(ctx, string(session.PhaseAnalyzing))
	jobs, err := p.dispatcher.Start(analyzeCtx, result.Key)
	if err != nil {
		if ctx.Err() == nil {
			p.fail(ctx, rt, err)
		}
		return
	}
	if err := p.deps.Store.SaveJobs(ctx, rt.id, jobs); err != nil {
		p.fail(ctx, rt, err)
		return
	}

	poller := analysis.NewPoller(p.deps.Providers, analysis.PollerOptions{
		Interval: p.opts.pollInterval,
		Timeout:  p.opts.pollTimeout,
		OnUpdate: func(job session.AnalysisJob) {
			if err := p.deps.Store.UpdateJob(context.WithoutCancel(ctx), rt.id, job); err != nil {
				rt.logger.Warn("failed to persist job status",
					logging.Error(err),
					logging.String(logging.FieldJobKind, string(job.Kind)),
					logging.String(logging.FieldEventType, "job_persist_failed"),
					logging.String(logging.FieldErrorHint, "check the session database"),
				)
			}
		},
	}, rt.logger)
	results, err := poller.Await(analyzeCtx, jobs)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.fail(ctx, rt, err)
		return
	}

	report := analysis.Merge(analysis.ReportMeta{
		SessionID:       rt.id,
		StorageKey:      result.Key,
		Simulated:       result.Simulated,
		Candidate:       session.Candidate{Name: p.cfg.Candidate.Name, Airline: p.cfg.Candidate.Airline},
		DurationSeconds: recording.Duration.Seconds(),
		RecordedAt:      recording.StartedAt.UTC(),
		MaxFaces:        p.cfg.Analysis.MaxFaces,
		MaxSegments:     p.cfg.Analysis.MaxSegments,
	}, results)
	if err := p.deps.Store.SaveReport(ctx, rt.id, report); err != nil {
		p.fail(ctx, rt, err)
		return
	}
	p.mu.Lock()
	p.snapshot.Report = &report
	p.mu.Unlock()
	p.bus.publish(func(o Observer) { o.OnReport(report) })

	if err := p.transition(ctx, rt, session.PhaseDone); err != nil {
		return
	}
	p.notify(ctx, rt, notifications.EventSessionDone, notifications.Payload{
		"candidate": p.cfg.Candidate.Name,
		"faces":     report.Faces.Total,
		"segments":  report.Segments.Total,
	})
}

// transition moves the pipeline to phase, persists it and publishes the change.
func (p *Pipeline) transition(ctx context.Context, rt *run, to session.Phase) error {
	return p.moveTo(ctx, rt, to, nil)
}

func (p *Pipeline) fail(ctx context.Context, rt *run, err error) {
	failure := Classify(err)
	if moveErr := p.moveTo(ctx, rt, session.PhaseFailed, failure); moveErr != nil {
		rt.logger.Debug("failure not recorded", logging.Error(moveErr))
		return
	}
	logging.ErrorWithContext(rt.logger, "session failed", "session_failed",
		logging.Error(failure.Err),
		logging.String("error_kind", string(failure.Kind)),
		logging.String("category", failure.Category),
		logging.String(logging.FieldErrorHint, hintFor(failure.Kind)),
	)
	p.bus.publish(func(o Observer) { o.OnError(failure.Kind, failure.Detail()) })
	p.notify(ctx, rt, notifications.EventSessionFailed, notifications.Payload{
		"candidate": p.cfg.Candidate.Name,
		"category":  failure.Category,
		"error":     failure.Detail(),
	})
}

func (p *Pipeline) moveTo(ctx context.Context, rt *run, to session.Phase, failure *Failure) error {
	p.mu.Lock()
	if p.current != rt {
		p.mu.Unlock()
		return errors.New("session is no longer current")
	}
	from := p.phase
	if !CanTransition(from, to) {
		p.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	p.phase = to
	if failure != nil {
		p.snapshot.Failure = failure
	}
	p.mu.Unlock()

	var errKind, errMsg string
	if failure != nil {
		errKind, errMsg = string(failure.Kind), failure.Error()
	}
	if err := p.deps.Store.UpdatePhase(context.WithoutCancel(ctx), rt.id, to, errKind, errMsg); err != nil {
		rt.logger.Warn("failed to persist phase",
			logging.Error(err),
			logging.String(logging.FieldPhase, string(to)),
			logging.String(logging.FieldEventType, "phase_persist_failed"),
			logging.String(logging.FieldErrorHint, "check the session database"),
		)
	}

	change := PhaseChange{SessionID: rt.id, From: from, To: to, At: time.Now()}
	p.bus.publish(func(o Observer) { o.OnPhaseChange(change) })
	rt.logger.Info("phase changed",
		logging.String(logging.FieldEventType, "phase_changed"),
		logging.String("from", string(from)),
		logging.String(logging.FieldPhase, string(to)),
	)
	return nil
}

func (p *Pipeline) finish(rt *run) {
	select {
	case <-rt.finished:
		return
	default:
	}
	rt.cancel()
	if rt.logCloser != nil {
		_ = rt.logCloser.Close()
	}
	close(rt.finished)
}

func (p *Pipeline) saveCapture(ctx context.Context, rt *run, recording capture.Recording) {
	blobPath := ""
	if dir := p.cfg.Paths.SpoolDir; dir != "" {
		path := filepath.Join(dir, rt.id+upload.Extension(recording.ContentType))
		if err := os.MkdirAll(dir, 0o755); err == nil {
			if err := os.WriteFile(path, recording.Data, 0o644); err == nil {
				blobPath = path
			} else {
				rt.logger.Warn("failed to spool recording",
					logging.Error(err),
					logging.String(logging.FieldEventType, "spool_failed"),
					logging.String(logging.FieldErrorHint, "check spool_dir permissions"),
				)
			}
		}
	}
	if err := p.deps.Store.RecordCapture(ctx, rt.id, recording.Duration, recording.Size(), blobPath); err != nil {
		rt.logger.Warn("failed to persist capture metadata",
			logging.Error(err),
			logging.String(logging.FieldEventType, "capture_persist_failed"),
		)
	}
}

func (p *Pipeline) saveAttempts(ctx context.Context, rt *run, attempts []session.UploadAttempt, err error) {
	var uploadErr *upload.Error
	if len(attempts) == 0 && errors.As(err, &uploadErr) {
		attempts = uploadErr.Attempts
	}
	for _, attempt := range attempts {
		if recErr := p.deps.Store.RecordAttempt(context.WithoutCancel(ctx), rt.id, attempt); recErr != nil {
			rt.logger.Warn("failed to persist upload attempt",
				logging.Error(recErr),
				logging.String(logging.FieldStrategy, attempt.Strategy),
				logging.String(logging.FieldEventType, "attempt_persist_failed"),
			)
		}
	}
}

func (p *Pipeline) notify(ctx context.Context, rt *run, event notifications.Event, payload notifications.Payload) {
	if err := p.deps.Notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		rt.logger.Warn("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check the ntfy topic"),
		)
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case ErrorCapture:
		return "check the camera connection and permissions"
	case ErrorUpload:
		return "check the crewbe API and storage credentials"
	case ErrorDispatch:
		return "check analysis provider credentials and quotas"
	case ErrorAnalysisJob:
		return "inspect the failed job in the provider console"
	case ErrorPollingTimeout:
		return "raise analysis.timeout or check provider backlog"
	default:
		return "see the session log for details"
	}
}
