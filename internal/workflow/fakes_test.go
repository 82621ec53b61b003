package workflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"crewbe/internal/analysis"
	"crewbe/internal/capture"
	"crewbe/internal/session"
	"crewbe/internal/testsupport"
	"crewbe/internal/upload"
)

// streamDevice emits a fixed byte pattern until closed. failAfter > 0 makes
// the stream fail with a read error after that many reads.
type streamDevice struct {
	acquireErr error
	failAfter  int

	mu       sync.Mutex
	acquired int
	released int
}

func (d *streamDevice) Name() string { return "/dev/video-test" }

func (d *streamDevice) Acquire(ctx context.Context) (capture.Stream, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	d.mu.Lock()
	d.acquired++
	d.mu.Unlock()
	return &patternStream{device: d, closed: make(chan struct{})}, nil
}

func (d *streamDevice) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired, d.released
}

type patternStream struct {
	device    *streamDevice
	reads     int
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *patternStream) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	s.reads++
	if s.device.failAfter > 0 && s.reads > s.device.failAfter {
		return 0, errors.New("VIDIOC_DQBUF: No such device")
	}
	n := min(len(p), 256)
	for i := range n {
		p[i] = 0x1a
	}
	return n, nil
}

func (s *patternStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.device.mu.Lock()
		s.device.released++
		s.device.mu.Unlock()
	})
	return nil
}

type fakeUploader struct {
	key       string
	err       error
	simulated bool

	mu    sync.Mutex
	blobs []upload.Blob
}

func (u *fakeUploader) Upload(ctx context.Context, blob upload.Blob) (upload.Result, error) {
	u.mu.Lock()
	u.blobs = append(u.blobs, blob)
	u.mu.Unlock()
	now := time.Now()
	if u.err != nil {
		attempts := []session.UploadAttempt{
			{Role: session.RolePrimary, Strategy: "presigned", Key: "videos/primary.webm", StartedAt: now, EndedAt: now, Outcome: session.OutcomeFailed, Error: "connection reset"},
			{Role: session.RoleFallback, Strategy: "proxied", StartedAt: now, EndedAt: now, Outcome: session.OutcomeFailed, Error: u.err.Error()},
		}
		return upload.Result{}, &upload.Error{Attempts: attempts, Err: u.err}
	}
	if u.simulated {
		return upload.Result{Key: u.key, Simulated: true, Attempts: []session.UploadAttempt{
			{Role: session.RolePrimary, Strategy: "presigned", Key: u.key, StartedAt: now, EndedAt: now, Outcome: session.OutcomeFailed, Error: "connection reset"},
		}}, nil
	}
	return upload.Result{Key: u.key, Attempts: []session.UploadAttempt{
		{Role: session.RolePrimary, Strategy: "presigned", Key: "videos/primary.webm", StartedAt: now, EndedAt: now, Outcome: session.OutcomeFailed, Error: "connection reset"},
		{Role: session.RoleFallback, Strategy: "proxied", Key: u.key, StartedAt: now, EndedAt: now, BytesTransferred: int64(len(blob.Data)), Outcome: session.OutcomeSucceeded},
	}}, nil
}

// jobProvider starts a job and reports the scripted statuses in order.
type jobProvider struct {
	kind   session.JobKind
	script []analysis.Status

	mu    sync.Mutex
	keys  []string
	calls int
	hold  chan struct{}
}

func (p *jobProvider) Kind() session.JobKind { return p.kind }

func (p *jobProvider) Start(ctx context.Context, media analysis.Media) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, media.Key)
	return string(p.kind) + "-handle", nil
}

func (p *jobProvider) Status(ctx context.Context, handle string) (analysis.Status, error) {
	if p.hold != nil {
		select {
		case <-p.hold:
		case <-ctx.Done():
			return analysis.Status{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := min(p.calls, len(p.script)-1)
	p.calls++
	return p.script[idx], nil
}

func (p *jobProvider) startedWith() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func succeededProviders() (analysis.Providers, *jobProvider) {
	stt := &jobProvider{kind: session.JobTranscription, script: []analysis.Status{
		{State: session.JobSucceeded, Transcription: &session.TranscriptionResult{ResultURI: "s3://out/transcriptions/t.json", Language: "ko-KR"}},
	}}
	face := &jobProvider{kind: session.JobFace, script: []analysis.Status{
		{State: session.JobRunning},
		{State: session.JobSucceeded, Faces: &session.FaceResult{Total: 1, Faces: []session.FaceDetection{{TimestampMillis: 100, Confidence: 99}}}},
	}}
	seg := &jobProvider{kind: session.JobSegment, script: []analysis.Status{
		{State: session.JobSucceeded, Segments: &session.SegmentResult{Total: 1, Segments: []session.Segment{{Type: "SHOT", DurationMillis: 400}}}},
	}}
	return analysis.Providers{Transcription: stt, Face: face, Segment: seg}, stt
}

// eventLog collects observer events.
type eventLog struct {
	mu      sync.Mutex
	phases  []session.Phase
	reports []session.Report
	errors  []ErrorKind
}

func (l *eventLog) observer() Observer {
	return ObserverFuncs{
		PhaseChange: func(c PhaseChange) {
			l.mu.Lock()
			l.phases = append(l.phases, c.To)
			l.mu.Unlock()
		},
		Report: func(r session.Report) {
			l.mu.Lock()
			l.reports = append(l.reports, r)
			l.mu.Unlock()
		},
		Error: func(kind ErrorKind, _ string) {
			l.mu.Lock()
			l.errors = append(l.errors, kind)
			l.mu.Unlock()
		},
	}
}

func (l *eventLog) snapshot() ([]session.Phase, int, []ErrorKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]session.Phase(nil), l.phases...), len(l.reports), append([]ErrorKind(nil), l.errors...)
}

type fixture struct {
	pipeline *Pipeline
	store    *session.Store
	device   *streamDevice
	uploader *fakeUploader
	events   *eventLog
}

func newFixture(t *testing.T, device *streamDevice, uploader *fakeUploader, providers analysis.Providers) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Capture.ChunkIntervalMS = 10
	store := testsupport.MustOpenStore(t, cfg)
	p, err := New(cfg, Deps{
		Store:     store,
		Device:    device,
		Uploader:  uploader,
		Providers: providers,
	}, nil, WithPolling(5*time.Millisecond, 2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := &eventLog{}
	p.Subscribe(events.observer())
	t.Cleanup(func() { _ = p.Close() })
	return &fixture{pipeline: p, store: store, device: device, uploader: uploader, events: events}
}

func (f *fixture) wait(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := f.pipeline.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return snap
}

// eventually polls cond until it holds or a deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
