package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crewbe/internal/session"
)

// scriptedProvider answers status queries from a per-call script. The last
// entry repeats once the script is exhausted.
type scriptedProvider struct {
	kind     session.JobKind
	startErr error

	mu      sync.Mutex
	script  []Status
	queries int
	started []Media
}

func newScripted(kind session.JobKind, script ...Status) *scriptedProvider {
	return &scriptedProvider{kind: kind, script: script}
}

func (p *scriptedProvider) Kind() session.JobKind { return p.kind }

func (p *scriptedProvider) Start(ctx context.Context, media Media) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, media)
	if p.startErr != nil {
		return "", p.startErr
	}
	return string(p.kind) + "-job", nil
}

func (p *scriptedProvider) Status(ctx context.Context, handle string) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if len(p.script) == 0 {
		return Status{}, errors.New("no script")
	}
	idx := p.queries - 1
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	st := p.script[idx]
	if st.State == "" {
		return Status{}, errors.New("transient status failure")
	}
	return st, nil
}

func (p *scriptedProvider) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

func running() Status { return Status{State: session.JobRunning} }

func transcriptDone() Status {
	return Status{State: session.JobSucceeded, Transcription: &session.TranscriptionResult{
		ResultURI: "s3://crewbe-analysis-results/transcriptions/stt-job.json",
		Language:  "ko-KR",
	}}
}

func facesDone(n int) Status {
	faces := make([]session.FaceDetection, n)
	for i := range faces {
		faces[i] = session.FaceDetection{TimestampMillis: int64(i * 1000), Confidence: 99.5}
	}
	return Status{State: session.JobSucceeded, Faces: &session.FaceResult{Total: n, Faces: faces}}
}

func segmentsDone(n int) Status {
	segs := make([]session.Segment, n)
	for i := range segs {
		segs[i] = session.Segment{Type: "SHOT", StartTimestampMillis: int64(i * 500), EndTimestampMillis: int64(i*500 + 400), DurationMillis: 400}
	}
	return Status{State: session.JobSucceeded, Segments: &session.SegmentResult{Total: n, Segments: segs}}
}

func startedJobs() []session.AnalysisJob {
	var jobs []session.AnalysisJob
	for _, kind := range session.AllJobKinds() {
		jobs = append(jobs, session.AnalysisJob{Kind: kind, Handle: string(kind) + "-job", Status: session.JobRunning})
	}
	return jobs
}

// rendezvous releases its callers once n of them are inside at the same time.
// A caller that waits longer than timeout gives up and gets an error.
type rendezvous struct {
	n       int
	timeout time.Duration

	mu      sync.Mutex
	arrived int
	all     chan struct{}
}

func newRendezvous(n int, timeout time.Duration) *rendezvous {
	return &rendezvous{n: n, timeout: timeout, all: make(chan struct{})}
}

func (r *rendezvous) arrive() error {
	r.mu.Lock()
	r.arrived++
	if r.arrived == r.n {
		close(r.all)
	}
	arrived := r.arrived
	r.mu.Unlock()
	select {
	case <-r.all:
		return nil
	case <-time.After(r.timeout):
		return fmt.Errorf("waited %s with only %d of %d callers in flight", r.timeout, arrived, r.n)
	}
}

// gatedProvider holds every call at a shared rendezvous before answering, so
// it only answers promptly when its siblings are called concurrently.
type gatedProvider struct {
	*scriptedProvider
	gate    *rendezvous
	missed  atomic.Int32
	lastErr atomic.Value
}

func gated(inner *scriptedProvider, gate *rendezvous) *gatedProvider {
	return &gatedProvider{scriptedProvider: inner, gate: gate}
}

func (p *gatedProvider) wait() error {
	if err := p.gate.arrive(); err != nil {
		p.missed.Add(1)
		p.lastErr.Store(err.Error())
		return err
	}
	return nil
}

func (p *gatedProvider) Start(ctx context.Context, media Media) (string, error) {
	if err := p.wait(); err != nil {
		return "", err
	}
	return p.scriptedProvider.Start(ctx, media)
}

func (p *gatedProvider) Status(ctx context.Context, handle string) (Status, error) {
	if err := p.wait(); err != nil {
		return Status{}, err
	}
	return p.scriptedProvider.Status(ctx, handle)
}
