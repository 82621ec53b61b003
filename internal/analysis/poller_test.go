package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crewbe/internal/session"
)

const testInterval = 5 * time.Millisecond

func TestPollerReturnsResultsWhenAllSucceed(t *testing.T) {
	stt := newScripted(session.JobTranscription, running(), transcriptDone())
	face := newScripted(session.JobFace, facesDone(2))
	seg := newScripted(session.JobSegment, running(), running(), segmentsDone(3))

	var mu sync.Mutex
	var updates []session.AnalysisJob
	p := NewPoller(Providers{Transcription: stt, Face: face, Segment: seg}, PollerOptions{
		Interval: testInterval,
		Timeout:  time.Second,
		OnUpdate: func(job session.AnalysisJob) {
			mu.Lock()
			updates = append(updates, job)
			mu.Unlock()
		},
	}, nil)

	results, err := p.Await(context.Background(), startedJobs())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if results.Transcription.JobHandle != "transcription-job" || results.Transcription.Language != "ko-KR" {
		t.Fatalf("unexpected transcription result: %+v", results.Transcription)
	}
	if results.Faces.Total != 2 || results.Segments.Total != 3 {
		t.Fatalf("unexpected totals: faces=%d segments=%d", results.Faces.Total, results.Segments.Total)
	}
	if face.Queries() != 1 {
		t.Fatalf("face should not be queried after success, got %d queries", face.Queries())
	}
	if seg.Queries() != 3 {
		t.Fatalf("expected 3 segment queries, got %d", seg.Queries())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 3 {
		t.Fatalf("expected 3 status updates, got %d", len(updates))
	}
}

func TestPollerFailsFastOnJobFailure(t *testing.T) {
	stt := newScripted(session.JobTranscription, running())
	face := newScripted(session.JobFace, running(), Status{State: session.JobFailed, Reason: "InvalidS3ObjectException"})
	seg := newScripted(session.JobSegment, running())

	p := NewPoller(Providers{Transcription: stt, Face: face, Segment: seg}, PollerOptions{
		Interval: testInterval,
		Timeout:  time.Second,
	}, nil)

	_, err := p.Await(context.Background(), startedJobs())
	var jobErr *JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected JobError, got %v", err)
	}
	if jobErr.Tick != 2 {
		t.Fatalf("expected failure on tick 2, got %d", jobErr.Tick)
	}
	if kinds := jobErr.Kinds(); len(kinds) != 1 || kinds[0] != session.JobFace {
		t.Fatalf("unexpected failed kinds: %v", kinds)
	}
	if !strings.Contains(jobErr.Error(), "InvalidS3ObjectException") {
		t.Fatalf("error should carry the provider reason: %v", jobErr)
	}
	if jobErr.Category() != "Face Detection failed" {
		t.Fatalf("unexpected category %q", jobErr.Category())
	}
	// No tick 3.
	if stt.Queries() != 2 || seg.Queries() != 2 {
		t.Fatalf("expected polling to stop after tick 2, got stt=%d seg=%d", stt.Queries(), seg.Queries())
	}
}

func TestPollerRetriesTransientStatusErrors(t *testing.T) {
	stt := newScripted(session.JobTranscription, Status{}, transcriptDone())
	face := newScripted(session.JobFace, Status{}, Status{}, facesDone(1))
	seg := newScripted(session.JobSegment, segmentsDone(1))

	p := NewPoller(Providers{Transcription: stt, Face: face, Segment: seg}, PollerOptions{
		Interval: testInterval,
		Timeout:  time.Second,
	}, nil)

	if _, err := p.Await(context.Background(), startedJobs()); err != nil {
		t.Fatalf("transient errors should be retried: %v", err)
	}
}

func TestPollerTimesOut(t *testing.T) {
	stt := newScripted(session.JobTranscription, transcriptDone())
	face := newScripted(session.JobFace, running())
	seg := newScripted(session.JobSegment, running())

	p := NewPoller(Providers{Transcription: stt, Face: face, Segment: seg}, PollerOptions{
		Interval: testInterval,
		Timeout:  30 * time.Millisecond,
	}, nil)

	_, err := p.Await(context.Background(), startedJobs())
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !errors.Is(err, ErrPollingTimeout) {
		t.Fatalf("expected ErrPollingTimeout match")
	}
	if len(timeoutErr.Pending) != 2 || timeoutErr.Pending[0] != session.JobFace || timeoutErr.Pending[1] != session.JobSegment {
		t.Fatalf("unexpected pending kinds: %v", timeoutErr.Pending)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	providers := Providers{
		Transcription: newScripted(session.JobTranscription, running()),
		Face:          newScripted(session.JobFace, running()),
		Segment:       newScripted(session.JobSegment, running()),
	}
	p := NewPoller(providers, PollerOptions{Interval: testInterval, Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Await(ctx, startedJobs())
		done <- err
	}()
	time.Sleep(3 * testInterval)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after cancel")
	}
}

func TestPollerRejectsEmptyJobs(t *testing.T) {
	p := NewPoller(Providers{}, PollerOptions{}, nil)
	if _, err := p.Await(context.Background(), nil); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}
}

func TestPollerQueriesPendingJobsConcurrently(t *testing.T) {
	gate := newRendezvous(3, 2*time.Second)
	stt := gated(newScripted(session.JobTranscription, transcriptDone()), gate)
	face := gated(newScripted(session.JobFace, facesDone(1)), gate)
	seg := gated(newScripted(session.JobSegment, segmentsDone(1)), gate)
	p := NewPoller(Providers{Transcription: stt, Face: face, Segment: seg}, PollerOptions{
		Interval: testInterval,
		Timeout:  5 * time.Second,
	}, nil)

	results, err := p.Await(context.Background(), startedJobs())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	for _, provider := range []*gatedProvider{stt, face, seg} {
		if provider.missed.Load() != 0 {
			t.Fatalf("%s status query was not concurrent with its siblings: %v", provider.kind, provider.lastErr.Load())
		}
		if provider.Queries() != 1 {
			t.Fatalf("expected one %s query, got %d", provider.kind, provider.Queries())
		}
	}
	if results.Faces.Total != 1 || results.Segments.Total != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
}
