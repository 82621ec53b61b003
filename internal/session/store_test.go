package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewbe/internal/services"
	"crewbe/internal/session"
	"crewbe/internal/testsupport"
)

func TestCreateAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess, err := store.Create(ctx, session.Candidate{Name: "Kim", Airline: "Korean Air"}, "video/webm")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || sess.Phase != session.PhaseIdle {
		t.Fatalf("unexpected new session: %#v", sess)
	}

	fetched, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched == nil || fetched.Candidate.Airline != "Korean Air" || fetched.ContentType != "video/webm" {
		t.Fatalf("unexpected fetched session: %#v", fetched)
	}

	missing, err := store.Get(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("expected nil session for unknown id, got %#v, %v", missing, err)
	}
}

func TestUpdatePhaseStoresErrorOnlyWhenFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	sess := testsupport.NewSession(t, store)

	if err := store.UpdatePhase(ctx, sess.ID, session.PhaseRecording, "capture", "ignored"); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	got, _ := store.Get(ctx, sess.ID)
	if got.Phase != session.PhaseRecording || got.ErrorKind != "" {
		t.Fatalf("unexpected session after recording: %#v", got)
	}

	if err := store.UpdatePhase(ctx, sess.ID, session.PhaseFailed, "capture", "camera unplugged"); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	got, _ = store.Get(ctx, sess.ID)
	if got.Phase != session.PhaseFailed || got.ErrorKind != "capture" || got.ErrorMessage != "camera unplugged" {
		t.Fatalf("unexpected failed session: %#v", got)
	}

	err := store.UpdatePhase(ctx, "missing", session.PhaseDone, "", "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

func TestSetStorageKeyIsWriteOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	sess := testsupport.NewSession(t, store)

	if err := store.SetStorageKey(ctx, sess.ID, "videos/interview-1-aaa.webm", false); err != nil {
		t.Fatalf("SetStorageKey: %v", err)
	}
	if err := store.SetStorageKey(ctx, sess.ID, "videos/interview-1-aaa.webm", false); err != nil {
		t.Fatalf("repeating the same key should succeed: %v", err)
	}
	err := store.SetStorageKey(ctx, sess.ID, "videos/interview-2-bbb.webm", false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for second key, got %v", err)
	}
	if err := store.SetStorageKey(ctx, sess.ID, " ", false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty key, got %v", err)
	}
}

func TestAttemptsJobsAndReportPersist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	sess := testsupport.NewSession(t, store)

	start := time.Now().Add(-2 * time.Second)
	primary := session.UploadAttempt{
		Role:        session.RolePrimary,
		Strategy:    "presigned",
		Key:         "videos/interview-1-aaa.webm",
		StartedAt:   start,
		EndedAt:     start.Add(time.Second),
		Outcome:     session.OutcomeFailed,
		Error:       "connection reset",
		StrayObject: true,
	}
	fallback := session.UploadAttempt{
		Role:             session.RoleFallback,
		Strategy:         "proxied",
		Key:              "videos/interview-2-bbb.webm",
		StartedAt:        start.Add(time.Second),
		EndedAt:          start.Add(2 * time.Second),
		BytesTransferred: 1_000_000,
		Outcome:          session.OutcomeSucceeded,
	}
	for _, attempt := range []session.UploadAttempt{primary, fallback} {
		if err := store.RecordAttempt(ctx, sess.ID, attempt); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := store.RecordAttempt(ctx, sess.ID, primary); err == nil {
		t.Fatal("expected duplicate primary attempt to be rejected")
	}

	jobs := []session.AnalysisJob{
		{Kind: session.JobSegment, Handle: "seg-1", Status: session.JobRunning},
		{Kind: session.JobTranscription, Handle: "stt-1", Status: session.JobRunning},
		{Kind: session.JobFace, Status: session.JobFailedToStart, Error: "throttled"},
	}
	if err := store.SaveJobs(ctx, sess.ID, jobs); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	if err := store.UpdateJob(ctx, sess.ID, session.AnalysisJob{Kind: session.JobSegment, Status: session.JobSucceeded}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	report := session.Report{SessionID: sess.ID, StorageKey: fallback.Key, Faces: session.FaceResult{Total: 7}}
	if err := store.SaveReport(ctx, sess.ID, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Attempts) != 2 || got.Attempts[0].Role != session.RolePrimary || !got.Attempts[0].StrayObject {
		t.Fatalf("unexpected attempts: %#v", got.Attempts)
	}
	if mbps := got.Attempts[1].ThroughputMbps(); mbps < 7.9 || mbps > 8.1 {
		t.Fatalf("unexpected fallback throughput: %v", mbps)
	}
	if len(got.Jobs) != 3 || got.Jobs[0].Kind != session.JobTranscription {
		t.Fatalf("expected jobs in dispatch order, got %#v", got.Jobs)
	}
	if seg, ok := got.Job(session.JobSegment); !ok || seg.Status != session.JobSucceeded || seg.Handle != "seg-1" {
		t.Fatalf("unexpected segment job: %#v", seg)
	}
	if got.Report == nil || got.Report.Faces.Total != 7 {
		t.Fatalf("unexpected report: %#v", got.Report)
	}
}

func TestResolveByPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	sess := testsupport.NewSession(t, store)

	got, err := store.Resolve(ctx, sess.ID[:8])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("resolved wrong session: %s", got.ID)
	}
	if _, err := store.Resolve(ctx, "zzzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailInterruptedAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	phases := []session.Phase{session.PhaseRecording, session.PhaseAnalyzing, session.PhaseDone, session.PhaseIdle}
	for _, phase := range phases {
		sess := testsupport.NewSession(t, store)
		if err := store.UpdatePhase(ctx, sess.ID, phase, "", ""); err != nil {
			t.Fatalf("UpdatePhase: %v", err)
		}
	}

	n, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 interrupted sessions, got %d", n)
	}

	failed, err := store.List(ctx, 0, session.PhaseFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed sessions, got %d", len(failed))
	}
	for _, sess := range failed {
		if sess.ErrorKind != "internal" {
			t.Fatalf("unexpected error kind: %q", sess.ErrorKind)
		}
	}

	all, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected limit to apply, got %d", len(all))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[session.PhaseFailed] != 2 || stats[session.PhaseDone] != 1 || stats[session.PhaseIdle] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 terminal sessions cleared, got %d", removed)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, store)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.IntegrityOK || health.Sessions != 1 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}
