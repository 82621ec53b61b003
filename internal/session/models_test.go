package session

import (
	"testing"
	"time"
)

func TestPhaseClassification(t *testing.T) {
	for _, phase := range AllPhases() {
		parsed, ok := ParsePhase(string(phase))
		if !ok || parsed != phase {
			t.Fatalf("ParsePhase(%q) = %q, %v", phase, parsed, ok)
		}
	}
	if !PhaseDone.IsTerminal() || !PhaseFailed.IsTerminal() || PhaseAnalyzing.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
	if PhaseIdle.IsActive() || !PhaseUploading.IsActive() {
		t.Fatal("unexpected active classification")
	}
}

func TestJobKindNames(t *testing.T) {
	if JobTranscription.WireName() != "stt" || JobFace.WireName() != "face" {
		t.Fatal("unexpected wire names")
	}
	for _, name := range []string{"stt", "transcription", "face", "segment"} {
		if _, ok := ParseJobKind(name); !ok {
			t.Fatalf("expected %q to parse", name)
		}
	}
	if _, ok := ParseJobKind("emotion"); ok {
		t.Fatal("unexpected kind parsed")
	}
	if !JobFailedToStart.IsFailure() || !JobFailedToStart.IsTerminal() || JobRunning.IsTerminal() {
		t.Fatal("unexpected job status classification")
	}
}

func TestAttemptMetricsGuardZeroDuration(t *testing.T) {
	now := time.Now()
	attempt := UploadAttempt{StartedAt: now, EndedAt: now, BytesTransferred: 100}
	if attempt.ThroughputMbps() != 0 {
		t.Fatal("expected zero throughput for zero duration")
	}
	attempt.EndedAt = now.Add(-time.Second)
	if attempt.Duration() != 0 {
		t.Fatal("expected zero duration when end precedes start")
	}
}
