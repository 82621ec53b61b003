package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewbe/internal/analysis"
	"crewbe/internal/capture"
	"crewbe/internal/session"
	"crewbe/internal/upload"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to session.Phase
		want     bool
	}{
		{session.PhaseIdle, session.PhaseRecording, true},
		{session.PhaseIdle, session.PhaseFailed, true},
		{session.PhaseIdle, session.PhaseUploading, false},
		{session.PhaseRecording, session.PhaseUploading, true},
		{session.PhaseRecording, session.PhaseDone, false},
		{session.PhaseUploading, session.PhaseAnalyzing, true},
		{session.PhaseUploading, session.PhaseFailed, true},
		{session.PhaseAnalyzing, session.PhaseDone, true},
		{session.PhaseAnalyzing, session.PhaseFailed, true},
		{session.PhaseAnalyzing, session.PhaseRecording, false},
		{session.PhaseDone, session.PhaseFailed, false},
		{session.PhaseFailed, session.PhaseDone, false},
		{session.PhaseDone, session.PhaseIdle, true},
		{session.PhaseFailed, session.PhaseIdle, true},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"capture", &capture.Error{Kind: capture.KindDeviceUnavailable, Device: "/dev/video0"}, ErrorCapture},
		{"upload", &upload.Error{Err: errors.New("502")}, ErrorUpload},
		{"dispatch", &analysis.DispatchError{Err: errors.New("no key")}, ErrorDispatch},
		{"job", &analysis.JobError{Failures: []analysis.JobFailure{{Kind: session.JobFace}}}, ErrorAnalysisJob},
		{"timeout", &analysis.TimeoutError{Waited: time.Minute}, ErrorPollingTimeout},
		{"other", errors.New("disk full"), ErrorInternal},
		{"cancelled", context.Canceled, ErrorInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			failure := Classify(tc.err)
			if failure.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", failure.Kind, tc.kind)
			}
			if failure.Category == "" {
				t.Fatal("category must never be empty")
			}
			if !errors.Is(failure, tc.err) {
				t.Fatal("failure should wrap the original error")
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := newEventBus()
	var got []session.Phase
	bus.subscribe(ObserverFuncs{PhaseChange: func(c PhaseChange) {
		got = append(got, c.To)
	}})
	for _, phase := range []session.Phase{session.PhaseRecording, session.PhaseUploading, session.PhaseAnalyzing} {
		bus.publish(func(o Observer) { o.OnPhaseChange(PhaseChange{To: phase}) })
	}
	bus.close()
	if len(got) != 3 || got[0] != session.PhaseRecording || got[2] != session.PhaseAnalyzing {
		t.Fatalf("unexpected delivery order: %v", got)
	}
	bus.publish(func(o Observer) { o.OnPhaseChange(PhaseChange{To: session.PhaseDone}) })
	bus.close()
	if len(got) != 3 {
		t.Fatal("closed bus must drop events")
	}
}
