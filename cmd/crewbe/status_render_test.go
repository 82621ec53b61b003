package main

import (
	"fmt"
	"strings"
	"testing"

	"crewbe/internal/preflight"
	"crewbe/internal/session"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Camera", statusError, "Not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Camera:", "[ERROR] Not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Camera", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightLines(t *testing.T) {
	results := []preflight.Result{
		{Name: "Capture device", Passed: true, Detail: "replay clip"},
		{Name: "crewbe API", Passed: false, Optional: true, Detail: "connection refused"},
		{Name: "Spool directory", Passed: false, Detail: "not writable"},
	}
	lines := preflightLines(results, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] 1 blocking check(s) failed") {
		t.Fatalf("expected blocking summary first, got %q", lines[0])
	}
	if !strings.Contains(lines[2], "[WARN] connection refused (optional)") {
		t.Fatalf("expected optional warning, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[ERROR] not writable") {
		t.Fatalf("expected blocking error, got %q", lines[3])
	}
}

func TestPhaseStatusKind(t *testing.T) {
	cases := map[session.Phase]statusKind{
		session.PhaseDone:      statusOK,
		session.PhaseFailed:    statusError,
		session.PhaseIdle:      statusInfo,
		session.PhaseUploading: statusWarn,
	}
	for phase, want := range cases {
		if got := phaseStatusKind(phase); got != want {
			t.Fatalf("phaseStatusKind(%s) = %v, want %v", phase, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
