package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crewbe/internal/logging"
	"crewbe/internal/session"
	"crewbe/internal/testsupport"
)

func seedSessions(t *testing.T, env *cliTestEnv) (done, failed *session.Session) {
	t.Helper()
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, env.cfg)

	done = testsupport.NewSession(t, store)
	if err := store.RecordCapture(ctx, done.ID, 42*time.Second, 2048, ""); err != nil {
		t.Fatalf("RecordCapture: %v", err)
	}
	if err := store.SetStorageKey(ctx, done.ID, "videos/1700000000000-abcd.webm", false); err != nil {
		t.Fatalf("SetStorageKey: %v", err)
	}
	if err := store.UpdatePhase(ctx, done.ID, session.PhaseDone, "", ""); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}

	failed = testsupport.NewSession(t, store)
	if err := store.UpdatePhase(ctx, failed.ID, session.PhaseFailed, "upload", "both strategies failed"); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	return done, failed
}

func TestSessionsListAndFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	done, failed := seedSessions(t, env)

	out, _, err := runCLI(t, []string{"sessions"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, shortID(done.ID))
	requireContains(t, out, shortID(failed.ID))
	requireContains(t, out, "videos/1700000000000-abcd.webm")

	out, _, err = runCLI(t, []string{"sessions", "--phase", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions --phase: %v", err)
	}
	requireContains(t, out, shortID(failed.ID))
	if strings.Contains(out, shortID(done.ID)) {
		t.Fatalf("done session should be filtered out:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"sessions", "--phase", "paused"}, env.configPath); err == nil {
		t.Fatal("expected unknown phase to be rejected")
	}
}

func TestSessionsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"sessions"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "No sessions found")
}

func TestSessionsRemoveAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	done, failed := seedSessions(t, env)

	out, _, err := runCLI(t, []string{"sessions", "remove", shortID(done.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("sessions remove: %v", err)
	}
	requireContains(t, out, "Removed session "+shortID(done.ID))

	out, _, err = runCLI(t, []string{"sessions", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 session(s)")

	if _, _, err := runCLI(t, []string{"show", failed.ID}, env.configPath); err == nil {
		t.Fatal("expected cleared session to be gone")
	}
}

func TestSessionsStats(t *testing.T) {
	env := setupCLITestEnv(t)
	seedSessions(t, env)

	out, _, err := runCLI(t, []string{"sessions", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions stats: %v", err)
	}
	requireContains(t, out, "done")
	requireContains(t, out, "failed")
}

func TestShowRendersSessionAndJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	done, failed := seedSessions(t, env)

	out, _, err := runCLI(t, []string{"show", shortID(failed.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, failed.ID)
	requireContains(t, out, "upload: both strategies failed")

	out, _, err = runCLI(t, []string{"show", done.ID, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var view struct {
		ID         string `json:"id"`
		Phase      string `json:"phase"`
		StorageKey string `json:"storageKey"`
		BlobSize   int64  `json:"blobSize"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if view.ID != done.ID || view.Phase != "done" || view.BlobSize != 2048 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestShowVerifyReportsMissingObject(t *testing.T) {
	env := setupCLITestEnv(t)
	done, _ := seedSessions(t, env)

	out, _, err := runCLI(t, []string{"show", done.ID, "--verify"}, env.configPath)
	if err != nil {
		t.Fatalf("show --verify: %v", err)
	}
	requireContains(t, out, "object is missing from storage")

	env.storage.store("videos/1700000000000-abcd.webm", make([]byte, 2048))
	out, _, err = runCLI(t, []string{"show", done.ID, "--verify"}, env.configPath)
	if err != nil {
		t.Fatalf("show --verify: %v", err)
	}
	requireContains(t, out, "2.0 KiB stored")
}

func TestLogsShowsSessionLog(t *testing.T) {
	env := setupCLITestEnv(t)
	done, _ := seedSessions(t, env)

	path := logging.SessionLogPath(env.cfg.Paths.LogDir, done.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{\"msg\":\"one\"}\n{\"msg\":\"two\"}\n"), 0o644); err != nil {
		t.Fatalf("write session log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", shortID(done.ID), "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "two")
	if strings.Contains(out, "one") {
		t.Fatalf("expected only the last line:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}
