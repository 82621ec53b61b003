package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSessionIDHandlerStampsRecords(t *testing.T) {
	tests := []struct {
		name  string
		build func(*slog.Logger) *slog.Logger
		want  []string
	}{
		{"plain", func(l *slog.Logger) *slog.Logger { return l }, []string{`"session_id":"sess-1"`}},
		{"with attrs", func(l *slog.Logger) *slog.Logger { return l.With("stage", "uploading") }, []string{`"session_id":"sess-1"`, `"stage":"uploading"`}},
		{"component", func(l *slog.Logger) *slog.Logger { return NewComponentLogger(l, "poller") }, []string{`"session_id":"sess-1"`, `"component":"poller"`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tc.build(slog.New(newSessionIDHandler(slog.NewJSONHandler(&buf, nil), "sess-1")))
			logger.Info("phase changed")
			for _, want := range tc.want {
				if !strings.Contains(buf.String(), want) {
					t.Fatalf("expected %s in %s", want, buf.String())
				}
			}
		})
	}
	if _, ok := newSessionIDHandler(nil, "sess-1").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler without a base handler")
	}
}

func TestMirrorHandlerAppliesLevelsPerSide(t *testing.T) {
	var console, file bytes.Buffer
	primary := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo})
	mirror := newJSONHandler(&file, slog.LevelDebug, false)
	logger := slog.New(newMirrorHandler(primary, mirror)).With("storage_key", "videos/a.webm")

	logger.Debug("chunk appended", "index", 3)
	logger.Info("upload finished")

	if strings.Contains(console.String(), "chunk appended") {
		t.Fatalf("console received debug record: %q", console.String())
	}
	if !strings.Contains(console.String(), "storage_key=videos/a.webm") {
		t.Fatalf("console missing attrs: %q", console.String())
	}
	if !strings.Contains(file.String(), "chunk appended") || !strings.Contains(file.String(), "upload finished") {
		t.Fatalf("session file missing records: %q", file.String())
	}

	if newMirrorHandler(nil, nil) != (NoopHandler{}) {
		t.Fatal("expected NoopHandler when both sides are nil")
	}
	if newMirrorHandler(primary, nil) != primary {
		t.Fatal("expected primary returned directly without a mirror")
	}
}

func TestJSONHandlerShapesRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, slog.LevelDebug, false))
	logger.Info("attempt finished", "took", 1234567*time.Microsecond, "error_hint", "", "strategy", "presigned")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["level"] != "info" || entry["msg"] != "attempt finished" {
		t.Fatalf("unexpected envelope: %v", entry)
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse(jsonTimeFormat, ts); err != nil || !strings.Contains(ts, ".") {
		t.Fatalf("expected millisecond timestamp, got %q", ts)
	}
	if entry["took"] != "1.235s" {
		t.Fatalf("expected rounded duration, got %v", entry["took"])
	}
	if _, ok := entry["error_hint"]; ok {
		t.Fatal("expected empty attribute to be dropped")
	}
	if entry["strategy"] != "presigned" {
		t.Fatalf("unexpected strategy %v", entry["strategy"])
	}
}
