package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// sessionIDHandler wraps another handler to inject a session_id attribute into all records.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{
		base:      base,
		sessionID: sessionID,
	}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithAttrs(attrs),
		sessionID: h.sessionID,
	}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithGroup(name),
		sessionID: h.sessionID,
	}
}

// SessionLogPath returns the per-session JSON log file under dir.
func SessionLogPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".log")
}

// NewSessionLogger returns a logger that tags every record with the session
// id and tees debug-level JSON output into a per-session log file under dir.
// An empty dir skips the file and only tags records. The returned closer
// releases the file and is never nil.
func NewSessionLogger(base *slog.Logger, dir, sessionID string) (*slog.Logger, io.Closer, error) {
	if base == nil {
		base = NewNop()
	}
	if strings.TrimSpace(dir) == "" {
		return slog.New(newSessionIDHandler(base.Handler(), sessionID)), nopCloser{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure session log directory: %w", err)
	}
	file, err := os.OpenFile(SessionLogPath(dir, sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open session log: %w", err)
	}
	fileHandler := newJSONHandler(file, slog.LevelDebug, false)
	handler := newMirrorHandler(base.Handler(), fileHandler)
	return slog.New(newSessionIDHandler(handler, sessionID)), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
