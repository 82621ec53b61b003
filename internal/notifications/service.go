package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crewbe/internal/config"
)

const userAgent = "crewbe/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSessionDone     Event = "session_done"
	EventSessionFailed   Event = "session_failed"
	EventSimulatedUpload Event = "simulated_upload"
	EventTest            Event = "test"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes pipeline notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventSessionDone:     cfg.Notifications.Done,
			EventSessionFailed:   cfg.Notifications.Failed,
			EventSimulatedUpload: cfg.Notifications.Failed,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	candidate := payloadString(payload, "candidate")
	if candidate == "" {
		candidate = "interview"
	}
	switch event {
	case EventSessionDone:
		body := fmt.Sprintf("✅ Analysis ready: %s", candidate)
		if faces, segments := payloadString(payload, "faces"), payloadString(payload, "segments"); faces != "" || segments != "" {
			body += fmt.Sprintf("\nFaces: %s, segments: %s", orDash(faces), orDash(segments))
		}
		return message{
			title: "crewbe - Analysis Complete",
			body:  body,
			tags:  []string{"crewbe", "analysis", "completed"},
		}, true
	case EventSessionFailed:
		var b strings.Builder
		b.WriteString("❌ ")
		if category := payloadString(payload, "category"); category != "" {
			b.WriteString(category)
		} else {
			b.WriteString("Session failed")
		}
		b.WriteString(": ")
		b.WriteString(candidate)
		if detail := payloadString(payload, "error"); detail != "" {
			b.WriteString("\n")
			b.WriteString(detail)
		}
		return message{
			title:    "crewbe - Session Failed",
			body:     b.String(),
			tags:     []string{"crewbe", "error", "alert"},
			priority: "high",
		}, true
	case EventSimulatedUpload:
		return message{
			title:    "crewbe - Simulated Upload",
			body:     fmt.Sprintf("⚠️ Upload failed; continuing with simulated key %s", payloadString(payload, "key")),
			tags:     []string{"crewbe", "upload", "simulated"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "crewbe - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"crewbe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
