package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"muteguard/internal/config"
)

const userAgent = "muteguard/1.0"

// Event names a notification type.
type Event string

const (
	EventMaintenanceCompleted Event = "maintenance_completed"
	EventMaintenanceFailed    Event = "maintenance_failed"
	EventDaemonStarted        Event = "daemon_started"
	EventTest                 Event = "test"
)

// Payload carries event fields. Values are rendered with %v.
type Payload map[string]any

// Service publishes daemon events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Daemon.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Daemon.NtfyRequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render returns false for events that are not delivered, including
// maintenance passes that removed nothing.
func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventMaintenanceCompleted:
		records := intValue(payload["records"])
		cache := intValue(payload["cacheEntries"])
		logs := intValue(payload["logs"])
		if records+cache+logs == 0 {
			return message{}, false
		}
		return message{
			title: "muteguard - Maintenance",
			body:  fmt.Sprintf("🧹 Removed %d record(s), %d cached subtitle(s), %d log file(s)", records, cache, logs),
			tags:  []string{"muteguard", "maintenance", "completed"},
		}, true
	case EventMaintenanceFailed:
		var b strings.Builder
		b.WriteString("❌ Maintenance error")
		if errText := strings.TrimSpace(stringValue(payload["error"])); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		return message{
			title:    "muteguard - Error",
			body:     b.String(),
			tags:     []string{"muteguard", "error", "alert"},
			priority: "high",
		}, true
	case EventDaemonStarted:
		return message{
			title:    "muteguard - Daemon Started",
			body:     fmt.Sprintf("Cleanup schedule: %s", stringValue(payload["schedule"])),
			tags:     []string{"muteguard", "daemon", "started"},
			priority: "low",
		}, true
	case EventTest:
		return message{
			title:    "muteguard - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"muteguard", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
