package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldsnap/internal/config"
)

const userAgent = "fieldsnap/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventRetriesExhausted Event = "retries_exhausted"
	EventDrainCompleted   Event = "drain_completed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields. Values are formatted with fmt.Sprint.
type Payload map[string]any

// Service publishes events.
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
		settings: cfg.Notifications,
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
	settings config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRetriesExhausted:
		if !n.settings.RetriesExhausted {
			return message{}, false
		}
		body := fmt.Sprintf("⚠️ Upload gave up after %s attempts: %s", value(payload, "attempts"), value(payload, "item"))
		if group := value(payload, "group"); group != "" {
			body += "\nGroup: " + group
		}
		if reason := value(payload, "error"); reason != "" {
			body += "\nLast error: " + reason
		}
		return message{
			title:    "fieldsnap - Upload Failed",
			body:     body,
			tags:     []string{"fieldsnap", "upload", "failed"},
			priority: "high",
		}, true
	case EventDrainCompleted:
		uploaded := intValue(payload, "uploaded")
		if !n.settings.DrainSummary || uploaded < n.settings.MinDrainUploads {
			return message{}, false
		}
		failed := intValue(payload, "failed")
		title := "fieldsnap - Uploads Complete"
		body := fmt.Sprintf("📤 Uploaded %d photo(s)", uploaded)
		if failed > 0 {
			title = "fieldsnap - Uploads Complete (with errors)"
			body = fmt.Sprintf("📤 Uploaded %d photo(s), %d failed", uploaded, failed)
		}
		if remaining := intValue(payload, "remaining"); remaining > 0 {
			body += fmt.Sprintf("\n%d still queued", remaining)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"fieldsnap", "upload", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := value(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if reason := value(payload, "error"); reason != "" {
			builder.WriteString(reason)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "fieldsnap - Error",
			body:     builder.String(),
			tags:     []string{"fieldsnap", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "fieldsnap - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"fieldsnap", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func value(payload Payload, key string) string {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
