package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fieldsnap/internal/config"
	"fieldsnap/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRetriesExhausted, notifications.Payload{"item": "abc"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("nil config should yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		configure      func(*config.Config)
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "retries exhausted",
			event: notifications.EventRetriesExhausted,
			payload: notifications.Payload{
				"item":     "3f1c",
				"group":    "visit-42",
				"attempts": 3,
				"error":    "gcs upload failed: 503",
			},
			expectTitle:    "fieldsnap - Upload Failed",
			expectMessage:  "⚠️ Upload gave up after 3 attempts: 3f1c\nGroup: visit-42\nLast error: gcs upload failed: 503",
			expectTags:     "fieldsnap,upload,failed",
			expectPriority: "high",
		},
		{
			name:          "drain completed",
			event:         notifications.EventDrainCompleted,
			payload:       notifications.Payload{"uploaded": 2, "failed": 0, "remaining": 3},
			configure:     func(c *config.Config) { c.Notifications.DrainSummary = true },
			expectTitle:   "fieldsnap - Uploads Complete",
			expectMessage: "📤 Uploaded 2 photo(s)\n3 still queued",
			expectTags:    "fieldsnap,upload,completed",
		},
		{
			name:          "drain completed with errors",
			event:         notifications.EventDrainCompleted,
			payload:       notifications.Payload{"uploaded": 1, "failed": 2},
			configure:     func(c *config.Config) { c.Notifications.DrainSummary = true },
			expectTitle:   "fieldsnap - Uploads Complete (with errors)",
			expectMessage: "📤 Uploaded 1 photo(s), 2 failed",
			expectTags:    "fieldsnap,upload,completed",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "startup",
				"error":   "object store unreachable",
			},
			expectTitle:    "fieldsnap - Error",
			expectMessage:  "❌ Error with startup: object store unreachable",
			expectTags:     "fieldsnap,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "fieldsnap - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "fieldsnap,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			if tc.configure != nil {
				tc.configure(&cfg)
			}

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RetriesExhausted = false
	cfg.Notifications.DrainSummary = true
	cfg.Notifications.MinDrainUploads = 3

	svc := notifications.NewService(&cfg)
	suppressed := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventRetriesExhausted, notifications.Payload{"item": "x"}},
		{notifications.EventDrainCompleted, notifications.Payload{"uploaded": 2}},
		{notifications.Event("unknown"), nil},
	}

	for _, tc := range suppressed {
		if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", tc.event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
