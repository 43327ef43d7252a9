package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"muteguard/internal/config"
	"muteguard/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "maintenance completed",
			event:         notifications.EventMaintenanceCompleted,
			payload:       notifications.Payload{"records": 3, "cacheEntries": 2, "logs": 0},
			expectTitle:   "muteguard - Maintenance",
			expectMessage: "🧹 Removed 3 record(s), 2 cached subtitle(s), 0 log file(s)",
			expectTags:    "muteguard,maintenance,completed",
		},
		{
			name:           "maintenance failed",
			event:          notifications.EventMaintenanceFailed,
			payload:        notifications.Payload{"error": "records: database is locked"},
			expectTitle:    "muteguard - Error",
			expectMessage:  "❌ Maintenance error: records: database is locked",
			expectTags:     "muteguard,error,alert",
			expectPriority: "high",
		},
		{
			name:           "daemon started",
			event:          notifications.EventDaemonStarted,
			payload:        notifications.Payload{"schedule": "@daily"},
			expectTitle:    "muteguard - Daemon Started",
			expectMessage:  "Cleanup schedule: @daily",
			expectTags:     "muteguard,daemon,started",
			expectPriority: "low",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "muteguard - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "muteguard,test",
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
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Daemon.NtfyTopic = server.URL
			cfg.Daemon.NtfyRequestTimeout = 5

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

func TestNtfyServiceSkipsEmptyMaintenance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Daemon.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	payloads := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventMaintenanceCompleted, notifications.Payload{"records": 0, "cacheEntries": 0, "logs": 0}},
		{notifications.Event("unknown"), notifications.Payload{"value": "ignored"}},
	}
	for _, p := range payloads {
		if err := svc.Publish(context.Background(), p.event, p.payload); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", p.event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Daemon.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
