package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"photosync/internal/events"
	"photosync/internal/logging"
	"photosync/internal/notifications"
	"photosync/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNtfyServiceFormats(t *testing.T) {
	tests := []struct {
		name           string
		invoke         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "queue completed clean",
			invoke: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 12, 0, 90*time.Second)
			},
			expectTitle:   "photosync - Sync Complete",
			expectMessage: "Sync complete: 12 items uploaded in 1m30s",
			expectTags:    "photosync,queue,completed",
		},
		{
			name: "queue completed with failures",
			invoke: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 4, 2, 10*time.Second)
			},
			expectTitle:   "photosync - Sync Complete (with errors)",
			expectMessage: "Sync complete: 4 uploaded, 2 failed in 10s",
			expectTags:    "photosync,queue,completed",
		},
		{
			name: "upload failed",
			invoke: func(svc notifications.Service) error {
				return svc.NotifyUploadFailed(context.Background(), "asset #7", "server rejected")
			},
			expectTitle:    "photosync - Upload Failed",
			expectMessage:  "Gave up on asset #7: server rejected\nRetry manually from the queue",
			expectTags:     "photosync,upload,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			invoke: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("database locked"), "startup")
			},
			expectTitle:    "photosync - Error",
			expectMessage:  "Error with startup: database locked",
			expectTags:     "photosync,error,alert",
			expectPriority: "high",
		},
		{
			name: "test notification",
			invoke: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "photosync - Test",
			expectMessage:  "Notification system test",
			expectTags:     "photosync,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured capturedRequest
			server := captureServer(t, &captured)
			defer server.Close()

			cfg := testsupport.NewConfig(t)
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(cfg)
			if err := tc.invoke(svc); err != nil {
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

func TestNtfyServiceRejectsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestAttachRoutesEvents(t *testing.T) {
	var captured capturedRequest
	server := captureServer(t, &captured)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Queue = true
	cfg.Notifications.Errors = true

	bus := events.NewBus(logging.NewNop())
	svc := notifications.NewService(cfg)
	detach := notifications.Attach(bus, svc, cfg, logging.NewNop())
	defer detach()

	bus.EmitAssetFailed(7, "server rejected", true)
	if captured.title != "photosync - Upload Failed" {
		t.Fatalf("expected failure notification, got title %q", captured.title)
	}

	bus.EmitQueueCompleted(3, 1, 4*time.Second)
	if captured.title != "photosync - Sync Complete (with errors)" {
		t.Fatalf("expected queue notification, got title %q", captured.title)
	}
}

func TestAttachIgnoresNonTerminalFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected notification: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Queue = true
	cfg.Notifications.Errors = true

	bus := events.NewBus(logging.NewNop())
	svc := notifications.NewService(cfg)
	detach := notifications.Attach(bus, svc, cfg, logging.NewNop())
	defer detach()

	bus.EmitAssetFailed(7, "transient", false)
	bus.EmitQueueCompleted(0, 0, 0)
}
