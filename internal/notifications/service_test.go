package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidscribe/internal/batch"
	"vidscribe/internal/config"
	"vidscribe/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapture(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchStarted(context.Background(), 3, "/out"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	tests := map[string]string{
		"transcripts":                    "https://ntfy.sh/transcripts",
		"/transcripts":                   "https://ntfy.sh/transcripts",
		"https://ntfy.example.com/jobs":  "https://ntfy.example.com/jobs",
		" http://localhost:8080/alerts ": "http://localhost:8080/alerts",
	}
	for in, want := range tests {
		if got := notifications.Endpoint(in); got != want {
			t.Fatalf("Endpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "batch started",
			send:          func(s notifications.Service) error { return s.NotifyBatchStarted(context.Background(), 1, "/out") },
			expectTitle:   "vidscribe - Batch Started",
			expectMessage: "Transcribing 1 file into /out",
			expectTags:    "vidscribe,batch,started",
		},
		{
			name: "batch completed cleanly",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), batch.Summary{
					OutputDir: "/out",
					Counters:  batch.Counters{Succeeded: 2, Skipped: 1},
					Started:   started,
					Finished:  started.Add(90 * time.Second),
				})
			},
			expectTitle:   "vidscribe - Batch Complete",
			expectMessage: "2 succeeded, 1 skipped, 0 errored in 1m30s\nOutput: /out",
			expectTags:    "vidscribe,batch,completed",
		},
		{
			name: "batch completed with errors",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), batch.Summary{
					OutputDir: "/out",
					Counters:  batch.Counters{Succeeded: 1, Errored: 1},
					Started:   started,
					Finished:  started.Add(2 * time.Second),
				})
			},
			expectTitle:    "vidscribe - Batch Complete (with errors)",
			expectMessage:  "1 succeeded, 0 skipped, 1 errored in 2s\nOutput: /out",
			expectTags:     "vidscribe,batch,completed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("uvx not found"), "startup")
			},
			expectTitle:    "vidscribe - Error",
			expectMessage:  "Error during startup: uvx not found",
			expectTags:     "vidscribe,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "vidscribe - Test",
			expectMessage:  "Notification system test",
			expectTags:     "vidscribe,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCapture(t, http.StatusOK)
			if err := tc.send(serviceFor(server.URL)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server, _ := newCapture(t, http.StatusTooManyRequests)
	err := serviceFor(server.URL).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected status error, got %v", err)
	}
}
