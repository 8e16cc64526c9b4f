package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidscribe/internal/batch"
	"vidscribe/internal/config"
)

const (
	userAgent      = "vidscribe/0.1.0"
	defaultServer  = "https://ntfy.sh/"
	defaultTimeout = 10 * time.Second
)

// Service defines the notification surface used by the run command.
type Service interface {
	NotifyBatchStarted(ctx context.Context, files int, outputDir string) error
	NotifyBatchCompleted(ctx context.Context, summary batch.Summary) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// A bare topic name is published to ntfy.sh; a full URL is used as is.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &ntfyService{
		endpoint: Endpoint(topic),
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint resolves a configured topic to the URL messages are posted to.
func Endpoint(topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	return defaultServer + strings.TrimPrefix(topic, "/")
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, files int, outputDir string) error {
	noun := "files"
	if files == 1 {
		noun = "file"
	}
	return n.send(ctx, payload{
		title:   "vidscribe - Batch Started",
		message: fmt.Sprintf("Transcribing %d %s into %s", files, noun, strings.TrimSpace(outputDir)),
		tags:    []string{"vidscribe", "batch", "started"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, summary batch.Summary) error {
	elapsed := max(summary.Finished.Sub(summary.Started).Round(time.Second), 0)
	c := summary.Counters

	data := payload{
		title: "vidscribe - Batch Complete",
		message: fmt.Sprintf("%d succeeded, %d skipped, %d errored in %s\nOutput: %s",
			c.Succeeded, c.Skipped, c.Errored, elapsed, summary.OutputDir),
		tags: []string{"vidscribe", "batch", "completed"},
	}
	switch {
	case summary.Cancelled:
		data.title = "vidscribe - Batch Cancelled"
		data.tags = []string{"vidscribe", "batch", "cancelled"}
	case c.Errored > 0:
		data.title = "vidscribe - Batch Complete (with errors)"
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "vidscribe - Error",
		message:  builder.String(),
		tags:     []string{"vidscribe", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "vidscribe - Test",
		message:  "Notification system test",
		tags:     []string{"vidscribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyBatchStarted(context.Context, int, string) error     { return nil }
func (noopService) NotifyBatchCompleted(context.Context, batch.Summary) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
