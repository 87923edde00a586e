package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"artgrab/internal/config"
)

const userAgent = "Artgrab-Go/0.1.0"

// Service defines the notification surface exposed to run workflows.
type Service interface {
	NotifyScanCompleted(ctx context.Context, scope string, queued int) error
	NotifyReviewCompleted(ctx context.Context, applied, skipped int) error
	NotifyProcessingCompleted(ctx context.Context, applied, skipped int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
	}
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

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, scope string, queued int) error {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "library"
	}
	data := payload{
		title:   "Artgrab - Scan Complete",
		message: fmt.Sprintf("Scan of %s complete: %d items queued for review", scope, queued),
		tags:    []string{"artgrab", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewCompleted(ctx context.Context, applied, skipped int) error {
	data := payload{
		title:   "Artgrab - Review Complete",
		message: fmt.Sprintf("Review complete: %d applied, %d skipped", applied, skipped),
		tags:    []string{"artgrab", "review", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, applied, skipped int) error {
	data := payload{
		title:   "Artgrab - Processing Complete",
		message: fmt.Sprintf("Unattended run complete: %d applied, %d skipped", applied, skipped),
		tags:    []string{"artgrab", "process", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Artgrab - Error",
		message:  builder.String(),
		tags:     []string{"artgrab", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Artgrab - Test",
		message:  "Notification system test",
		tags:     []string{"artgrab", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyScanCompleted(context.Context, string, int) error    { return nil }
func (noopService) NotifyReviewCompleted(context.Context, int, int) error     { return nil }
func (noopService) NotifyProcessingCompleted(context.Context, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
