package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookforge/internal/config"
)

const userAgent = "bookforge/0.1.0"

// Service defines the notification surface exposed to the scheduler.
type Service interface {
	NotifyBatchStarted(ctx context.Context, count int) error
	NotifyBookPublished(ctx context.Context, title string, confirmed bool) error
	NotifyBatchCompleted(ctx context.Context, published, failed int, duration time.Duration) error
	NotifyBatchAborted(ctx context.Context, reason error) error
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

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, count int) error {
	data := payload{
		title:   "Bookforge - Batch Started",
		message: fmt.Sprintf("Started publishing batch of %d book(s)", count),
		tags:    []string{"bookforge", "batch", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBookPublished(ctx context.Context, title string, confirmed bool) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Published: %s", title)
	if !confirmed {
		message = fmt.Sprintf("Submitted without confirmation: %s\nVerify on the bookshelf", title)
	}
	data := payload{
		title:   "Bookforge - Book Published",
		message: message,
		tags:    []string{"bookforge", "book", "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, published, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Bookforge - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d book(s) published in %s", published, duration)
	} else {
		title = "Bookforge - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d published, %d failed in %s", published, failed, duration)
	}

	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"bookforge", "batch", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchAborted(ctx context.Context, reason error) error {
	message := "Batch aborted"
	if reason != nil {
		message = fmt.Sprintf("Batch aborted: %s", strings.TrimSpace(reason.Error()))
	}
	data := payload{
		title:    "Bookforge - Batch Aborted",
		message:  message,
		tags:     []string{"bookforge", "batch", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bookforge - Test",
		message:  "Notification system test",
		tags:     []string{"bookforge", "test"},
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

func (noopService) NotifyBatchStarted(context.Context, int) error { return nil }

func (noopService) NotifyBookPublished(context.Context, string, bool) error { return nil }

func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }

func (noopService) NotifyBatchAborted(context.Context, error) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
