package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"heifconv/internal/config"
)

const userAgent = "heifconv/0.1.0"

// Service defines the notification surface exposed to the conversion core.
// Only batch-level event text is ever published; image data never leaves the
// machine.
type Service interface {
	BatchStarted(ctx context.Context, itemCount int) error
	BatchCompleted(ctx context.Context, completed, failed int, elapsed time.Duration) error
	BatchError(ctx context.Context, reason string) error
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

func (n *ntfyService) BatchStarted(ctx context.Context, itemCount int) error {
	data := payload{
		title:   "heifconv - Batch Started",
		message: fmt.Sprintf("Started converting %d images", itemCount),
		tags:    []string{"heifconv", "batch", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) BatchCompleted(ctx context.Context, completed, failed int, elapsed time.Duration) error {
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedText := elapsed.String()
	if elapsed == 0 {
		elapsedText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "heifconv - Batch Complete"
		message = fmt.Sprintf("Converted %d images in %s", completed, elapsedText)
	} else {
		title = "heifconv - Batch Complete (with errors)"
		message = fmt.Sprintf("Converted %d images, %d failed in %s", completed, failed, elapsedText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"heifconv", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) BatchError(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "heifconv - Error",
		message:  fmt.Sprintf("Batch aborted: %s", reason),
		tags:     []string{"heifconv", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "heifconv - Test",
		message:  "Notification system test",
		tags:     []string{"heifconv", "test"},
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

func (noopService) BatchStarted(context.Context, int) error                       { return nil }
func (noopService) BatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) BatchError(context.Context, string) error                      { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
