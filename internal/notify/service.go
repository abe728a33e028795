// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify posts batch outcomes to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/httputil"
	"github.com/pdiddy/media-convert/pkg/types"
)

const (
	userAgent      = "media-convert"
	defaultTimeout = 10 * time.Second
)

// Service sends notifications about finished batches.
type Service interface {
	NotifyBatch(ctx context.Context, summary convert.Summary) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed service, or a no-op one when no topic
// URL is configured.
func NewService(cfg types.NotifyConfig) Service {
	topic := strings.TrimSpace(cfg.TopicURL)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		endpoint:   topic,
		token:      strings.TrimSpace(cfg.Token),
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	token      string
	maxRetries int
	client     *http.Client
}

// BatchMessage renders the notification for a batch.
func BatchMessage(s convert.Summary) (title, message string) {
	duration := s.Duration.Round(time.Millisecond)
	if duration < 0 {
		duration = 0
	}
	message = fmt.Sprintf("%d converted, %d failed", s.Converted, s.Failed)
	if s.Unsupported > 0 {
		message += fmt.Sprintf(", %d unsupported", s.Unsupported)
	}
	message += fmt.Sprintf(" (%s in %s)", humanize.Bytes(uint64(max(s.BytesIn, 0))), duration)

	title = "media-convert - Batch Complete"
	if s.HasFailures() {
		title = "media-convert - Batch Complete (with errors)"
	}
	return title, message
}

func (n *ntfyService) NotifyBatch(ctx context.Context, summary convert.Summary) error {
	if summary.Total() == 0 {
		return nil
	}
	title, message := BatchMessage(summary)
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"media-convert", "batch"},
	}
	if summary.HasFailures() {
		data.tags = append(data.tags, "warning")
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "media-convert - Test",
		message:  "Notification system test",
		tags:     []string{"media-convert", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := httputil.DoWithRetry(ctx, n.client, req, n.maxRetries)
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

func (noopService) NotifyBatch(context.Context, convert.Summary) error { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
