// Package notify fans terminal job transitions out to downstream consumers.
// Delivery is best-effort: a notification failure never affects job state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

// WebhookConfig captures the subset of completion webhook behaviour we need.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Logger     *slog.Logger
}

// Webhook posts completed and failed job views to a downstream HTTP consumer.
type Webhook struct {
	url        string
	retryLimit int
	client     *http.Client
	logger     *slog.Logger
}

// NewWebhook builds a completion webhook notifier. Callers should pass a validated config.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Webhook{
		url:        url,
		retryLimit: retries,
		client:     hc,
		logger:     logger,
	}, nil
}

// NotifyCompletion delivers a terminal job view downstream. Errors are logged,
// never returned; the job outcome is already durable by the time this runs.
func (w *Webhook) NotifyCompletion(ctx context.Context, view model.JobView) {
	body, err := json.Marshal(view)
	if err != nil {
		w.logger.Error("encode completion webhook payload", "error", err, "correlation_id", view.CorrelationID)
		return
	}

	attempts := w.retryLimit + 1
	for attempt := range attempts {
		err = w.post(ctx, body)
		if err == nil {
			return
		}
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				w.logger.Warn("completion webhook canceled", "correlation_id", view.CorrelationID, "error", ctx.Err())
				return
			case <-timer.C:
			}
		}
	}

	w.logger.Warn("completion webhook delivery failed",
		"correlation_id", view.CorrelationID,
		"status", view.Status,
		"error", err,
	)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	return nil
}

// NoopNotifier satisfies the completion notifier contract when no webhook is configured.
type NoopNotifier struct{}

// NotifyCompletion is a no-op.
func (NoopNotifier) NotifyCompletion(context.Context, model.JobView) {}
