// Package callback delivers worker outcomes to the submission-side callback
// endpoint over HTTP.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

// TokenHeader carries the shared callback secret on outcome deliveries.
const TokenHeader = "X-Callback-Token"

// Config captures the subset of callback delivery behaviour we need.
type Config struct {
	CallbackURL string
	Token       string
	Timeout     time.Duration
	RetryLimit  int
	Client      *http.Client
}

// Reporter posts terminal job outcomes to the callback endpoint.
type Reporter struct {
	callbackURL string
	token       string
	retryLimit  int
	client      *http.Client
}

// NewReporter builds a callback reporter. Callers should pass a validated config.
func NewReporter(cfg Config) (*Reporter, error) {
	callbackURL := strings.TrimSpace(cfg.CallbackURL)
	if callbackURL == "" {
		return nil, errors.New("callback url is required")
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

	return &Reporter{
		callbackURL: callbackURL,
		token:       strings.TrimSpace(cfg.Token),
		retryLimit:  retries,
		client:      hc,
	}, nil
}

// ReportSuccess delivers a completed outcome with the search result payload.
func (r *Reporter) ReportSuccess(ctx context.Context, correlationID string, result *model.SearchResult) error {
	if result == nil {
		return errors.New("result is required")
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode search result: %w", err)
	}
	return r.report(ctx, model.CompleteJobRequest{
		CorrelationID: correlationID,
		Result:        encoded,
	})
}

// ReportFailure delivers a failed outcome with a diagnostic reason.
func (r *Reporter) ReportFailure(ctx context.Context, correlationID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.New("failure reason is required")
	}
	return r.report(ctx, model.CompleteJobRequest{
		CorrelationID: correlationID,
		FailureReason: &reason,
	})
}

func (r *Reporter) report(ctx context.Context, outcome model.CompleteJobRequest) error {
	if strings.TrimSpace(outcome.CorrelationID) == "" {
		return errors.New("correlation id is required")
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}

	attempts := r.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = r.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (r *Reporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set(TokenHeader, r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback endpoint responded with status %d", resp.StatusCode)
	}

	return nil
}
