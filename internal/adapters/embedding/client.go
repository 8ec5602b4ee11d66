// Package embedding provides an HTTP client for the face embedding service.
package embedding

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
)

// Config captures the subset of embedder behaviour we need.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client computes face embeddings by calling the embedding service.
type Client struct {
	embedURL   string
	retryLimit int
	client     *http.Client
}

// NewClient builds an embedding service client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("embedder base url is required")
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

	return &Client{
		embedURL:   strings.TrimRight(baseURL, "/") + "/embed",
		retryLimit: retries,
		client:     hc,
	}, nil
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed sends raw image bytes to the embedding service and returns the face vector.
func (c *Client) Embed(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, errors.New("image payload is empty")
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		embedding, err := c.post(ctx, image)
		if err == nil {
			return embedding, nil
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
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, lastErr
}

func (c *Client) post(ctx context.Context, image []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embedURL, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed service responded with status %d", resp.StatusCode)
	}

	var payload embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(payload.Embedding) == 0 {
		return nil, errors.New("embed service returned an empty embedding")
	}

	return payload.Embedding, nil
}
