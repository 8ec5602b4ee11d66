// Package faceindex provides an HTTP client for the vector index service.
package faceindex

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

// Config captures the subset of index service behaviour we need.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client runs nearest-neighbour searches against the face index service.
type Client struct {
	searchURL  string
	retryLimit int
	client     *http.Client
}

// NewClient builds a face index client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("face index base url is required")
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
		searchURL:  strings.TrimRight(baseURL, "/") + "/search",
		retryLimit: retries,
		client:     hc,
	}, nil
}

type searchRequest struct {
	Embedding []float64 `json:"embedding"`
	TopK      int       `json:"top_k"`
}

type searchResponse struct {
	Matches []model.Match `json:"matches"`
}

// Search returns the topK nearest matches for the given embedding.
func (c *Client) Search(ctx context.Context, embedding []float64, topK int) ([]model.Match, error) {
	if len(embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}
	if topK <= 0 {
		return nil, errors.New("top_k must be positive")
	}

	body, err := json.Marshal(searchRequest{Embedding: embedding, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		matches, err := c.post(ctx, body)
		if err == nil {
			return matches, nil
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

func (c *Client) post(ctx context.Context, body []byte) ([]model.Match, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("face index responded with status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return payload.Matches, nil
}
