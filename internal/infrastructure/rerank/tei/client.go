package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client scores (query, passage) pairs against a text-embeddings-inference
// style /rerank endpoint backed by a cross-encoder model.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query":      query,
		"texts":      passages,
		"raw_scores": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("rerank status: %s", resp.Status)
	}

	var ranked []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	// The service returns results sorted by score; map them back onto the
	// input positions so callers can pair scores with their passages.
	out := make([]float64, len(passages))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(out) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		out[r.Index] = r.Score
	}
	return out, nil
}
