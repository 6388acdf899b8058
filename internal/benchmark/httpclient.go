package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

// HTTPSearchClient runs benchmark queries against a live API instance.
type HTTPSearchClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSearchClient(baseURL string) *HTTPSearchClient {
	return &HTTPSearchClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPSearchClient) Search(ctx context.Context, query string, topK int, alpha *float64) ([]domain.ScoredResult, error) {
	payload := map[string]any{
		"query": query,
		"top_k": topK,
	}
	if alpha != nil {
		payload["alpha"] = *alpha
	}

	var response struct {
		Results []domain.ScoredResult `json:"results"`
	}
	if err := c.postJSON(ctx, "/rag/search", payload, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// IndexDocuments loads a corpus before the run, for self-contained
// benchmark invocations.
func (c *HTTPSearchClient) IndexDocuments(ctx context.Context, docs []domain.IndexedDocument) (domain.IndexStats, error) {
	var stats domain.IndexStats
	err := c.postJSON(ctx, "/rag/index", map[string]any{"documents": docs}, &stats)
	return stats, err
}

func (c *HTTPSearchClient) Reset(ctx context.Context) error {
	return c.postJSON(ctx, "/rag/reset", map[string]any{}, nil)
}

func (c *HTTPSearchClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrNetwork, "call api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
