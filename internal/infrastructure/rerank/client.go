// Package rerank 提供语义重排服务客户端
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/config"
)

var tracer = otel.Tracer("rerank")

// Client Cohere 兼容的重排客户端
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ rag.Reranker = (*Client)(nil)

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewClient 创建重排客户端，未启用时返回 nil
func NewClient(cfg *config.RerankConfig) *Client {
	if cfg == nil || !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rerank 对候选文档按查询相关性重排
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]rag.RerankResult, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("rerank client not configured")
	}
	if len(documents) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "rerank.Rerank",
		trace.WithAttributes(attribute.Int("documents", len(documents))))
	defer span.End()

	reqBody, err := json.Marshal(&rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		err := fmt.Errorf("rerank request failed: status=%d", httpResp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var resp rerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]rag.RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, rag.RerankResult{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return results, nil
}
