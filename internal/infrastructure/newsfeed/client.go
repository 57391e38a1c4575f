// Package newsfeed 提供财经新闻数据源客户端
package newsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/application/collector"
	"fin-research-api/internal/config"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/errors"
)

var tracer = otel.Tracer("newsfeed")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ collector.NewsSource = (*Client)(nil)

func NewClient(cfg *config.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type articlePayload struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Summary     string `json:"summary"`
}

type searchResponse struct {
	Articles []articlePayload `json:"articles"`
}

// Search 按股票代码检索近期新闻
func (c *Client) Search(ctx context.Context, tickers []string, daysBack int) ([]entity.NewsItem, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New(errors.CodeNewsError).WithDetails("news client not initialized")
	}

	ctx, span := tracer.Start(ctx, "newsfeed.Search",
		trace.WithAttributes(attribute.Int("tickers", len(tickers))))
	defer span.End()

	terms := cleanTickers(tickers)
	if len(terms) == 0 {
		return nil, errors.New(errors.CodeNewsError).WithDetails("no search terms provided")
	}
	if daysBack <= 0 {
		daysBack = 7
	}

	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, errors.Wrap(errors.CodeNewsError, err)
	}
	q := u.Query()
	q.Set("q", strings.Join(terms, " OR "))
	q.Set("from", time.Now().UTC().AddDate(0, 0, -daysBack).Format("2006-01-02"))
	q.Set("language", "pt")
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeNewsError, err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(errors.CodeNewsError, err).Transient()
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		appErr := errors.Newf(errors.CodeNewsError, "news search failed: status=%d", httpResp.StatusCode)
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			appErr = appErr.Transient()
		}
		span.RecordError(appErr)
		return nil, appErr
	}

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(errors.CodeNewsError, err)
	}

	items := make([]entity.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" {
			continue
		}
		items = append(items, entity.NewsItem{
			Title:       a.Title,
			Source:      a.Source,
			URL:         a.URL,
			PublishedAt: parseTime(a.PublishedAt),
			Summary:     a.Summary,
			Tickers:     matchTickers(a.Title+" "+a.Summary, terms),
		})
	}

	span.SetAttributes(attribute.Int("articles", len(items)))
	return items, nil
}

// cleanTickers 去掉交易所后缀并统一大写，保持输入顺序去重
func cleanTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(t)), ".SA")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func matchTickers(text string, tickers []string) []string {
	upper := strings.ToUpper(text)
	var matched []string
	for _, t := range tickers {
		if strings.Contains(upper, t) {
			matched = append(matched, t)
		}
	}
	return matched
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	// 部分源返回 Unix 秒级时间戳
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}
