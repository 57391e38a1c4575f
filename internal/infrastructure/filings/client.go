// Package filings 提供监管披露文件数据源客户端
package filings

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

var tracer = otel.Tracer("filings")

// categoryMapping 监管文件类别到文档类型的映射
var categoryMapping = map[string]entity.DocumentType{
	"DFP": entity.DocumentTypeAnnualReport,
	"ITR": entity.DocumentTypeQuarterlyReport,
	"FR":  entity.DocumentTypeRelevantFact,
	"FCA": entity.DocumentTypeOther,
	"FRE": entity.DocumentTypeOther,
	"IPE": entity.DocumentTypeEarningsRelease,
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ collector.FilingsSource = (*Client)(nil)

func NewClient(cfg *config.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type filingPayload struct {
	Ticker      string `json:"ticker"`
	Company     string `json:"company"`
	Category    string `json:"category"`
	Subject     string `json:"subject"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
}

type listResponse struct {
	Filings []filingPayload `json:"filings"`
}

// ListFilings 列出某只股票的披露文件，year 为 0 时不限年份
func (c *Client) ListFilings(ctx context.Context, ticker string, year int) ([]entity.Filing, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New(errors.CodeFilingsError).WithDetails("filings client not initialized")
	}

	ctx, span := tracer.Start(ctx, "filings.ListFilings",
		trace.WithAttributes(attribute.String("ticker", ticker)))
	defer span.End()

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.New(errors.CodeFilingsError).WithDetails("ticker is required")
	}

	u, err := url.Parse(c.baseURL + "/filings")
	if err != nil {
		return nil, errors.Wrap(errors.CodeFilingsError, err)
	}
	q := u.Query()
	q.Set("ticker", ticker)
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeFilingsError, err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(errors.CodeFilingsError, err, "filings request failed: ticker=%s", ticker).Transient()
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		appErr := errors.Newf(errors.CodeFilingsError, "filings request failed: status=%d ticker=%s", httpResp.StatusCode, ticker)
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			appErr = appErr.Transient()
		}
		span.RecordError(appErr)
		return nil, appErr
	}

	var resp listResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(errors.CodeFilingsError, err)
	}

	out := make([]entity.Filing, 0, len(resp.Filings))
	for _, f := range resp.Filings {
		out = append(out, entity.Filing{
			Ticker:      ticker,
			Company:     f.Company,
			Category:    normalizeCategory(f.Category),
			Subject:     f.Subject,
			URL:         f.URL,
			PublishedAt: parseDate(f.PublishedAt),
		})
	}

	span.SetAttributes(attribute.Int("filings", len(out)))
	return out, nil
}

// normalizeCategory 把监管代码翻译为文档类型，未知代码原样保留
func normalizeCategory(category string) string {
	code := strings.ToUpper(strings.TrimSpace(category))
	if dt, ok := categoryMapping[code]; ok {
		return string(dt)
	}
	return category
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02/01/2006"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
