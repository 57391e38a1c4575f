// Package marketdata 提供行情数据源客户端
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
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

var tracer = otel.Tracer("marketdata")

// BrazilianSuffix B3 交易所股票在行情源中的后缀
const BrazilianSuffix = ".SA"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ collector.MarketDataSource = (*Client)(nil)

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

// NormalizeTicker 将股票代码归一化为行情源格式，裸代码补 .SA 后缀
func NormalizeTicker(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return ticker
	}
	if strings.HasSuffix(ticker, BrazilianSuffix) {
		return ticker
	}
	if strings.ContainsAny(ticker, ".^=") {
		return ticker
	}
	return ticker + BrazilianSuffix
}

type quoteResponse struct {
	LongName                   string   `json:"longName"`
	ShortName                  string   `json:"shortName"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketChangePercent float64  `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64    `json:"regularMarketVolume"`
	MarketCap                  float64  `json:"marketCap"`
	TrailingPE                 float64  `json:"trailingPE"`
	DividendYield              float64  `json:"dividendYield"`
	FiftyTwoWeekHigh           float64  `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64  `json:"fiftyTwoWeekLow"`
	Beta                       float64  `json:"beta"`
	Sector                     string   `json:"sector"`
	Industry                   string   `json:"industry"`
	Currency                   string   `json:"currency"`
	Exchange                   string   `json:"exchange"`
	PreviousClose              float64  `json:"previousClose"`
	RegularMarketOpen          float64  `json:"regularMarketOpen"`
	DayHigh                    float64  `json:"dayHigh"`
	DayLow                     float64  `json:"dayLow"`
	AverageVolume              int64    `json:"averageVolume"`
}

// Quote 获取单只股票的实时行情
func (c *Client) Quote(ctx context.Context, ticker string) (*entity.MarketData, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New(errors.CodeMarketDataError).WithDetails("market data client not initialized")
	}

	ctx, span := tracer.Start(ctx, "marketdata.Quote",
		trace.WithAttributes(attribute.String("ticker", ticker)))
	defer span.End()

	normalized := NormalizeTicker(ticker)

	u, err := url.Parse(c.baseURL + "/quote")
	if err != nil {
		return nil, errors.Wrap(errors.CodeMarketDataError, err)
	}
	q := u.Query()
	q.Set("symbol", normalized)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeMarketDataError, err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(errors.CodeMarketDataError, err, "quote request failed: ticker=%s", normalized).Transient()
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		appErr := errors.Newf(errors.CodeMarketDataError, "quote request failed: status=%d ticker=%s", httpResp.StatusCode, normalized)
		if isRetryableStatus(httpResp.StatusCode) {
			appErr = appErr.Transient()
		}
		span.RecordError(appErr)
		return nil, appErr
	}

	var resp quoteResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(errors.CodeMarketDataError, err)
	}

	if resp.RegularMarketPrice == nil {
		return nil, errors.Newf(errors.CodeMarketDataError, "no data found for ticker %s", ticker)
	}

	return c.toMarketData(ticker, &resp), nil
}

func (c *Client) toMarketData(ticker string, resp *quoteResponse) *entity.MarketData {
	name := resp.LongName
	if name == "" {
		name = resp.ShortName
	}
	if name == "" {
		name = strings.ToUpper(ticker)
	}

	additional := map[string]string{
		"currency":       resp.Currency,
		"exchange":       resp.Exchange,
		"previous_close": formatFloat(resp.PreviousClose),
		"open":           formatFloat(resp.RegularMarketOpen),
		"day_high":       formatFloat(resp.DayHigh),
		"day_low":        formatFloat(resp.DayLow),
		"avg_volume":     strconv.FormatInt(resp.AverageVolume, 10),
	}
	if additional["currency"] == "" {
		additional["currency"] = "BRL"
	}

	return &entity.MarketData{
		Ticker:           strings.ToUpper(strings.TrimSpace(ticker)),
		CompanyName:      name,
		CurrentPrice:     *resp.RegularMarketPrice,
		ChangePercent:    resp.RegularMarketChangePercent,
		Volume:           resp.RegularMarketVolume,
		MarketCap:        resp.MarketCap,
		PERatio:          resp.TrailingPE,
		DividendYield:    resp.DividendYield,
		FiftyTwoWeekHigh: resp.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  resp.FiftyTwoWeekLow,
		Beta:             resp.Beta,
		Sector:           resp.Sector,
		Industry:         resp.Industry,
		Timestamp:        time.Now().UTC(),
		AdditionalData:   additional,
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
