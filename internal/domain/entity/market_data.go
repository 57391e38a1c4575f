package entity

import (
	"time"
)

// MarketData 单只股票的行情数据
type MarketData struct {
	Ticker           string            `json:"ticker"`
	CompanyName      string            `json:"company_name"`
	CurrentPrice     float64           `json:"current_price"`
	ChangePercent    float64           `json:"change_percent"`
	Volume           int64             `json:"volume"`
	MarketCap        float64           `json:"market_cap,omitempty"`
	PERatio          float64           `json:"pe_ratio,omitempty"`
	DividendYield    float64           `json:"dividend_yield,omitempty"`
	FiftyTwoWeekHigh float64           `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  float64           `json:"fifty_two_week_low,omitempty"`
	Beta             float64           `json:"beta,omitempty"`
	Sector           string            `json:"sector,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	AdditionalData   map[string]string `json:"additional_data,omitempty"`
}

// NewsItem 新闻条目
type NewsItem struct {
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	PublishedAt    time.Time `json:"published_at"`
	Summary        string    `json:"summary,omitempty"`
	SentimentScore float64   `json:"sentiment_score,omitempty"`
	RelevanceScore float64   `json:"relevance_score,omitempty"`
	Tickers        []string  `json:"tickers,omitempty"`
}

// Filing 监管披露文件条目
type Filing struct {
	Ticker      string    `json:"ticker"`
	Company     string    `json:"company,omitempty"`
	Category    string    `json:"category"`
	Subject     string    `json:"subject,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
