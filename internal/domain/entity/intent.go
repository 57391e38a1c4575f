package entity

// IntentType 查询意图类别
type IntentType string

const (
	IntentFinancialAnalysis IntentType = "financial_analysis"
	IntentMarketData        IntentType = "market_data"
	IntentNewsSentiment     IntentType = "news_sentiment"
	IntentDocumentSearch    IntentType = "document_search"
	IntentComparison        IntentType = "comparison"
	IntentGeneral           IntentType = "general"
)

// Valid 检查意图类别是否属于封闭集合
func (t IntentType) Valid() bool {
	switch t {
	case IntentFinancialAnalysis, IntentMarketData, IntentNewsSentiment,
		IntentDocumentSearch, IntentComparison, IntentGeneral:
		return true
	}
	return false
}

// QueryIntent 查询意图，由意图分类器产出后不再修改
type QueryIntent struct {
	IntentType         IntentType `json:"intent_type"`
	Tickers            []string   `json:"tickers,omitempty"`
	Companies          []string   `json:"companies,omitempty"`
	TimeRange          string     `json:"time_range,omitempty"`
	RequiresRetrieval  bool       `json:"requires_retrieval"`
	RequiresMarketData bool       `json:"requires_market_data"`
	RequiresNews       bool       `json:"requires_news"`
	Confidence         float64    `json:"confidence"`
}

// FallbackIntent 分类失败时的保守兜底意图
// 三个能力标志全部置真，置信度固定为 0.5
func FallbackIntent() *QueryIntent {
	return &QueryIntent{
		IntentType:         IntentGeneral,
		RequiresRetrieval:  true,
		RequiresMarketData: true,
		RequiresNews:       true,
		Confidence:         0.5,
	}
}

// Filter 检索过滤条件
type Filter struct {
	Ticker  string `json:"ticker,omitempty"`
	Company string `json:"company,omitempty"`
}

// Empty 检查过滤条件是否为空
func (f Filter) Empty() bool {
	return f.Ticker == "" && f.Company == ""
}
