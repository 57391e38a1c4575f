package entity

// AnalysisResult 分析阶段的结构化产出
type AnalysisResult struct {
	Summary          string            `json:"summary"`
	KeyFindings      []string          `json:"key_findings,omitempty"`
	FinancialMetrics map[string]string `json:"financial_metrics,omitempty"`
	Risks            []string          `json:"risks,omitempty"`
	Opportunities    []string          `json:"opportunities,omitempty"`
	Sentiment        string            `json:"sentiment,omitempty"`
	ConfidenceScore  float64           `json:"confidence_score"`
	SourcesUsed      []string          `json:"sources_used,omitempty"`
}
