package entity

import (
	"time"

	"github.com/google/uuid"
)

// ResponseFormat 响应格式
type ResponseFormat string

const (
	FormatMarkdown  ResponseFormat = "markdown"
	FormatPlain     ResponseFormat = "plain"
	FormatExecutive ResponseFormat = "executive"
)

// ResearchResponse 工作流最终响应
type ResearchResponse struct {
	ResponseID       string          `json:"response_id"`
	QueryID          string          `json:"query_id"`
	Content          string          `json:"content"`
	Format           ResponseFormat  `json:"format"`
	Analysis         *AnalysisResult `json:"analysis,omitempty"`
	Sources          []string        `json:"sources,omitempty"`
	Disclaimers      []string        `json:"disclaimers,omitempty"`
	TokensUsed       int             `json:"tokens_used"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NewResearchResponse 创建响应
func NewResearchResponse(queryID, content string, format ResponseFormat) *ResearchResponse {
	return &ResearchResponse{
		ResponseID: uuid.NewString(),
		QueryID:    queryID,
		Content:    content,
		Format:     format,
		Timestamp:  time.Now().UTC(),
	}
}
