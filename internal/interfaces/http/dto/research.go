package dto

import (
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/workflow"
)

// ResearchRequest 研究查询请求
type ResearchRequest struct {
	Query  string `json:"query" binding:"required,min=3,max=2000"`
	UserID string `json:"user_id,omitempty" binding:"omitempty,max=64"`
}

// ResearchResult 研究查询响应，附带运行审计信息
type ResearchResult struct {
	Response        *entity.ResearchResponse `json:"response"`
	CompletedStages []string                 `json:"completed_stages"`
	Errors          []workflow.StageError    `json:"errors,omitempty"`
}

// IndexDocumentRequest 文档索引请求
type IndexDocumentRequest struct {
	Ticker        string `json:"ticker" binding:"required,max=16"`
	Company       string `json:"company" binding:"required,max=256"`
	DocumentType  string `json:"document_type" binding:"required,max=50"`
	ReferenceDate string `json:"reference_date" binding:"omitempty,datetime=2006-01-02"`
	Content       string `json:"content" binding:"required,min=1"`
}

// IndexDocumentResult 文档索引结果
type IndexDocumentResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// SearchDocumentsResult 文档片段检索响应
type SearchDocumentsResult struct {
	Chunks     []entity.DocumentChunk `json:"chunks"`
	TotalFound int                    `json:"total_found"`
}

// QuoteResult 行情查询响应
type QuoteResult struct {
	Quote *entity.MarketData `json:"quote"`
}

// HistoryQuery 查询历史检索参数
type HistoryQuery struct {
	UserID   string `form:"user_id" binding:"required,max=64"`
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}
