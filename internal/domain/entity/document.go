// Package entity 定义领域实体
package entity

import (
	"time"
)

// DocumentType 财务文档类型
type DocumentType string

const (
	DocumentTypeBalanceSheet    DocumentType = "balance_sheet"
	DocumentTypeIncomeStatement DocumentType = "income_statement"
	DocumentTypeCashFlow        DocumentType = "cash_flow"
	DocumentTypeQuarterlyReport DocumentType = "quarterly_report"
	DocumentTypeAnnualReport    DocumentType = "annual_report"
	DocumentTypeEarningsRelease DocumentType = "earnings_release"
	DocumentTypeRelevantFact    DocumentType = "relevant_fact"
	DocumentTypePresentation    DocumentType = "presentation"
	DocumentTypeOther           DocumentType = "other"
)

// DocumentMetadata 文档元数据实体
type DocumentMetadata struct {
	DocumentID    string       `json:"document_id" gorm:"column:document_id;type:varchar(64);primaryKey"`
	Company       string       `json:"company" gorm:"type:varchar(255);index;not null"`
	Ticker        string       `json:"ticker" gorm:"type:varchar(16);index;not null"`
	DocumentType  DocumentType `json:"document_type" gorm:"type:varchar(50);index;not null"`
	ReferenceDate time.Time    `json:"reference_date" gorm:"index;not null"`
	UploadDate    time.Time    `json:"upload_date" gorm:"autoCreateTime"`
	SourceURL     string       `json:"source_url,omitempty" gorm:"type:text"`
	FileHash      string       `json:"file_hash,omitempty" gorm:"type:varchar(64);index"`
	PageCount     int          `json:"page_count,omitempty"`
	Language      string       `json:"language" gorm:"type:varchar(16);default:'pt-BR'"`
	ChunkCount    int          `json:"chunk_count" gorm:"default:0"`
}

// TableName 指定表名
func (DocumentMetadata) TableName() string {
	return "documents"
}

// DocumentChunk 文档片段，检索的基本单元
type DocumentChunk struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	PageNumber int               `json:"page_number,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Score      float64           `json:"score,omitempty"`
}
