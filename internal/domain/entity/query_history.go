package entity

import (
	"time"
)

// QueryHistory 查询历史记录实体
type QueryHistory struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QueryID          string    `json:"query_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID           string    `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	RawQuery         string    `json:"raw_query" gorm:"type:text;not null"`
	IntentType       string    `json:"intent_type" gorm:"type:varchar(50);index"`
	Tickers          []string  `json:"tickers,omitempty" gorm:"type:jsonb;serializer:json"`
	ResponseContent  string    `json:"response_content,omitempty" gorm:"type:text"`
	CompletedStages  []string  `json:"completed_stages,omitempty" gorm:"type:jsonb;serializer:json"`
	ErrorCount       int       `json:"error_count" gorm:"default:0"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (QueryHistory) TableName() string {
	return "query_history"
}
