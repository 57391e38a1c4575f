package entity

import (
	"time"

	"github.com/google/uuid"
)

// ResearchQuery 用户研究查询，创建后只读
type ResearchQuery struct {
	QueryID   string       `json:"query_id"`
	RawQuery  string       `json:"raw_query"`
	Intent    *QueryIntent `json:"intent,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewResearchQuery 创建新查询
func NewResearchQuery(rawQuery, userID string) *ResearchQuery {
	return &ResearchQuery{
		QueryID:   uuid.NewString(),
		RawQuery:  rawQuery,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}
