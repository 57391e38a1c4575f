// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"fin-research-api/internal/domain/entity"
)

// QueryHistoryRepository 查询历史仓储接口
type QueryHistoryRepository interface {
	// Create 记录一次查询历史
	Create(ctx context.Context, record *entity.QueryHistory) error

	// GetByQueryID 根据查询 ID 获取历史记录
	GetByQueryID(ctx context.Context, queryID string) (*entity.QueryHistory, error)

	// ListByUser 按用户分页查询历史记录（按时间倒序）
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.QueryHistory], error)
}
