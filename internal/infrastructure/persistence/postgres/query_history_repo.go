// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/domain/repository"
)

// QueryHistoryRepository 查询历史仓储实现
type QueryHistoryRepository struct {
	client *Client
}

var _ repository.QueryHistoryRepository = (*QueryHistoryRepository)(nil)

// NewQueryHistoryRepository 创建查询历史仓储
func NewQueryHistoryRepository(client *Client) *QueryHistoryRepository {
	return &QueryHistoryRepository{client: client}
}

// Create 记录一次查询历史
func (r *QueryHistoryRepository) Create(ctx context.Context, record *entity.QueryHistory) error {
	ctx, span := tracer.Start(ctx, "postgres.QueryHistoryRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create query history: %w", err)
	}
	return nil
}

// GetByQueryID 根据查询 ID 获取历史记录
func (r *QueryHistoryRepository) GetByQueryID(ctx context.Context, queryID string) (*entity.QueryHistory, error) {
	ctx, span := tracer.Start(ctx, "postgres.QueryHistoryRepository.GetByQueryID")
	defer span.End()

	var record entity.QueryHistory
	err := r.client.db.WithContext(ctx).First(&record, "query_id = ?", queryID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	return &record, nil
}

// ListByUser 按用户分页查询历史记录
func (r *QueryHistoryRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.QueryHistory], error) {
	ctx, span := tracer.Start(ctx, "postgres.QueryHistoryRepository.ListByUser")
	defer span.End()

	query := r.client.db.WithContext(ctx).
		Model(&entity.QueryHistory{}).
		Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count query history: %w", err)
	}

	var records []*entity.QueryHistory
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list query history: %w", err)
	}

	return repository.NewPagedResult(records, total, pagination), nil
}
