// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/domain/repository"
)

// DocumentRepository 文档元数据仓储实现
type DocumentRepository struct {
	client *Client
}

var _ repository.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// Create 创建文档元数据
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.DocumentMetadata) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(doc).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID 根据文档 ID 获取元数据
func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*entity.DocumentMetadata, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByID")
	defer span.End()

	var doc entity.DocumentMetadata
	err := r.client.db.WithContext(ctx).First(&doc, "document_id = ?", documentID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// List 按过滤条件分页查询文档
func (r *DocumentRepository) List(ctx context.Context, filter *repository.DocumentFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.DocumentMetadata], error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.List")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.DocumentMetadata{})

	// 应用过滤条件
	if filter != nil {
		if filter.Ticker != "" {
			query = query.Where("ticker = ?", filter.Ticker)
		}
		if filter.Company != "" {
			query = query.Where("company = ?", filter.Company)
		}
		if filter.DocumentType != "" {
			query = query.Where("document_type = ?", filter.DocumentType)
		}
	}

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	// 获取列表
	var docs []*entity.DocumentMetadata
	if err := query.Order("reference_date DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return repository.NewPagedResult(docs, total, pagination), nil
}

// UpdateChunkCount 更新文档的片段数量
func (r *DocumentRepository) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.UpdateChunkCount")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Model(&entity.DocumentMetadata{}).
		Where("document_id = ?", documentID).
		Update("chunk_count", count).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	return nil
}

// Delete 删除文档元数据
func (r *DocumentRepository) Delete(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Delete")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Delete(&entity.DocumentMetadata{}, "document_id = ?", documentID).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
