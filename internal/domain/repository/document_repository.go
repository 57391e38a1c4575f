// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"fin-research-api/internal/domain/entity"
)

// DocumentFilter 文档过滤条件
type DocumentFilter struct {
	Ticker       string
	Company      string
	DocumentType entity.DocumentType
}

// DocumentRepository 文档元数据仓储接口
type DocumentRepository interface {
	// Create 创建文档元数据
	Create(ctx context.Context, doc *entity.DocumentMetadata) error

	// GetByID 根据文档 ID 获取元数据
	GetByID(ctx context.Context, documentID string) (*entity.DocumentMetadata, error)

	// List 按过滤条件分页查询文档
	List(ctx context.Context, filter *DocumentFilter, pagination Pagination) (*PagedResult[*entity.DocumentMetadata], error)

	// UpdateChunkCount 更新文档的片段数量
	UpdateChunkCount(ctx context.Context, documentID string, count int) error

	// Delete 删除文档元数据
	Delete(ctx context.Context, documentID string) error
}
