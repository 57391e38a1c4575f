// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
	dim    int
}

// NewRepository 创建向量检索仓储
// dim 为向量维度，必须与 Embedding 服务输出一致
func NewRepository(client *Client, dim int) *Repository {
	return &Repository{client: client, dim: dim}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int
	Ticker      string
	Company     string
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// buildFilterExpr 构建标量过滤表达式
func buildFilterExpr(ticker, company string) string {
	var parts []string
	if t := strings.TrimSpace(ticker); t != "" {
		parts = append(parts, fmt.Sprintf(`ticker == "%s"`, t))
	}
	if c := strings.TrimSpace(company); c != "" {
		parts = append(parts, fmt.Sprintf(`company == "%s"`, c))
	}
	return strings.Join(parts, " && ")
}

// SearchChunks 按向量相似度检索文档片段
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*ChunkRecord, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.Int("top_k", params.TopK),
			attribute.String("ticker", params.Ticker),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocumentChunks)
	filter := buildFilterExpr(params.Ticker, params.Company)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "document_id", "ticker", "company", "document_type",
			"reference_date", "page_number", "chunk_index", "section_type", "content"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	// 解析结果
	var records []*ChunkRecord
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			rec := &ChunkRecord{}

			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				rec.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("document_id").(*entity.ColumnVarChar); ok {
				rec.DocumentID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("ticker").(*entity.ColumnVarChar); ok {
				rec.Ticker = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("company").(*entity.ColumnVarChar); ok {
				rec.Company = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("document_type").(*entity.ColumnVarChar); ok {
				rec.DocumentType = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("reference_date").(*entity.ColumnInt64); ok {
				rec.ReferenceDate = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("page_number").(*entity.ColumnInt64); ok {
				rec.PageNumber = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("chunk_index").(*entity.ColumnInt64); ok {
				rec.ChunkIndex = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("section_type").(*entity.ColumnVarChar); ok {
				rec.SectionType = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("content").(*entity.ColumnVarChar); ok {
				rec.Content = col.Data()[i]
			}

			rec.Score = float64(result.Scores[i])
			records = append(records, rec)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(records)))
	return records, nil
}

// InsertChunks 插入文档片段
func (r *Repository) InsertChunks(ctx context.Context, records []*ChunkRecord) (int, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return 0, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("count", len(records))))
	defer span.End()

	if len(records) == 0 {
		return 0, nil
	}

	collName := r.client.CollectionName(CollectionDocumentChunks)

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	documentIDs := make([]string, len(records))
	tickers := make([]string, len(records))
	companies := make([]string, len(records))
	docTypes := make([]string, len(records))
	refDates := make([]int64, len(records))
	pageNumbers := make([]int64, len(records))
	chunkIndices := make([]int64, len(records))
	sectionTypes := make([]string, len(records))
	contents := make([]string, len(records))

	for i, rec := range records {
		ids[i] = rec.ID
		vectors[i] = rec.Vector
		documentIDs[i] = rec.DocumentID
		tickers[i] = rec.Ticker
		companies[i] = rec.Company
		docTypes[i] = rec.DocumentType
		refDates[i] = rec.ReferenceDate
		pageNumbers[i] = rec.PageNumber
		chunkIndices[i] = rec.ChunkIndex
		sectionTypes[i] = rec.SectionType
		contents[i] = rec.Content
	}

	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", r.dim, vectors),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("ticker", tickers),
		entity.NewColumnVarChar("company", companies),
		entity.NewColumnVarChar("document_type", docTypes),
		entity.NewColumnInt64("reference_date", refDates),
		entity.NewColumnInt64("page_number", pageNumbers),
		entity.NewColumnInt64("chunk_index", chunkIndices),
		entity.NewColumnVarChar("section_type", sectionTypes),
		entity.NewColumnVarChar("content", contents),
	)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	return len(records), nil
}

// DeleteByDocument 删除文档的所有片段
func (r *Repository) DeleteByDocument(ctx context.Context, documentID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "milvus.DeleteByDocument",
		trace.WithAttributes(attribute.String("document_id", documentID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocumentChunks)
	filter := fmt.Sprintf(`document_id == "%s"`, documentID)

	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// EnsureDocumentChunksCollection 确保 document_chunks 集合与索引可用（不存在则创建）
// 约束：不会做 drop/rebuild 等破坏性操作
func (r *Repository) EnsureDocumentChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionDocumentChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, DocumentChunksSchema(r.dim)); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入
		_ = r.CreateIndex(ctx, CollectionDocumentChunks)
	}

	return r.client.LoadCollection(ctx, CollectionDocumentChunks)
}
