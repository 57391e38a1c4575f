package milvus

import (
	"context"
	"time"

	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/domain/entity"
)

// RAGVectorIndex 将 Milvus 仓储适配为检索引擎的向量索引端口
type RAGVectorIndex struct {
	repo *Repository
}

// NewRAGVectorIndex 创建向量索引适配器
func NewRAGVectorIndex(repo *Repository) *RAGVectorIndex {
	return &RAGVectorIndex{repo: repo}
}

var _ rag.VectorIndex = (*RAGVectorIndex)(nil)

// Search 按向量相似度检索
func (a *RAGVectorIndex) Search(ctx context.Context, vector []float32, topK int, filter entity.Filter) ([]entity.DocumentChunk, error) {
	if a == nil || a.repo == nil {
		return nil, rag.ErrVectorDisabled
	}

	records, err := a.repo.SearchChunks(ctx, &SearchParams{
		QueryVector: vector,
		TopK:        topK,
		Ticker:      filter.Ticker,
		Company:     filter.Company,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]entity.DocumentChunk, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		chunks = append(chunks, recordToChunk(rec))
	}
	return chunks, nil
}

// Upsert 写入带向量的片段
func (a *RAGVectorIndex) Upsert(ctx context.Context, chunks []entity.DocumentChunk) (int, error) {
	if a == nil || a.repo == nil {
		return 0, rag.ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	records := make([]*ChunkRecord, 0, len(chunks))
	for i := range chunks {
		records = append(records, chunkToRecord(&chunks[i]))
	}
	return a.repo.InsertChunks(ctx, records)
}

// DeleteByDocument 删除文档的所有片段
func (a *RAGVectorIndex) DeleteByDocument(ctx context.Context, documentID string) (bool, error) {
	if a == nil || a.repo == nil {
		return false, rag.ErrVectorDisabled
	}
	if err := a.repo.DeleteByDocument(ctx, documentID); err != nil {
		return false, err
	}
	return true, nil
}

// recordToChunk 存储结构转领域片段
func recordToChunk(rec *ChunkRecord) entity.DocumentChunk {
	metadata := map[string]string{
		"section_type": rec.SectionType,
	}
	if rec.Ticker != "" {
		metadata["ticker"] = rec.Ticker
	}
	if rec.Company != "" {
		metadata["company"] = rec.Company
	}
	if rec.DocumentType != "" {
		metadata["document_type"] = rec.DocumentType
	}
	if rec.ReferenceDate > 0 {
		metadata["reference_date"] = time.Unix(rec.ReferenceDate, 0).UTC().Format("2006-01-02")
	}

	return entity.DocumentChunk{
		ChunkID:    rec.ID,
		DocumentID: rec.DocumentID,
		Content:    rec.Content,
		PageNumber: int(rec.PageNumber),
		ChunkIndex: int(rec.ChunkIndex),
		Metadata:   metadata,
		Score:      rec.Score,
	}
}

// chunkToRecord 领域片段转存储结构
func chunkToRecord(chunk *entity.DocumentChunk) *ChunkRecord {
	rec := &ChunkRecord{
		ID:          chunk.ChunkID,
		Vector:      chunk.Embedding,
		DocumentID:  chunk.DocumentID,
		PageNumber:  int64(chunk.PageNumber),
		ChunkIndex:  int64(chunk.ChunkIndex),
		Content:     chunk.Content,
		SectionType: chunk.Metadata["section_type"],
		Ticker:      chunk.Metadata["ticker"],
		Company:     chunk.Metadata["company"],
	}
	rec.DocumentType = chunk.Metadata["document_type"]
	if v := chunk.Metadata["reference_date"]; v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			rec.ReferenceDate = t.Unix()
		}
	}
	return rec
}
