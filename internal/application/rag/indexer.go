package rag

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/domain/repository"
	"fin-research-api/pkg/logger"
	"fin-research-api/pkg/metrics"
)

var indexerTracer = otel.Tracer("rag.indexer")

// Indexer 文档入库器：切分、向量化并写入向量索引与元数据库
type Indexer struct {
	chunker   *Chunker
	embedder  Embedder
	index     VectorIndex
	documents repository.DocumentRepository
	batchSize int
}

// NewIndexer 创建文档入库器
// documents 可为 nil，此时跳过元数据持久化
func NewIndexer(chunker *Chunker, embedder Embedder, index VectorIndex, documents repository.DocumentRepository, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		documents: documents,
		batchSize: batchSize,
	}
}

// IndexText 入库一篇文本文档，返回写入的片段数
func (idx *Indexer) IndexText(ctx context.Context, meta *entity.DocumentMetadata, text string, tables []Table) (int, error) {
	ctx, span := indexerTracer.Start(ctx, "rag.IndexText",
		trace.WithAttributes(attribute.String("document_id", meta.DocumentID)))
	defer span.End()

	chunkMeta := map[string]string{
		"company":        meta.Company,
		"ticker":         meta.Ticker,
		"document_type":  string(meta.DocumentType),
		"reference_date": meta.ReferenceDate.Format("2006-01-02"),
	}

	var chunks []entity.DocumentChunk
	if len(tables) > 0 {
		chunks = idx.chunker.ChunkWithTables(meta.DocumentID, text, tables, chunkMeta)
	} else {
		chunks = idx.chunker.ChunkDocument(meta.DocumentID, text, chunkMeta)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	// 分批向量化
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
		}

		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
	}

	count, err := idx.index.Upsert(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	if idx.documents != nil {
		meta.ChunkCount = count
		if err := idx.documents.Create(ctx, meta); err != nil {
			span.RecordError(err)
			return count, fmt.Errorf("chunks indexed but metadata persist failed: %w", err)
		}
	}

	logger.Info(ctx, "document indexed",
		"document_id", meta.DocumentID,
		"chunks", count,
		"ticker", meta.Ticker,
	)
	metrics.IndexedChunksTotal.Add(float64(count))
	span.SetAttributes(attribute.Int("chunks", count))

	return count, nil
}

// DeleteDocument 删除文档的向量片段与元数据
func (idx *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := indexerTracer.Start(ctx, "rag.DeleteDocument",
		trace.WithAttributes(attribute.String("document_id", documentID)))
	defer span.End()

	if _, err := idx.index.DeleteByDocument(ctx, documentID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	if idx.documents != nil {
		if err := idx.documents.Delete(ctx, documentID); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete document metadata: %w", err)
		}
	}

	logger.Info(ctx, "document deleted", "document_id", documentID)
	return nil
}
