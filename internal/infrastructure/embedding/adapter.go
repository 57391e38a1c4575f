package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/application/rag"
	einoobs "fin-research-api/internal/observability/eino"
)

var tracer = otel.Tracer("embedding")

// RAGEmbedder 将 Eino Embedder 适配为检索引擎的向量化端口
// dimension 为部署固定的向量维度，与向量索引配置一致
type RAGEmbedder struct {
	embedder  embedding.Embedder
	provider  string
	dimension int
}

// NewRAGEmbedder 创建向量化适配器
func NewRAGEmbedder(embedder embedding.Embedder, provider string, dimension int) *RAGEmbedder {
	return &RAGEmbedder{embedder: embedder, provider: provider, dimension: dimension}
}

var _ rag.Embedder = (*RAGEmbedder)(nil)

// Embed 向量化单条文本
func (e *RAGEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化，输出顺序与输入一致
func (e *RAGEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "embedding.EmbedBatch",
		trace.WithAttributes(attribute.Int("batch_size", len(texts))))
	defer span.End()

	raw, err := e.embedder.EmbedStrings(einoobs.WithProvider(ctx, e.provider), texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(raw), len(texts))
	}

	vectors := make([][]float32, len(raw))
	for i, vec := range raw {
		if e.dimension > 0 && len(vec) != e.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), e.dimension)
		}
		out := make([]float32, len(vec))
		for j, v := range vec {
			out[j] = float32(v)
		}
		vectors[i] = out
	}
	return vectors, nil
}
