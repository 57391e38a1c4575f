// Package rag 提供文档切分、向量检索与上下文组装能力
package rag

import (
	"context"
	"errors"

	"fin-research-api/internal/domain/entity"
)

// 检索常量
// KeywordBoostWeight 与 CharsPerToken 为固定经验值，可通过配置覆盖
const (
	KeywordBoostWeight = 0.2
	CharsPerToken      = 4

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 5
	DefaultRerankTopK   = 3

	// MinChunkChars 低于该长度的片段视为噪声直接丢弃
	MinChunkChars = 50
)

// ErrVectorDisabled 向量检索未配置
var ErrVectorDisabled = errors.New("vector index not configured")

// Embedder 向量化服务端口
type Embedder interface {
	// Embed 将单条文本向量化
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 批量向量化，输出顺序与输入一致
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex 向量索引端口
type VectorIndex interface {
	// Search 按向量相似度检索，返回带分数的片段
	Search(ctx context.Context, vector []float32, topK int, filter entity.Filter) ([]entity.DocumentChunk, error)

	// Upsert 写入带向量的片段，返回写入数量
	Upsert(ctx context.Context, chunks []entity.DocumentChunk) (int, error)

	// DeleteByDocument 删除文档的所有片段
	DeleteByDocument(ctx context.Context, documentID string) (bool, error)
}

// RerankResult 重排结果项
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Reranker 语义重排端口，可选配置
type Reranker interface {
	// Rerank 对候选文档按查询相关性重排，返回按相关性降序的索引
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
}

// Options 检索参数
type Options struct {
	TopK             int
	RerankTopK       int
	KeywordBoost     float64
	CharsPerToken    int
	MaxContextTokens int
}

// DefaultOptions 返回默认检索参数
func DefaultOptions() Options {
	return Options{
		TopK:             DefaultTopK,
		RerankTopK:       DefaultRerankTopK,
		KeywordBoost:     KeywordBoostWeight,
		CharsPerToken:    CharsPerToken,
		MaxContextTokens: 4000,
	}
}

// normalize 补齐未设置的参数
func (o Options) normalize() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RerankTopK <= 0 {
		o.RerankTopK = DefaultRerankTopK
	}
	if o.KeywordBoost <= 0 {
		o.KeywordBoost = KeywordBoostWeight
	}
	if o.CharsPerToken <= 0 {
		o.CharsPerToken = CharsPerToken
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = 4000
	}
	return o
}
