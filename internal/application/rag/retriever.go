package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/logger"
	"fin-research-api/pkg/metrics"
)

var retrieverTracer = otel.Tracer("rag.retriever")

// Engine 检索引擎
type Engine struct {
	embedder Embedder
	index    VectorIndex
	reranker Reranker
	opts     Options
}

// NewEngine 创建检索引擎
// reranker 可为 nil，此时退化为纯向量排序
func NewEngine(embedder Embedder, index VectorIndex, reranker Reranker, opts Options) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		opts:     opts.normalize(),
	}
}

// Retrieve 为查询检索相关片段
// 启用重排时召回 2 倍候选，重排后截断到 RerankTopK
func (e *Engine) Retrieve(ctx context.Context, query string, filter entity.Filter, topK int, rerank bool) (*entity.RetrievalContext, error) {
	ctx, span := retrieverTracer.Start(ctx, "rag.Retrieve",
		trace.WithAttributes(
			attribute.Int("top_k", topK),
			attribute.Bool("rerank", rerank),
		))
	defer span.End()

	if topK <= 0 {
		topK = e.opts.TopK
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		metrics.RetrievalTotal.WithLabelValues("error", strconv.FormatBool(rerank)).Inc()
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	searchK := topK
	if rerank {
		searchK = topK * 2
	}

	results, err := e.index.Search(ctx, queryEmbedding, searchK, filter)
	if err != nil {
		span.RecordError(err)
		metrics.RetrievalTotal.WithLabelValues("error", strconv.FormatBool(rerank)).Inc()
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	reranked := false
	if len(results) == 0 {
		metrics.RetrievalTotal.WithLabelValues("ok", "false").Inc()
		return &entity.RetrievalContext{
			TotalFound:     0,
			QueryEmbedding: queryEmbedding,
			SearchMetadata: buildSearchMetadata(filter, false),
		}, nil
	}

	totalFound := len(results)
	chunks := results

	if rerank && e.reranker != nil && len(chunks) > 1 {
		chunks = e.rerankChunks(ctx, query, chunks)
		if len(chunks) > e.opts.RerankTopK {
			chunks = chunks[:e.opts.RerankTopK]
		}
		reranked = true
	}

	logger.Info(ctx, "chunks retrieved",
		"query_length", len(query),
		"chunks_found", len(chunks),
		"reranked", reranked,
	)
	metrics.RetrievalTotal.WithLabelValues("ok", strconv.FormatBool(reranked)).Inc()
	metrics.RetrievalChunksReturned.Observe(float64(len(chunks)))

	return &entity.RetrievalContext{
		Chunks:         chunks,
		TotalFound:     totalFound,
		QueryEmbedding: queryEmbedding,
		SearchMetadata: buildSearchMetadata(filter, reranked),
	}, nil
}

// rerankChunks 调用重排服务重新排序，失败时保持向量顺序
func (e *Engine) rerankChunks(ctx context.Context, query string, chunks []entity.DocumentChunk) []entity.DocumentChunk {
	ctx, span := retrieverTracer.Start(ctx, "rag.rerankChunks",
		trace.WithAttributes(attribute.Int("candidates", len(chunks))))
	defer span.End()

	documents := make([]string, len(chunks))
	for i, chunk := range chunks {
		documents[i] = chunk.Content
	}

	results, err := e.reranker.Rerank(ctx, query, documents)
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "rerank failed, keeping vector order", "error", err.Error())
		return chunks
	}

	reordered := make([]entity.DocumentChunk, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(chunks) {
			continue
		}
		chunk := chunks[r.Index]
		chunk.Score = r.RelevanceScore
		reordered = append(reordered, chunk)
	}
	if len(reordered) == 0 {
		return chunks
	}
	return reordered
}

// RetrieveByTicker 按股票代码过滤检索
func (e *Engine) RetrieveByTicker(ctx context.Context, query, ticker string, topK int) (*entity.RetrievalContext, error) {
	return e.Retrieve(ctx, query, entity.Filter{Ticker: strings.ToUpper(ticker)}, topK, true)
}

// RetrieveByCompany 按公司名过滤检索
func (e *Engine) RetrieveByCompany(ctx context.Context, query, company string, topK int) (*entity.RetrievalContext, error) {
	return e.Retrieve(ctx, query, entity.Filter{Company: company}, topK, true)
}

// HybridSearch 语义 + 关键词混合检索
// 以向量分数加 KeywordBoost × 关键词命中率的线性融合重新排序
func (e *Engine) HybridSearch(ctx context.Context, query string, keywords []string, filter entity.Filter, topK int) (*entity.RetrievalContext, error) {
	ctx, span := retrieverTracer.Start(ctx, "rag.HybridSearch",
		trace.WithAttributes(attribute.Int("keywords", len(keywords))))
	defer span.End()

	semantic, err := e.Retrieve(ctx, query, filter, topK, false)
	if err != nil {
		return nil, err
	}

	if len(keywords) == 0 || len(semantic.Chunks) == 0 {
		return semantic, nil
	}

	boosted := make([]entity.DocumentChunk, len(semantic.Chunks))
	copy(boosted, semantic.Chunks)

	for i := range boosted {
		ratio := keywordMatchRatio(boosted[i].Content, keywords)
		boosted[i].Score += ratio * e.opts.KeywordBoost
	}

	// 稳定排序保证同分时顺序确定
	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].Score > boosted[j].Score
	})

	metadata := buildSearchMetadata(filter, false)
	metadata["keyword_boosted"] = "true"
	metadata["keywords"] = strings.Join(keywords, ",")

	return &entity.RetrievalContext{
		Chunks:         boosted,
		TotalFound:     semantic.TotalFound,
		QueryEmbedding: semantic.QueryEmbedding,
		SearchMetadata: metadata,
	}, nil
}

// keywordMatchRatio 计算关键词命中率（命中关键词数 / 总关键词数）
func keywordMatchRatio(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	contentLower := strings.ToLower(content)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(contentLower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// FormatContext 将检索结果按排序渲染为上下文文本
// 以 字符数/CharsPerToken 估算 token 开销，超出预算前停止追加，不截断片段
func (e *Engine) FormatContext(rc *entity.RetrievalContext, maxTokens int) string {
	if rc == nil || len(rc.Chunks) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = e.opts.MaxContextTokens
	}

	var parts []string
	currentTokens := 0

	for i, chunk := range rc.Chunks {
		chunkText := fmt.Sprintf("[Fonte %d]\n%s\n", i+1, chunk.Content)

		if len(chunk.Metadata) > 0 {
			var metaParts []string
			if v := chunk.Metadata["company"]; v != "" {
				metaParts = append(metaParts, "Empresa: "+v)
			}
			if v := chunk.Metadata["document_type"]; v != "" {
				metaParts = append(metaParts, "Tipo: "+v)
			}
			if v := chunk.Metadata["reference_date"]; v != "" {
				metaParts = append(metaParts, "Data: "+v)
			}
			if len(metaParts) > 0 {
				chunkText = fmt.Sprintf("[Fonte %d - %s]\n%s\n", i+1, strings.Join(metaParts, ", "), chunk.Content)
			}
		}

		chunkTokens := len(chunkText) / e.opts.CharsPerToken
		if currentTokens+chunkTokens > maxTokens {
			break
		}

		parts = append(parts, chunkText)
		currentTokens += chunkTokens
	}

	return strings.Join(parts, "\n---\n")
}

// buildSearchMetadata 构建检索元数据
func buildSearchMetadata(filter entity.Filter, reranked bool) map[string]string {
	metadata := map[string]string{
		"reranked": strconv.FormatBool(reranked),
	}
	if filter.Ticker != "" {
		metadata["filter_ticker"] = filter.Ticker
	}
	if filter.Company != "" {
		metadata["filter_company"] = filter.Company
	}
	return metadata
}
