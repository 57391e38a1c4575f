package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/domain/entity"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeIndex struct {
	chunks     []entity.DocumentChunk
	lastTopK   int
	lastFilter entity.Filter
	err        error
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, topK int, filter entity.Filter) ([]entity.DocumentChunk, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.chunks) {
		return f.chunks[:topK], nil
	}
	return f.chunks, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []entity.DocumentChunk) (int, error) {
	return len(chunks), nil
}

func (f *fakeIndex) DeleteByDocument(ctx context.Context, documentID string) (bool, error) {
	return true, nil
}

type fakeReranker struct {
	results []RerankResult
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func testChunks(contents ...string) []entity.DocumentChunk {
	chunks := make([]entity.DocumentChunk, len(contents))
	for i, c := range contents {
		chunks[i] = entity.DocumentChunk{
			ChunkID: "chunk-" + string(rune('a'+i)),
			Content: c,
			Score:   float64(len(contents)-i) * 0.1,
		}
	}
	return chunks
}

func TestRetrieve_NoRerank(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("primeiro", "segundo")}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	rc, err := engine.Retrieve(context.Background(), "lucro da empresa", entity.Filter{Ticker: "PETR4"}, 5, false)

	require.NoError(t, err)
	assert.Len(t, rc.Chunks, 2)
	assert.Equal(t, 2, rc.TotalFound)
	assert.Equal(t, 5, index.lastTopK)
	assert.Equal(t, "PETR4", index.lastFilter.Ticker)
	assert.Equal(t, "false", rc.SearchMetadata["reranked"])
	assert.Equal(t, "PETR4", rc.SearchMetadata["filter_ticker"])
}

func TestRetrieve_EmbedError(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{err: errors.New("boom")}, &fakeIndex{}, nil, DefaultOptions())

	rc, err := engine.Retrieve(context.Background(), "consulta", entity.Filter{}, 5, false)

	require.Error(t, err)
	assert.Nil(t, rc)
}

func TestRetrieve_EmptyResults(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, nil, DefaultOptions())

	rc, err := engine.Retrieve(context.Background(), "consulta", entity.Filter{}, 5, true)

	require.NoError(t, err)
	assert.Empty(t, rc.Chunks)
	assert.Equal(t, 0, rc.TotalFound)
}

func TestRetrieve_RerankDoublesCandidatesAndTruncates(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("a", "b", "c", "d", "e", "f", "g", "h")}
	reranker := &fakeReranker{results: []RerankResult{
		{Index: 3, RelevanceScore: 0.9},
		{Index: 0, RelevanceScore: 0.8},
		{Index: 1, RelevanceScore: 0.7},
		{Index: 2, RelevanceScore: 0.6},
	}}
	engine := NewEngine(&fakeEmbedder{}, index, reranker, DefaultOptions())

	rc, err := engine.Retrieve(context.Background(), "consulta", entity.Filter{}, 3, true)

	require.NoError(t, err)
	assert.Equal(t, 6, index.lastTopK)
	require.Len(t, rc.Chunks, DefaultRerankTopK)
	assert.Equal(t, "d", rc.Chunks[0].Content)
	assert.Equal(t, 0.9, rc.Chunks[0].Score)
	assert.Equal(t, "true", rc.SearchMetadata["reranked"])
}

func TestRetrieve_RerankFailureKeepsVectorOrder(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("primeiro", "segundo", "terceiro")}
	reranker := &fakeReranker{err: errors.New("rerank unavailable")}
	engine := NewEngine(&fakeEmbedder{}, index, reranker, DefaultOptions())

	rc, err := engine.Retrieve(context.Background(), "consulta", entity.Filter{}, 3, true)

	require.NoError(t, err)
	require.Len(t, rc.Chunks, 3)
	assert.Equal(t, "primeiro", rc.Chunks[0].Content)
	assert.Equal(t, "segundo", rc.Chunks[1].Content)
}

func TestRetrieveByTicker_UppercasesAndFilters(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("primeiro", "segundo")}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	rc, err := engine.RetrieveByTicker(context.Background(), "balanço anual", "petr4", 3)

	require.NoError(t, err)
	require.Len(t, rc.Chunks, 2)
	assert.Equal(t, "PETR4", index.lastFilter.Ticker)
	assert.Equal(t, "PETR4", rc.SearchMetadata["filter_ticker"])
	// 重排候选召回 2 倍
	assert.Equal(t, 6, index.lastTopK)
}

func TestRetrieveByCompany_Filters(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("primeiro")}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	rc, err := engine.RetrieveByCompany(context.Background(), "fatos relevantes", "Petrobras", 3)

	require.NoError(t, err)
	assert.Equal(t, "Petrobras", index.lastFilter.Company)
	assert.Equal(t, "Petrobras", rc.SearchMetadata["filter_company"])
}

func TestHybridSearch_KeywordBoostReorders(t *testing.T) {
	index := &fakeIndex{chunks: []entity.DocumentChunk{
		{ChunkID: "a", Content: "texto genérico sem termos relevantes", Score: 0.50},
		{ChunkID: "b", Content: "receita e lucro cresceram no período", Score: 0.45},
	}}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	rc, err := engine.HybridSearch(context.Background(), "resultado", []string{"receita", "lucro"}, entity.Filter{}, 5)

	require.NoError(t, err)
	require.Len(t, rc.Chunks, 2)
	// 0.45 + 1.0*0.2 > 0.50
	assert.Equal(t, "b", rc.Chunks[0].ChunkID)
	assert.InDelta(t, 0.65, rc.Chunks[0].Score, 1e-9)
	assert.Equal(t, "a", rc.Chunks[1].ChunkID)
	assert.Equal(t, "true", rc.SearchMetadata["keyword_boosted"])
}

func TestHybridSearch_Idempotent(t *testing.T) {
	index := &fakeIndex{chunks: []entity.DocumentChunk{
		{ChunkID: "a", Content: "receita em alta no trimestre", Score: 0.50},
		{ChunkID: "b", Content: "texto genérico", Score: 0.50},
		{ChunkID: "c", Content: "lucro recorde e receita estável", Score: 0.40},
	}}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	first, err := engine.HybridSearch(context.Background(), "resultado", []string{"receita", "lucro"}, entity.Filter{}, 5)
	require.NoError(t, err)
	second, err := engine.HybridSearch(context.Background(), "resultado", []string{"receita", "lucro"}, entity.Filter{}, 5)
	require.NoError(t, err)

	require.Len(t, second.Chunks, len(first.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ChunkID, second.Chunks[i].ChunkID)
		assert.Equal(t, first.Chunks[i].Score, second.Chunks[i].Score)
	}
}

func TestHybridSearch_NoKeywordsReturnsSemantic(t *testing.T) {
	index := &fakeIndex{chunks: testChunks("primeiro", "segundo")}
	engine := NewEngine(&fakeEmbedder{}, index, nil, DefaultOptions())

	rc, err := engine.HybridSearch(context.Background(), "consulta", nil, entity.Filter{}, 5)

	require.NoError(t, err)
	assert.Equal(t, "primeiro", rc.Chunks[0].Content)
	assert.NotContains(t, rc.SearchMetadata, "keyword_boosted")
}

func TestKeywordMatchRatio(t *testing.T) {
	assert.Equal(t, 0.0, keywordMatchRatio("qualquer texto", nil))
	assert.Equal(t, 0.5, keywordMatchRatio("receita cresceu", []string{"receita", "dívida"}))
	assert.Equal(t, 1.0, keywordMatchRatio("RECEITA e Lucro", []string{"receita", "lucro"}))
}

func TestFormatContext_Empty(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, nil, DefaultOptions())

	assert.Equal(t, "", engine.FormatContext(nil, 100))
	assert.Equal(t, "", engine.FormatContext(&entity.RetrievalContext{}, 100))
}

func TestFormatContext_RespectsTokenBudget(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, nil, DefaultOptions())
	rc := &entity.RetrievalContext{Chunks: []entity.DocumentChunk{
		{Content: strings.Repeat("a", 200)},
		{Content: strings.Repeat("b", 200)},
		{Content: strings.Repeat("c", 200)},
	}}

	// 每个片段约 (200+12)/4 = 53 tokens，预算只容纳前两个
	out := engine.FormatContext(rc, 110)

	assert.Contains(t, out, "[Fonte 1]")
	assert.Contains(t, out, "[Fonte 2]")
	assert.NotContains(t, out, "[Fonte 3]")
	assert.NotContains(t, out, "ccc")
}

func TestFormatContext_IncludesChunkMetadata(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, nil, DefaultOptions())
	rc := &entity.RetrievalContext{Chunks: []entity.DocumentChunk{
		{Content: "conteúdo", Metadata: map[string]string{
			"company":       "Petrobras",
			"document_type": "annual_report",
		}},
	}}

	out := engine.FormatContext(rc, 0)

	assert.Contains(t, out, "Empresa: Petrobras")
	assert.Contains(t, out, "Tipo: annual_report")
	assert.Contains(t, out, "conteúdo")
}
