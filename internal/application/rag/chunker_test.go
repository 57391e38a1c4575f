package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkDocument_EmptyText(t *testing.T) {
	chunker := NewChunker(1000, 200)

	assert.Nil(t, chunker.ChunkDocument("doc-1", "", nil))
	assert.Nil(t, chunker.ChunkDocument("doc-1", "   \n\n  ", nil))
}

func TestChunkDocument_ShortTextSingleChunk(t *testing.T) {
	chunker := NewChunker(1000, 200)
	text := "Sentence one. Sentence two. Sentence three."

	chunks := chunker.ChunkDocument("doc-1", text, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, "text", chunks[0].Metadata["section_type"])
	assert.Equal(t, "false", chunks[0].Metadata["has_numbers"])
}

func TestChunkDocument_ContiguousIndicesAndUniqueIDs(t *testing.T) {
	chunker := NewChunker(150, 40)
	sentence := "A empresa apresentou desempenho estável no período analisado. "
	text := strings.Repeat(sentence, 20)

	chunks := chunker.ChunkDocument("doc-1", text, map[string]string{"ticker": "PETR4"})

	require.Greater(t, len(chunks), 1)
	seen := make(map[string]bool)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Content)
		assert.False(t, seen[chunk.ChunkID], "chunk id repeated: %s", chunk.ChunkID)
		seen[chunk.ChunkID] = true
		assert.Equal(t, "PETR4", chunk.Metadata["ticker"])
	}
}

func TestChunkDocument_MetadataNotShared(t *testing.T) {
	chunker := NewChunker(150, 40)
	sentence := "O resultado operacional ficou dentro das expectativas do mercado. "
	text := strings.Repeat(sentence, 20)

	chunks := chunker.ChunkDocument("doc-1", text, map[string]string{"ticker": "VALE3"})

	require.Greater(t, len(chunks), 1)
	chunks[0].Metadata["ticker"] = "changed"
	assert.Equal(t, "VALE3", chunks[1].Metadata["ticker"])
}

func TestChunkDocument_PageMarkers(t *testing.T) {
	chunker := NewChunker(1000, 200)
	text := "Página 1\nConteúdo da primeira parte do documento.\nPágina 2\nConteúdo da segunda parte do documento."

	chunks := chunker.ChunkDocument("doc-1", text, nil)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Contains(t, chunks[0].Content, "primeira parte")
	assert.Equal(t, 2, chunks[1].PageNumber)
	assert.Contains(t, chunks[1].Content, "segunda parte")
}

func TestChunkDocument_FinancialSection(t *testing.T) {
	chunker := NewChunker(1000, 200)
	text := "A receita líquida atingiu R$ 1.234,56 milhões no trimestre."

	chunks := chunker.ChunkDocument("doc-1", text, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, "financial", chunks[0].Metadata["section_type"])
	assert.Equal(t, "true", chunks[0].Metadata["has_numbers"])
}

func TestChunkWithTables(t *testing.T) {
	chunker := NewChunker(1000, 200)
	text := "Resumo do documento."
	tables := []Table{
		{Markdown: "| Conta | Valor |\n| Caixa | 100 |\n", PageNumber: 3},
		{Data: [][]string{{"Conta", "Valor"}, {"Caixa", "100"}}},
		{},
	}

	chunks := chunker.ChunkWithTables("doc-1", text, tables, nil)

	// 空表格被跳过，表格片段索引接在正文之后
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, "table", chunks[1].Metadata["section_type"])
	assert.Equal(t, "true", chunks[1].Metadata["has_numbers"])
	assert.Equal(t, 3, chunks[1].PageNumber)
	assert.Contains(t, chunks[2].Content, "Caixa | 100")
}

func TestDetectSectionType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"table", "| Conta | Valor |\n| Caixa | 100 |\n", "table"},
		{"financial", "O patrimônio líquido cresceu no período.", "financial"},
		{"header", "DEMONSTRAÇÕES", "header"},
		{"plain", "Texto comum sem nada de especial.", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectSectionType(tt.text))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Primeira frase. Segunda frase! Terceira frase?")
	require.Len(t, got, 3)
	assert.Equal(t, "Primeira frase.", got[0])
	assert.Equal(t, "Segunda frase!", got[1])
	assert.Equal(t, "Terceira frase?", got[2])
}
