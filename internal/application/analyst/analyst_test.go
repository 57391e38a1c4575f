package analyst

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/domain/entity"
	apperrors "fin-research-api/pkg/errors"
)

type fakeCompleter struct {
	output     string
	err        error
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.lastPrompt = userMessage
	return f.output, f.err
}

func TestAnalyze_StructuredOutput(t *testing.T) {
	llm := &fakeCompleter{output: `{
		"summary": "Empresa com balanço sólido",
		"key_findings": ["Receita em alta", "Dívida controlada"],
		"financial_metrics": {"receita": "R$ 10 bi", "margem": 0.35},
		"risks": ["Volatilidade do petróleo"],
		"opportunities": ["Expansão do pré-sal"],
		"sentiment": "positivo",
		"confidence_score": 0.9
	}`}
	a := NewAnalyst(llm, nil)
	collected := entity.NewCollectedData()
	collected.AddSource("market_data")

	result, err := a.Analyze(context.Background(), "análise da PETR4", nil, collected, nil)

	require.NoError(t, err)
	assert.Equal(t, "Empresa com balanço sólido", result.Summary)
	assert.Len(t, result.KeyFindings, 2)
	assert.Equal(t, "R$ 10 bi", result.FinancialMetrics["receita"])
	assert.Equal(t, "0.35", result.FinancialMetrics["margem"])
	assert.Equal(t, "positivo", result.Sentiment)
	assert.Equal(t, 0.9, result.ConfidenceScore)
	assert.Equal(t, []string{"market_data"}, result.SourcesUsed)
}

func TestAnalyze_UnparsableOutputDegrades(t *testing.T) {
	raw := "A empresa vai bem, mas não consigo estruturar isso. " + strings.Repeat("x", 600)
	a := NewAnalyst(&fakeCompleter{output: raw}, nil)

	result, err := a.Analyze(context.Background(), "consulta", nil, nil, nil)

	require.NoError(t, err)
	assert.Len(t, result.Summary, 500)
	assert.Equal(t, "neutro", result.Sentiment)
	assert.Equal(t, 0.5, result.ConfidenceScore)
}

func TestAnalyze_LLMError(t *testing.T) {
	a := NewAnalyst(&fakeCompleter{err: errors.New("provider down")}, nil)

	result, err := a.Analyze(context.Background(), "consulta", nil, nil, nil)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.CodeAnalysisFailed, apperrors.CodeOf(err))
}

func TestAnalyze_NotInitialized(t *testing.T) {
	var a *Analyst

	_, err := a.Analyze(context.Background(), "consulta", nil, nil, nil)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAnalysisFailed, apperrors.CodeOf(err))
}

func TestBuildContext_IncludesCollectedData(t *testing.T) {
	llm := &fakeCompleter{output: `{"summary": "ok"}`}
	a := NewAnalyst(llm, nil)
	intent := &entity.QueryIntent{IntentType: entity.IntentFinancialAnalysis, Tickers: []string{"PETR4"}}
	collected := entity.NewCollectedData()
	collected.MarketData = append(collected.MarketData, entity.MarketData{
		Ticker:       "PETR4",
		CompanyName:  "Petrobras",
		CurrentPrice: 32.5,
		PERatio:      4.2,
	})
	collected.NewsItems = append(collected.NewsItems, entity.NewsItem{Title: "Balanço divulgado", Source: "Valor"})
	retrieval := &entity.RetrievalContext{Chunks: []entity.DocumentChunk{{Content: "Trecho do relatório anual."}}}

	_, err := a.Analyze(context.Background(), "como está a Petrobras?", intent, collected, retrieval)

	require.NoError(t, err)
	assert.Contains(t, llm.lastPrompt, "como está a Petrobras?")
	assert.Contains(t, llm.lastPrompt, "financial_analysis")
	assert.Contains(t, llm.lastPrompt, "R$ 32.50")
	assert.Contains(t, llm.lastPrompt, "P/E: 4.20")
	assert.Contains(t, llm.lastPrompt, "Balanço divulgado")
	assert.Contains(t, llm.lastPrompt, "Trecho do relatório anual.")
}

func TestParseAnalysis_Defaults(t *testing.T) {
	result := parseAnalysis(context.Background(), `{"key_findings": ["algo"]}`)

	assert.Equal(t, "Análise não disponível", result.Summary)
	assert.Equal(t, "neutro", result.Sentiment)
	assert.Equal(t, 0.7, result.ConfidenceScore)
}

func TestCollectSources_MergesChunkMetadata(t *testing.T) {
	collected := entity.NewCollectedData()
	collected.AddSource("market_data")
	retrieval := &entity.RetrievalContext{Chunks: []entity.DocumentChunk{
		{Metadata: map[string]string{"company": "Petrobras", "document_type": "annual_report"}},
		{Metadata: map[string]string{"company": "Petrobras", "document_type": "annual_report"}},
		{Metadata: map[string]string{"company": "Vale"}},
		{Metadata: map[string]string{"document_type": "itr"}},
	}}

	sources := collectSources(collected, retrieval)

	assert.Equal(t, []string{
		"market_data",
		"Petrobras - annual_report",
		"Vale - Documento",
	}, sources)
}
