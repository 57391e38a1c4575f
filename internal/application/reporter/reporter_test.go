package reporter

import (
	"context"
	"errors"
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

func TestDetermineFormat(t *testing.T) {
	tests := []struct {
		query string
		want  entity.ResponseFormat
	}{
		{"me dê um resumo da Petrobras", entity.FormatExecutive},
		{"uma resposta breve sobre a Vale", entity.FormatExecutive},
		{"algo rápido sobre o mercado", entity.FormatExecutive},
		{"análise completa da Petrobras", entity.FormatMarkdown},
		{"", entity.FormatMarkdown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetermineFormat(tt.query), "query=%q", tt.query)
	}
}

func TestReport_MarkdownWithFooter(t *testing.T) {
	llm := &fakeCompleter{output: "## Análise\nA empresa apresentou bom desempenho."}
	r := NewReporter(llm)
	query := entity.NewResearchQuery("análise da Petrobras", "user-1")
	analysis := &entity.AnalysisResult{
		Summary:     "Desempenho sólido",
		Sentiment:   "positivo",
		SourcesUsed: []string{"market_data", "Petrobras - annual_report"},
	}

	resp, err := r.Report(context.Background(), query, analysis, nil)

	require.NoError(t, err)
	assert.Equal(t, entity.FormatMarkdown, resp.Format)
	assert.Contains(t, resp.Content, "bom desempenho")
	assert.Contains(t, resp.Content, "**Fontes utilizadas:**")
	assert.Contains(t, resp.Content, "Petrobras - annual_report")
	assert.Contains(t, resp.Content, Disclaimers[0])
	assert.Equal(t, Disclaimers, resp.Disclaimers)
	assert.Equal(t, analysis.SourcesUsed, resp.Sources)
	assert.Contains(t, llm.lastPrompt, "Desempenho sólido")
}

func TestReport_ExecutiveSkipsFooter(t *testing.T) {
	llm := &fakeCompleter{output: "Resumo direto."}
	r := NewReporter(llm)
	query := entity.NewResearchQuery("resumo da Vale", "")

	resp, err := r.Report(context.Background(), query, &entity.AnalysisResult{Summary: "ok"}, nil)

	require.NoError(t, err)
	assert.Equal(t, entity.FormatExecutive, resp.Format)
	assert.Equal(t, "Resumo direto.", resp.Content)
	assert.NotContains(t, resp.Content, "Aviso Legal")
}

func TestReport_NilAnalysisUsesFallback(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("should not be called")}
	r := NewReporter(llm)
	query := entity.NewResearchQuery("análise da PETR4", "")
	collected := entity.NewCollectedData()
	collected.MarketData = append(collected.MarketData, entity.MarketData{
		Ticker:       "PETR4",
		CompanyName:  "Petrobras",
		CurrentPrice: 32.5,
	})

	resp, err := r.Report(context.Background(), query, nil, collected)

	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Não foi possível realizar uma análise completa")
	assert.Contains(t, resp.Content, "PETR4")
	assert.Contains(t, resp.Content, "R$ 32.50")
	assert.Empty(t, llm.lastPrompt)
}

func TestReport_LLMError(t *testing.T) {
	r := NewReporter(&fakeCompleter{err: errors.New("provider down")})
	query := entity.NewResearchQuery("análise", "")

	resp, err := r.Report(context.Background(), query, &entity.AnalysisResult{Summary: "ok"}, nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, apperrors.CodeReportFailed, apperrors.CodeOf(err))
}

func TestReport_NilQuery(t *testing.T) {
	r := NewReporter(&fakeCompleter{})

	resp, err := r.Report(context.Background(), nil, nil, nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, apperrors.CodeInvalidParams, apperrors.CodeOf(err))
}

func TestAddFooter_LimitsSources(t *testing.T) {
	sources := []string{"a", "b", "c", "d", "e", "f", "g"}

	out := addFooter("conteúdo", sources)

	assert.Contains(t, out, "- e\n")
	assert.NotContains(t, out, "- f\n")
	assert.NotContains(t, out, "- g\n")
}

func TestBuildPrompt_EmptySections(t *testing.T) {
	analysis := &entity.AnalysisResult{Summary: "resumo", Sentiment: "neutro"}

	prompt := buildPrompt("pergunta", analysis, entity.FormatMarkdown)

	assert.Contains(t, prompt, "N/A")
	assert.Contains(t, prompt, "Dados de mercado")
	assert.Contains(t, prompt, "Markdown")
}
