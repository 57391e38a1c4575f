package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/domain/entity"
)

type fakeCompleter struct {
	output string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return f.output, f.err
}

func TestClassify_Success(t *testing.T) {
	llm := &fakeCompleter{output: `{
		"intent_type": "market_data",
		"tickers": ["PETR4"],
		"companies": ["Petrobras"],
		"time_range": "1d",
		"requires_retrieval": false,
		"requires_market_data": true,
		"requires_news": false,
		"confidence": 0.95
	}`}
	classifier := NewClassifier(llm)

	intent := classifier.Classify(context.Background(), "qual a cotação da PETR4 hoje?")

	require.NotNil(t, intent)
	assert.Equal(t, entity.IntentMarketData, intent.IntentType)
	assert.Equal(t, []string{"PETR4"}, intent.Tickers)
	assert.Equal(t, []string{"Petrobras"}, intent.Companies)
	assert.Equal(t, "1d", intent.TimeRange)
	assert.False(t, intent.RequiresRetrieval)
	assert.True(t, intent.RequiresMarketData)
	assert.Equal(t, 0.95, intent.Confidence)
}

func TestClassify_FencedOutput(t *testing.T) {
	llm := &fakeCompleter{output: "```json\n{\"intent_type\": \"news_sentiment\", \"requires_news\": true}\n```"}
	classifier := NewClassifier(llm)

	intent := classifier.Classify(context.Background(), "notícias sobre a Vale")

	assert.Equal(t, entity.IntentNewsSentiment, intent.IntentType)
	assert.True(t, intent.RequiresNews)
	// 字段缺失时采用保守默认值
	assert.True(t, intent.RequiresRetrieval)
	assert.True(t, intent.RequiresMarketData)
	assert.Equal(t, 0.8, intent.Confidence)
	// 正文中的公司名依然被抽取
	assert.Equal(t, []string{"VALE3"}, intent.Tickers)
}

func TestClassify_LLMErrorFallsBack(t *testing.T) {
	classifier := NewClassifier(&fakeCompleter{err: errors.New("timeout")})

	intent := classifier.Classify(context.Background(), "análise da PETR4")

	assert.Equal(t, entity.IntentGeneral, intent.IntentType)
	assert.True(t, intent.RequiresRetrieval)
	assert.True(t, intent.RequiresMarketData)
	assert.True(t, intent.RequiresNews)
	assert.Equal(t, 0.5, intent.Confidence)
	assert.Equal(t, []string{"PETR4"}, intent.Tickers)
}

func TestClassify_GarbageOutputFallsBack(t *testing.T) {
	classifier := NewClassifier(&fakeCompleter{output: "desculpe, não entendi a pergunta"})

	intent := classifier.Classify(context.Background(), "como está o mercado?")

	assert.Equal(t, entity.IntentGeneral, intent.IntentType)
	assert.Equal(t, 0.5, intent.Confidence)
	assert.Empty(t, intent.Tickers)
}

func TestClassify_NilCompleter(t *testing.T) {
	classifier := NewClassifier(nil)

	intent := classifier.Classify(context.Background(), "qualquer consulta")

	require.NotNil(t, intent)
	assert.Equal(t, entity.IntentGeneral, intent.IntentType)
}

func TestClassify_InvalidIntentTypeAndConfidenceClamp(t *testing.T) {
	llm := &fakeCompleter{output: `{"intent_type": "nonsense", "confidence": 3.5}`}
	classifier := NewClassifier(llm)

	intent := classifier.Classify(context.Background(), "consulta")

	assert.Equal(t, entity.IntentGeneral, intent.IntentType)
	assert.Equal(t, 1.0, intent.Confidence)
}

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"explicit ticker", "cotação da PETR4", []string{"PETR4"}},
		{"lowercase ticker", "como está petr4 hoje", []string{"PETR4"}},
		{"company name", "resultado da Petrobras", []string{"PETR3", "PETR4"}},
		{"mixed and deduped", "compare PETR4 com a petrobras e a vale", []string{"PETR3", "PETR4", "VALE3"}},
		{"none", "como está o mercado hoje?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.query))
		})
	}
}

func TestCleanCompanies(t *testing.T) {
	got := cleanCompanies([]string{" Petrobras ", "", "petrobras", "Vale"})
	assert.Equal(t, []string{"Petrobras", "Vale"}, got)
}

func TestMergeTickers_DropsInvalidCodes(t *testing.T) {
	got := mergeTickers([]string{"PETR4"}, []string{"vale3", "INVALID", "Petrobras", "BBDC4"})
	assert.Equal(t, []string{"BBDC4", "PETR4", "VALE3"}, got)
}
