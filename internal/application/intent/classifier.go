// Package intent 负责查询意图分类与股票代码抽取
package intent

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/application/llmout"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/logger"
)

var tracer = otel.Tracer("intent")

// tickerPattern B3 股票代码：四个字母加一到两位数字
var tickerPattern = regexp.MustCompile(`\b([A-Z]{4}[0-9]{1,2})\b`)

// companyPatterns 常见公司名称到代码的静态映射，小写匹配
var companyPatterns = map[string][]string{
	"petrobras":       {"PETR4", "PETR3"},
	"vale":            {"VALE3"},
	"itau":            {"ITUB4", "ITUB3"},
	"itaú":            {"ITUB4", "ITUB3"},
	"bradesco":        {"BBDC4", "BBDC3"},
	"banco do brasil": {"BBAS3"},
	"ambev":           {"ABEV3"},
	"weg":             {"WEGE3"},
	"localiza":        {"RENT3"},
	"renner":          {"LREN3"},
	"magazine luiza":  {"MGLU3"},
	"magalu":          {"MGLU3"},
	"b3":              {"B3SA3"},
	"suzano":          {"SUZB3"},
	"jbs":             {"JBSS3"},
	"gerdau":          {"GGBR4"},
	"csn":             {"CSNA3"},
}

const systemPrompt = `Você é um assistente especializado em análise de consultas financeiras.
Analise a pergunta do usuário e determine o tipo de intenção, as empresas mencionadas,
o período relevante e as fontes de dados necessárias.

Retorne sua análise em formato JSON com a seguinte estrutura:
{
    "intent_type": "financial_analysis|market_data|news_sentiment|document_search|comparison|general",
    "tickers": ["TICKER1", "TICKER2"],
    "companies": ["Nome da Empresa"],
    "time_range": "current|1d|1w|1m|3m|6m|1y|ytd",
    "requires_retrieval": true,
    "requires_market_data": true,
    "requires_news": false,
    "confidence": 0.9
}

Regras:
- financial_analysis: situação financeira, balanços, resultados
- market_data: cotações, preços, variações
- news_sentiment: notícias, sentimento de mercado
- document_search: busca em documentos regulatórios
- comparison: comparações entre empresas ou períodos
- general: perguntas gerais sobre o mercado

Em companies, liste os nomes das empresas mencionadas mesmo quando o ticker
não for conhecido.
requires_retrieval deve ser true se a pergunta requer informações de documentos
como balanços, relatórios trimestrais ou fatos relevantes.
requires_market_data deve ser true se a pergunta envolve cotações ou indicadores de mercado.
requires_news deve ser true se a pergunta envolve notícias recentes ou sentimento.`

// Completer 意图分类依赖的模型补全端口
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Classifier 查询意图分类器
// Classify 永不失败：模型不可用或输出不可解析时回退到保守兜底意图
type Classifier struct {
	llm Completer
}

func NewClassifier(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

type intentPayload struct {
	IntentType         string   `json:"intent_type"`
	Tickers            []string `json:"tickers"`
	Companies          []string `json:"companies"`
	TimeRange          string   `json:"time_range"`
	RequiresRetrieval  *bool    `json:"requires_retrieval"`
	RequiresMarketData *bool    `json:"requires_market_data"`
	RequiresNews       *bool    `json:"requires_news"`
	Confidence         *float64 `json:"confidence"`
}

// Classify 分析查询意图
func (c *Classifier) Classify(ctx context.Context, query string) *entity.QueryIntent {
	ctx, span := tracer.Start(ctx, "intent.Classify",
		trace.WithAttributes(attribute.Int("query.length", len(query))))
	defer span.End()

	extracted := ExtractTickers(query)

	if c == nil || c.llm == nil {
		return fallbackWith(extracted)
	}

	raw, err := c.llm.Complete(ctx, systemPrompt,
		"Analise a seguinte consulta financeira:\n\n"+query)
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "意图分类模型调用失败，使用兜底意图", "error", err.Error())
		return fallbackWith(extracted)
	}

	var payload intentPayload
	if err := llmout.Decode(raw, &payload); err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "意图分类输出解析失败，使用兜底意图", "error", err.Error())
		return fallbackWith(extracted)
	}

	result := c.buildIntent(&payload, extracted)

	span.SetAttributes(
		attribute.String("intent.type", string(result.IntentType)),
		attribute.StringSlice("intent.tickers", result.Tickers),
		attribute.Float64("intent.confidence", result.Confidence),
	)
	logger.Info(ctx, "查询意图分类完成",
		"intent_type", string(result.IntentType),
		"tickers", strings.Join(result.Tickers, ","),
		"requires_retrieval", result.RequiresRetrieval,
		"requires_market_data", result.RequiresMarketData,
		"requires_news", result.RequiresNews,
	)
	return result
}

func (c *Classifier) buildIntent(payload *intentPayload, extracted []string) *entity.QueryIntent {
	intentType := entity.IntentType(strings.ToLower(strings.TrimSpace(payload.IntentType)))
	if !intentType.Valid() {
		intentType = entity.IntentGeneral
	}

	result := &entity.QueryIntent{
		IntentType:         intentType,
		Tickers:            mergeTickers(extracted, payload.Tickers),
		Companies:          cleanCompanies(payload.Companies),
		TimeRange:          payload.TimeRange,
		RequiresRetrieval:  boolOr(payload.RequiresRetrieval, true),
		RequiresMarketData: boolOr(payload.RequiresMarketData, true),
		RequiresNews:       boolOr(payload.RequiresNews, false),
		Confidence:         floatOr(payload.Confidence, 0.8),
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return result
}

// ExtractTickers 从查询文本中抽取股票代码：正则匹配加公司名映射
func ExtractTickers(query string) []string {
	var tickers []string

	for _, m := range tickerPattern.FindAllStringSubmatch(strings.ToUpper(query), -1) {
		tickers = append(tickers, m[1])
	}

	lower := strings.ToLower(query)
	for company, companyTickers := range companyPatterns {
		if strings.Contains(lower, company) {
			tickers = append(tickers, companyTickers...)
		}
	}

	return dedupSorted(tickers)
}

func fallbackWith(tickers []string) *entity.QueryIntent {
	intent := entity.FallbackIntent()
	intent.Tickers = tickers
	return intent
}

func mergeTickers(groups ...[]string) []string {
	var all []string
	for _, g := range groups {
		for _, t := range g {
			t = strings.ToUpper(strings.TrimSpace(t))
			if tickerPattern.MatchString(t) {
				all = append(all, t)
			}
		}
	}
	return dedupSorted(all)
}

// cleanCompanies 去掉空白与大小写重复，保留模型给出的顺序
func cleanCompanies(names []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func dedupSorted(tickers []string) []string {
	if len(tickers) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
