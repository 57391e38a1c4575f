// Package analyst 基于收集到的数据与检索上下文生成结构化分析
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fin-research-api/internal/application/llmout"
	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/errors"
	"fin-research-api/pkg/logger"
)

var tracer = otel.Tracer("analyst")

const systemPrompt = `Você é um analista financeiro especializado no mercado brasileiro.
Sua função é analisar dados financeiros de forma objetiva e fundamentada.

Diretrizes:
1. Baseie suas análises exclusivamente nos dados fornecidos
2. Seja objetivo e evite especulações
3. Destaque tanto pontos positivos quanto riscos
4. Use métricas e números específicos quando disponíveis
5. Compare com benchmarks do setor quando relevante
6. Identifique tendências e padrões

Formato de resposta esperado (JSON):
{
    "summary": "Resumo executivo da análise",
    "key_findings": ["Achado 1", "Achado 2"],
    "financial_metrics": {"metric_name": "value"},
    "risks": ["Risco 1"],
    "opportunities": ["Oportunidade 1"],
    "sentiment": "positivo|neutro|negativo",
    "confidence_score": 0.8
}

Não faça recomendações de investimento. Foque em análise factual.`

// analysisContextTokens 拼入分析提示词的文档上下文预算
const analysisContextTokens = 3000

// Completer 分析阶段依赖的模型补全端口
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Analyst 分析器，把多源数据汇总成结构化分析结果
type Analyst struct {
	llm       Completer
	retriever *rag.Engine
}

func NewAnalyst(llm Completer, retriever *rag.Engine) *Analyst {
	return &Analyst{llm: llm, retriever: retriever}
}

type analysisPayload struct {
	Summary          string         `json:"summary"`
	KeyFindings      []string       `json:"key_findings"`
	FinancialMetrics map[string]any `json:"financial_metrics"`
	Risks            []string       `json:"risks"`
	Opportunities    []string       `json:"opportunities"`
	Sentiment        string         `json:"sentiment"`
	ConfidenceScore  *float64       `json:"confidence_score"`
}

// Analyze 生成结构化分析
// 模型调用失败返回错误交由上层重试；输出解析失败则降级为纯文本摘要
func (a *Analyst) Analyze(
	ctx context.Context,
	query string,
	intent *entity.QueryIntent,
	collected *entity.CollectedData,
	retrieval *entity.RetrievalContext,
) (*entity.AnalysisResult, error) {
	if a == nil || a.llm == nil {
		return nil, errors.New(errors.CodeAnalysisFailed).WithDetails("analyst not initialized")
	}

	ctx, span := tracer.Start(ctx, "analyst.Analyze")
	defer span.End()

	userMessage := a.buildContext(query, intent, collected, retrieval)

	raw, err := a.llm.Complete(ctx, systemPrompt, userMessage)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(errors.CodeAnalysisFailed, err)
	}

	result := parseAnalysis(ctx, raw)
	result.SourcesUsed = collectSources(collected, retrieval)

	span.SetAttributes(
		attribute.String("analysis.sentiment", result.Sentiment),
		attribute.Int("analysis.findings", len(result.KeyFindings)),
		attribute.Float64("analysis.confidence", result.ConfidenceScore),
	)
	logger.Info(ctx, "分析完成",
		"sentiment", result.Sentiment,
		"findings", len(result.KeyFindings),
		"risks", len(result.Risks),
		"confidence", result.ConfidenceScore,
	)
	return result, nil
}

func (a *Analyst) buildContext(
	query string,
	intent *entity.QueryIntent,
	collected *entity.CollectedData,
	retrieval *entity.RetrievalContext,
) string {
	var b strings.Builder

	b.WriteString("## Consulta do Usuário\n")
	b.WriteString(query)
	b.WriteString("\n")

	if intent != nil {
		b.WriteString("\n## Tipo de Análise\n")
		b.WriteString(string(intent.IntentType))
		b.WriteString("\n")
		if len(intent.Tickers) > 0 {
			b.WriteString("Tickers: ")
			b.WriteString(strings.Join(intent.Tickers, ", "))
			b.WriteString("\n")
		}
	}

	if collected != nil {
		if len(collected.MarketData) > 0 {
			b.WriteString("\n## Dados de Mercado\n")
			for _, md := range collected.MarketData {
				fmt.Fprintf(&b, "\n**%s - %s**\n", md.Ticker, md.CompanyName)
				fmt.Fprintf(&b, "- Preço Atual: R$ %.2f\n", md.CurrentPrice)
				fmt.Fprintf(&b, "- Variação: %.2f%%\n", md.ChangePercent)
				fmt.Fprintf(&b, "- Volume: %d\n", md.Volume)
				if md.MarketCap > 0 {
					fmt.Fprintf(&b, "- Market Cap: R$ %.0f\n", md.MarketCap)
				}
				if md.PERatio > 0 {
					fmt.Fprintf(&b, "- P/E: %.2f\n", md.PERatio)
				}
				if md.DividendYield > 0 {
					fmt.Fprintf(&b, "- Dividend Yield: %.2f%%\n", md.DividendYield*100)
				}
			}
		}

		if len(collected.NewsItems) > 0 {
			b.WriteString("\n## Notícias Recentes\n")
			for i, news := range collected.NewsItems {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "- **%s** (%s, %s)\n", news.Title, news.Source, news.PublishedAt.Format("02/01/2006"))
			}
		}

		if len(collected.Filings) > 0 {
			b.WriteString("\n## Documentos Regulatórios Disponíveis\n")
			for i, f := range collected.Filings {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "- %s - %s (%s)\n", f.Category, f.Subject, f.PublishedAt.Format("02/01/2006"))
			}
		}
	}

	if retrieval != nil && len(retrieval.Chunks) > 0 {
		b.WriteString("\n## Informações de Documentos\n")
		if a.retriever != nil {
			b.WriteString(a.retriever.FormatContext(retrieval, analysisContextTokens))
			b.WriteString("\n")
		} else {
			for i, chunk := range retrieval.Chunks {
				if i >= 5 {
					break
				}
				content := chunk.Content
				if len(content) > 500 {
					content = content[:500] + "..."
				}
				fmt.Fprintf(&b, "\n[Documento %d]\n%s\n", i+1, content)
			}
		}
	}

	b.WriteString("\n## Instruções\n")
	b.WriteString("Com base nas informações acima, forneça uma análise financeira completa em formato JSON.\n")
	b.WriteString("Inclua todos os campos solicitados no formato de resposta.")

	return b.String()
}

// parseAnalysis 解析模型输出，解析失败时降级为纯文本摘要
func parseAnalysis(ctx context.Context, raw string) *entity.AnalysisResult {
	var payload analysisPayload
	if err := llmout.Decode(raw, &payload); err != nil {
		logger.Warn(ctx, "分析输出解析失败，降级为文本摘要", "error", err.Error())
		summary := strings.TrimSpace(raw)
		if len(summary) > 500 {
			summary = summary[:500]
		}
		if summary == "" {
			summary = "Análise não disponível"
		}
		return &entity.AnalysisResult{
			Summary:         summary,
			Sentiment:       "neutro",
			ConfidenceScore: 0.5,
		}
	}

	result := &entity.AnalysisResult{
		Summary:          payload.Summary,
		KeyFindings:      payload.KeyFindings,
		FinancialMetrics: stringifyMetrics(payload.FinancialMetrics),
		Risks:            payload.Risks,
		Opportunities:    payload.Opportunities,
		Sentiment:        payload.Sentiment,
		ConfidenceScore:  0.7,
	}
	if payload.ConfidenceScore != nil {
		result.ConfidenceScore = *payload.ConfidenceScore
	}
	if result.Summary == "" {
		result.Summary = "Análise não disponível"
	}
	if result.Sentiment == "" {
		result.Sentiment = "neutro"
	}
	return result
}

func stringifyMetrics(metrics map[string]any) map[string]string {
	if len(metrics) == 0 {
		return nil
	}
	out := make(map[string]string, len(metrics))
	for k, v := range metrics {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// collectSources 汇总分析用到的数据来源
func collectSources(collected *entity.CollectedData, retrieval *entity.RetrievalContext) []string {
	var sources []string
	if collected != nil {
		sources = append(sources, collected.Sources...)
	}
	if retrieval != nil {
		seen := make(map[string]struct{})
		for _, s := range sources {
			seen[s] = struct{}{}
		}
		for _, chunk := range retrieval.Chunks {
			company := chunk.Metadata["company"]
			if company == "" {
				continue
			}
			docType := chunk.Metadata["document_type"]
			if docType == "" {
				docType = "Documento"
			}
			source := company + " - " + docType
			if _, ok := seen[source]; ok {
				continue
			}
			seen[source] = struct{}{}
			sources = append(sources, source)
		}
	}
	return sources
}
