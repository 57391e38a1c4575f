// Package reporter 把分析结果整理为面向用户的最终响应
package reporter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/errors"
	"fin-research-api/pkg/logger"
)

var tracer = otel.Tracer("reporter")

// Disclaimers 每个响应固定携带的免责声明
var Disclaimers = []string{
	"Esta análise é apenas informativa e não constitui recomendação de investimento.",
	"Resultados passados não garantem resultados futuros.",
	"Consulte um profissional qualificado antes de tomar decisões de investimento.",
}

const systemPrompt = `Você é um redator especializado em relatórios financeiros.
Sua função é transformar análises técnicas em textos claros e acessíveis.

Diretrizes:
1. Use linguagem clara e profissional
2. Estruture a resposta de forma lógica
3. Destaque os pontos mais importantes
4. Inclua dados numéricos quando relevantes
5. Seja conciso mas completo
6. Adapte o tom ao contexto da pergunta

Sempre inclua:
- Resposta direta à pergunta
- Principais insights
- Contexto relevante
- Fontes utilizadas`

var formatInstructions = map[entity.ResponseFormat]string{
	entity.FormatMarkdown:  "Use formatação Markdown com títulos (##), listas (-) e **negrito** para destaques.",
	entity.FormatPlain:     "Use texto simples sem formatação especial.",
	entity.FormatExecutive: "Seja extremamente conciso. Máximo 3-4 parágrafos curtos.",
}

// Completer 报告阶段依赖的模型补全端口
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Reporter 响应生成器
type Reporter struct {
	llm Completer
}

func NewReporter(llm Completer) *Reporter {
	return &Reporter{llm: llm}
}

// DetermineFormat 根据查询措辞选择响应格式，默认 Markdown
func DetermineFormat(query string) entity.ResponseFormat {
	lower := strings.ToLower(query)
	for _, term := range []string{"resumo", "breve", "rápido", "executive"} {
		if strings.Contains(lower, term) {
			return entity.FormatExecutive
		}
	}
	return entity.FormatMarkdown
}

// Report 生成最终响应
// analysis 为空时不调用模型，直接用已收集的数据拼降级响应
func (r *Reporter) Report(
	ctx context.Context,
	query *entity.ResearchQuery,
	analysis *entity.AnalysisResult,
	collected *entity.CollectedData,
) (*entity.ResearchResponse, error) {
	if r == nil || r.llm == nil {
		return nil, errors.New(errors.CodeReportFailed).WithDetails("reporter not initialized")
	}
	if query == nil {
		return nil, errors.New(errors.CodeInvalidParams).WithDetails("query is required")
	}

	ctx, span := tracer.Start(ctx, "reporter.Report")
	defer span.End()

	format := DetermineFormat(query.RawQuery)

	var content string
	if analysis != nil {
		generated, err := r.llm.Complete(ctx, systemPrompt, buildPrompt(query.RawQuery, analysis, format))
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(errors.CodeReportFailed, err)
		}
		content = generated
		if format == entity.FormatMarkdown {
			content = addFooter(content, analysis.SourcesUsed)
		}
	} else {
		content = fallbackContent(collected)
	}

	response := entity.NewResearchResponse(query.QueryID, content, format)
	response.Analysis = analysis
	response.Disclaimers = Disclaimers
	if analysis != nil {
		response.Sources = analysis.SourcesUsed
	}

	span.SetAttributes(
		attribute.String("response.format", string(format)),
		attribute.Int("response.length", len(content)),
	)
	logger.Info(ctx, "响应生成完成",
		"response_id", response.ResponseID,
		"format", string(format),
		"content_length", len(content),
	)
	return response, nil
}

func buildPrompt(query string, analysis *entity.AnalysisResult, format entity.ResponseFormat) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pergunta do usuário: %s\n\n", query)
	b.WriteString("## Análise Disponível\n\n")
	fmt.Fprintf(&b, "**Resumo:** %s\n\n", analysis.Summary)

	b.WriteString("**Principais Descobertas:**\n")
	b.WriteString(bulletList(analysis.KeyFindings))

	b.WriteString("\n**Métricas Financeiras:**\n")
	b.WriteString(formatMetrics(analysis.FinancialMetrics))

	b.WriteString("\n**Riscos Identificados:**\n")
	b.WriteString(bulletList(analysis.Risks))

	b.WriteString("\n**Oportunidades:**\n")
	b.WriteString(bulletList(analysis.Opportunities))

	fmt.Fprintf(&b, "\n**Sentimento Geral:** %s\n", analysis.Sentiment)

	sources := "Dados de mercado"
	if len(analysis.SourcesUsed) > 0 {
		sources = strings.Join(analysis.SourcesUsed, ", ")
	}
	fmt.Fprintf(&b, "\n**Fontes:** %s\n", sources)

	instructions, ok := formatInstructions[format]
	if !ok {
		instructions = formatInstructions[entity.FormatMarkdown]
	}
	b.WriteString("\n## Instruções de Formatação\n")
	b.WriteString(instructions)
	b.WriteString("\n\nGere uma resposta completa e bem estruturada que responda diretamente à pergunta do usuário.\n")
	b.WriteString("Inclua os dados mais relevantes da análise de forma natural no texto.")

	return b.String()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "N/A\n"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

func formatMetrics(metrics map[string]string) string {
	if len(metrics) == 0 {
		return "N/A\n"
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, metrics[k])
	}
	return b.String()
}

// addFooter 在 Markdown 响应末尾追加来源与免责声明
func addFooter(content string, sources []string) string {
	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\n---\n")

	if len(sources) > 0 {
		b.WriteString("**Fontes utilizadas:**\n")
		for i, source := range sources {
			if i >= 5 {
				break
			}
			b.WriteString("- ")
			b.WriteString(source)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n**Aviso Legal:**\n")
	b.WriteString(Disclaimers[0])
	return b.String()
}

// fallbackContent 分析缺失时的降级响应，直接呈现已收集的数据
func fallbackContent(collected *entity.CollectedData) string {
	var b strings.Builder
	b.WriteString("Não foi possível realizar uma análise completa para sua consulta.\n")

	if collected != nil && len(collected.MarketData) > 0 {
		b.WriteString("\n## Dados de Mercado Disponíveis\n")
		for _, md := range collected.MarketData {
			fmt.Fprintf(&b, "\n**%s - %s**\n", md.Ticker, md.CompanyName)
			fmt.Fprintf(&b, "- Preço: R$ %.2f\n", md.CurrentPrice)
			fmt.Fprintf(&b, "- Variação: %+.2f%%\n", md.ChangePercent)
		}
	}

	if collected != nil && len(collected.NewsItems) > 0 {
		b.WriteString("\n## Notícias Recentes\n")
		for i, news := range collected.NewsItems {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n", news.Title, news.Source)
		}
	}

	b.WriteString("\n---\n")
	b.WriteString("*Para uma análise mais detalhada, tente reformular sua pergunta.*")
	return b.String()
}
