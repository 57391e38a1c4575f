package workflow

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/internal/application/analyst"
	"fin-research-api/internal/application/collector"
	"fin-research-api/internal/application/intent"
	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/application/reporter"
	"fin-research-api/internal/config"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/domain/repository"
	"fin-research-api/pkg/errors"
	"fin-research-api/pkg/logger"
	"fin-research-api/pkg/metrics"
)

var tracer = otel.Tracer("workflow")

// maxSteps 单次运行的阶段执行上限，防止 report→analyze 回环失控
const maxSteps = 16

// fallbackContent 全链路失败时的最终响应内容
const fallbackContent = "Não foi possível processar sua consulta. Por favor, tente novamente."

// searchQueryHints 按意图类别追加到检索查询的提示词
var searchQueryHints = map[entity.IntentType]string{
	entity.IntentFinancialAnalysis: " resultados financeiros balanço demonstrações",
	entity.IntentComparison:        " indicadores métricas comparativo",
}

// hybridKeywords 混合检索使用的财务关键词表，按查询文本小写匹配
var hybridKeywords = []string{
	"receita", "lucro", "prejuízo", "ebitda", "margem", "dívida", "caixa",
	"ativo", "passivo", "patrimônio", "dividendo", "ação", "resultado",
	"trimestre", "semestre", "ano", "crescimento", "queda", "variação",
}

// Engine 编排状态机执行器
// 所有依赖在启动时显式注入，运行期间不访问任何全局可变状态
type Engine struct {
	classifier *intent.Classifier
	collector  *collector.Collector
	retriever  *rag.Engine
	analyst    *analyst.Analyst
	reporter   *reporter.Reporter
	history    repository.QueryHistoryRepository
	topK       int

	// stageTimeout 单阶段执行超时，0 表示不限制
	stageTimeout time.Duration
}

func NewEngine(
	classifier *intent.Classifier,
	col *collector.Collector,
	retriever *rag.Engine,
	an *analyst.Analyst,
	rep *reporter.Reporter,
	history repository.QueryHistoryRepository,
	ragCfg *config.RAGConfig,
	wfCfg *config.WorkflowConfig,
) *Engine {
	topK := rag.DefaultTopK
	if ragCfg != nil && ragCfg.TopK > 0 {
		topK = ragCfg.TopK
	}
	var stageTimeout time.Duration
	if wfCfg != nil {
		stageTimeout = wfCfg.StageTimeout
	}
	return &Engine{
		classifier:   classifier,
		collector:    col,
		retriever:    retriever,
		analyst:      an,
		reporter:     rep,
		history:      history,
		topK:         topK,
		stageTimeout: stageTimeout,
	}
}

// Graph 返回状态机的静态结构描述
func (e *Engine) Graph() GraphDescription {
	return Describe()
}

// Run 执行一次完整的研究查询
// 总是返回一个响应对象：全链路失败时返回降级响应，永不返回空
func (e *Engine) Run(ctx context.Context, queryText, userID string) (*entity.ResearchResponse, *State) {
	start := time.Now()
	query := entity.NewResearchQuery(queryText, userID)

	ctx = logger.WithContext(ctx, logger.QueryIDKey, query.QueryID)
	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(attribute.String("query_id", query.QueryID)))
	defer span.End()

	logger.Info(ctx, "工作流开始", "query_length", len(queryText))

	state := NewState(query)
	current := Next(StageStart, state)

	for step := 0; !current.Terminal() && step < maxSteps; step++ {
		state = e.runStage(ctx, current, state)
		current = Next(current, state)
	}
	if !current.Terminal() {
		current = StageErrorDone
	}

	response := state.Response
	if response == nil {
		response = entity.NewResearchResponse(query.QueryID, fallbackContent, entity.FormatPlain)
	}
	response.ProcessingTimeMs = float64(time.Since(start).Milliseconds())

	outcome := "completed"
	if current == StageErrorDone {
		outcome = "degraded"
	}
	intentLabel := "unknown"
	if state.Intent != nil {
		intentLabel = string(state.Intent.IntentType)
	}
	metrics.WorkflowRunsTotal.WithLabelValues(intentLabel, outcome).Inc()

	span.SetAttributes(
		attribute.String("workflow.outcome", outcome),
		attribute.StringSlice("workflow.stages", state.CompletedStageNames()),
		attribute.Int("workflow.errors", len(state.Errors)),
	)
	logger.Info(ctx, "工作流结束",
		"outcome", outcome,
		"stages", strings.Join(state.CompletedStageNames(), ","),
		"errors", len(state.Errors),
		"processing_time_ms", response.ProcessingTimeMs,
	)

	e.saveHistory(ctx, query, state, response)
	return response, state
}

// runStage 执行单个阶段，阶段内部的任何失败都被转化为状态中的结构化错误
func (e *Engine) runStage(ctx context.Context, stage Stage, state *State) *State {
	stageCtx := logger.WithContext(ctx, logger.StageKey, string(stage))
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, e.stageTimeout)
		defer cancel()
	}
	stageCtx, span := tracer.Start(stageCtx, "workflow.stage."+string(stage))
	defer span.End()

	start := time.Now()
	var next *State

	switch stage {
	case StageClassify:
		next = e.classify(stageCtx, state)
	case StageCollect:
		next = e.collect(stageCtx, state)
	case StageRetrieve:
		next = e.retrieve(stageCtx, state)
	case StageAnalyze:
		next = e.analyze(stageCtx, state)
	case StageReport:
		next = e.report(stageCtx, state)
	default:
		next = state.AddError(stage, ErrorKindStageFailure,
			errors.Newf(errors.CodeInternalError, "unknown stage %s", stage))
	}

	metrics.WorkflowStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if len(next.Errors) > len(state.Errors) {
		metrics.WorkflowStageErrors.WithLabelValues(string(stage)).Inc()
	}
	return next.Complete(stage)
}

// classify 意图分类阶段，分类器自身永不失败
func (e *Engine) classify(ctx context.Context, state *State) *State {
	result := e.classifier.Classify(ctx, state.Query.RawQuery)

	next := state.Clone()
	next.Intent = result
	next.Query.Intent = result
	if result.Confidence == 0.5 && result.IntentType == entity.IntentGeneral {
		// 兜底意图意味着分类产出不可用
		next.Errors = append(next.Errors, StageError{
			Stage:   StageClassify,
			Message: "classification fell back to default intent",
			Kind:    ErrorKindMalformedOutput,
		})
	}
	return next
}

func (e *Engine) collect(ctx context.Context, state *State) *State {
	if e.collector == nil {
		return state.AddError(StageCollect, ErrorKindStageFailure,
			errors.New(errors.CodeCollectionFailed).WithDetails("collector not configured"))
	}

	collected, err := e.collector.Collect(ctx, state.Intent)
	if err != nil {
		return state.AddError(StageCollect, ErrorKindStageFailure, err)
	}

	next := state.Clone()
	next.Collected = collected
	if collected.IsEmpty() && state.Intent != nil && len(state.Intent.Tickers) > 0 {
		next.Errors = append(next.Errors, StageError{
			Stage:   StageCollect,
			Message: "no data collected from any source",
			Kind:    ErrorKindPartialSource,
		})
	}
	return next
}

func (e *Engine) retrieve(ctx context.Context, state *State) *State {
	if e.retriever == nil {
		return state.AddError(StageRetrieve, ErrorKindStageFailure, rag.ErrVectorDisabled)
	}

	searchQuery := buildSearchQuery(state.Query.RawQuery, state.Intent)
	filter := buildFilter(state.Intent)
	keywords := extractKeywords(state.Query.RawQuery, state.Intent)

	var (
		result *entity.RetrievalContext
		err    error
	)
	if len(keywords) > 0 {
		result, err = e.retriever.HybridSearch(ctx, searchQuery, keywords, filter, e.topK)
	} else {
		result, err = e.retriever.Retrieve(ctx, searchQuery, filter, e.topK, true)
	}
	if err != nil {
		return state.AddError(StageRetrieve, ErrorKindStageFailure, err)
	}

	next := state.Clone()
	next.Retrieval = result
	return next
}

func (e *Engine) analyze(ctx context.Context, state *State) *State {
	if e.analyst == nil {
		return state.AddError(StageAnalyze, ErrorKindStageFailure,
			errors.New(errors.CodeAnalysisFailed).WithDetails("analyst not configured"))
	}

	result, err := e.analyst.Analyze(ctx, state.Query.RawQuery, state.Intent, state.Collected, state.Retrieval)
	if err != nil {
		return state.AddError(StageAnalyze, ErrorKindStageFailure, err)
	}

	next := state.Clone()
	next.Analysis = result
	return next
}

func (e *Engine) report(ctx context.Context, state *State) *State {
	if e.reporter == nil {
		return state.AddError(StageReport, ErrorKindStageFailure,
			errors.New(errors.CodeReportFailed).WithDetails("reporter not configured"))
	}

	response, err := e.reporter.Report(ctx, state.Query, state.Analysis, state.Collected)
	if err != nil {
		return state.AddError(StageReport, ErrorKindStageFailure, err)
	}

	next := state.Clone()
	next.Response = response
	return next
}

// saveHistory 异步落库查询历史，失败只记日志
func (e *Engine) saveHistory(ctx context.Context, query *entity.ResearchQuery, state *State, response *entity.ResearchResponse) {
	if e.history == nil {
		return
	}

	record := &entity.QueryHistory{
		QueryID:          query.QueryID,
		UserID:           query.UserID,
		RawQuery:         query.RawQuery,
		ResponseContent:  response.Content,
		CompletedStages:  state.CompletedStageNames(),
		ErrorCount:       len(state.Errors),
		ProcessingTimeMs: response.ProcessingTimeMs,
	}
	if state.Intent != nil {
		record.IntentType = string(state.Intent.IntentType)
		record.Tickers = state.Intent.Tickers
	}

	go func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.history.Create(saveCtx, record); err != nil {
			logger.Warn(saveCtx, "保存查询历史失败", "query_id", query.QueryID, "error", err.Error())
		}
	}()
}

// buildSearchQuery 按意图类别优化检索查询
func buildSearchQuery(rawQuery string, qi *entity.QueryIntent) string {
	if qi == nil {
		return rawQuery
	}
	if hint, ok := searchQueryHints[qi.IntentType]; ok {
		return rawQuery + hint
	}
	return rawQuery
}

// buildFilter 只有单一标的时才加结构化过滤，避免多标的查询漏召回
// 无股票代码但精确命名了一家公司时退回公司名过滤
func buildFilter(qi *entity.QueryIntent) entity.Filter {
	var f entity.Filter
	if qi == nil {
		return f
	}
	if len(qi.Tickers) == 1 {
		f.Ticker = qi.Tickers[0]
		return f
	}
	if len(qi.Tickers) == 0 && len(qi.Companies) == 1 {
		f.Company = qi.Companies[0]
	}
	return f
}

// extractKeywords 从查询中抽出财务关键词与股票代码，用于混合检索
func extractKeywords(rawQuery string, qi *entity.QueryIntent) []string {
	lower := strings.ToLower(rawQuery)

	var found []string
	for _, term := range hybridKeywords {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	if qi != nil {
		found = append(found, qi.Tickers...)
	}
	return found
}
