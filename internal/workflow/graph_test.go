package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/domain/entity"
)

func stateWithIntent(qi *entity.QueryIntent) *State {
	s := NewState(entity.NewResearchQuery("consulta", ""))
	s.Intent = qi
	return s
}

func TestNext_StartAlwaysClassifies(t *testing.T) {
	assert.Equal(t, StageClassify, Next(StageStart, NewState(nil)))
}

func TestNext_ClassifyRouting(t *testing.T) {
	tests := []struct {
		name   string
		intent *entity.QueryIntent
		want   Stage
	}{
		{
			"market data goes to collect",
			&entity.QueryIntent{RequiresMarketData: true},
			StageCollect,
		},
		{
			"tickers alone go to collect",
			&entity.QueryIntent{Tickers: []string{"PETR4"}},
			StageCollect,
		},
		{
			"retrieval only goes to retrieve",
			&entity.QueryIntent{RequiresRetrieval: true},
			StageRetrieve,
		},
		{
			"nothing needed goes direct to analyze",
			&entity.QueryIntent{},
			StageAnalyze,
		},
		{
			"nil intent collects conservatively",
			nil,
			StageCollect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(StageClassify, stateWithIntent(tt.intent)))
		})
	}
}

func TestNext_CollectRouting(t *testing.T) {
	withDocs := stateWithIntent(&entity.QueryIntent{RequiresRetrieval: true})
	assert.Equal(t, StageRetrieve, Next(StageCollect, withDocs))

	withoutDocs := stateWithIntent(&entity.QueryIntent{RequiresMarketData: true})
	assert.Equal(t, StageAnalyze, Next(StageCollect, withoutDocs))
}

func TestNext_LinearStages(t *testing.T) {
	s := NewState(nil)
	assert.Equal(t, StageAnalyze, Next(StageRetrieve, s))
	assert.Equal(t, StageReport, Next(StageAnalyze, s))
}

func TestNext_ReportGates(t *testing.T) {
	// 有响应内容即完成
	done := NewState(nil)
	done.Response = entity.NewResearchResponse("q-1", "relatório final", entity.FormatMarkdown)
	assert.Equal(t, StageDone, Next(StageReport, done))

	// 空响应且错误数超过上限进入 error_done
	failed := NewState(nil)
	for i := 0; i <= reportErrorCeiling; i++ {
		failed = failed.AddError(StageAnalyze, ErrorKindStageFailure, nil)
	}
	assert.Equal(t, StageErrorDone, Next(StageReport, failed))

	// 空响应但错误未超限回到 analyst 重试
	retry := NewState(nil).AddError(StageAnalyze, ErrorKindStageFailure, nil)
	assert.Equal(t, StageAnalyze, Next(StageReport, retry))
}

func TestNext_ReportCeilingIsExclusive(t *testing.T) {
	s := NewState(nil)
	for i := 0; i < reportErrorCeiling; i++ {
		s = s.AddError(StageReport, ErrorKindStageFailure, nil)
	}

	// 恰好等于上限仍然重试，必须严格大于才终止
	assert.Equal(t, StageAnalyze, Next(StageReport, s))
}

func TestNext_UnknownStage(t *testing.T) {
	assert.Equal(t, StageErrorDone, Next(Stage("bogus"), NewState(nil)))
}

func TestDescribe(t *testing.T) {
	desc := Describe()

	require.Len(t, desc.Nodes, 5)
	ids := make([]string, len(desc.Nodes))
	for i, n := range desc.Nodes {
		ids[i] = n.ID
	}
	assert.ElementsMatch(t, []string{"classify", "collect", "retrieve", "analyze", "report"}, ids)

	// start 边不导出，其余路由表中的边全部导出
	assert.Len(t, desc.Edges, len(transitions)-1)
	for _, e := range desc.Edges {
		assert.NotEqual(t, string(StageStart), e.From)
		assert.NotEmpty(t, e.Label)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	q := "como está a Petrobras?"

	assert.Equal(t, q, buildSearchQuery(q, nil))
	assert.Equal(t, q, buildSearchQuery(q, &entity.QueryIntent{IntentType: entity.IntentMarketData}))

	boosted := buildSearchQuery(q, &entity.QueryIntent{IntentType: entity.IntentFinancialAnalysis})
	assert.Contains(t, boosted, "balanço")
}

func TestBuildFilter_SingleTickerOnly(t *testing.T) {
	assert.Empty(t, buildFilter(nil).Ticker)
	assert.Empty(t, buildFilter(&entity.QueryIntent{Tickers: []string{"PETR4", "VALE3"}}).Ticker)
	assert.Equal(t, "PETR4", buildFilter(&entity.QueryIntent{Tickers: []string{"PETR4"}}).Ticker)
}

func TestBuildFilter_CompanyFallback(t *testing.T) {
	// 无股票代码但精确命名一家公司时按公司名过滤
	f := buildFilter(&entity.QueryIntent{Companies: []string{"Raízen"}})
	assert.Equal(t, "Raízen", f.Company)
	assert.Empty(t, f.Ticker)

	// 有代码时代码优先，公司名不参与过滤
	f = buildFilter(&entity.QueryIntent{Tickers: []string{"PETR4"}, Companies: []string{"Petrobras"}})
	assert.Equal(t, "PETR4", f.Ticker)
	assert.Empty(t, f.Company)

	// 多家公司不过滤，避免漏召回
	assert.True(t, buildFilter(&entity.QueryIntent{Companies: []string{"Petrobras", "Vale"}}).Empty())
}

func TestExtractKeywords(t *testing.T) {
	qi := &entity.QueryIntent{Tickers: []string{"PETR4"}}

	got := extractKeywords("qual foi a receita e o lucro no trimestre?", qi)

	assert.Contains(t, got, "receita")
	assert.Contains(t, got, "lucro")
	assert.Contains(t, got, "trimestre")
	assert.Contains(t, got, "PETR4")

	assert.Nil(t, extractKeywords("pergunta genérica", nil))
}
