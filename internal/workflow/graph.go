package workflow

// 终止判定的错误上限
const (
	// reportErrorCeiling 报告门控：错误数超过该值进入 error_done
	reportErrorCeiling = 5
)

// Transition 路由表的一条边：当前阶段满足谓词则转向目标阶段
// 同一出发阶段的多条边按声明顺序求值，取第一条命中的
type Transition struct {
	From      Stage
	Label     string
	Predicate func(s *State) bool
	To        Stage
}

// transitions 状态机的完整路由表
// 把条件路由做成数据而不是嵌套分支，便于单独测试
var transitions = []Transition{
	{
		From:  StageStart,
		Label: "always",
		To:    StageClassify,
	},
	{
		From:      StageClassify,
		Label:     "needs data",
		Predicate: needsCollection,
		To:        StageCollect,
	},
	{
		From:      StageClassify,
		Label:     "needs docs",
		Predicate: needsRetrieval,
		To:        StageRetrieve,
	},
	{
		From:  StageClassify,
		Label: "direct",
		To:    StageAnalyze,
	},
	{
		From:      StageCollect,
		Label:     "needs docs",
		Predicate: needsRetrieval,
		To:        StageRetrieve,
	},
	{
		From:  StageCollect,
		Label: "analyze",
		To:    StageAnalyze,
	},
	{
		From:  StageRetrieve,
		Label: "always",
		To:    StageAnalyze,
	},
	{
		From:  StageAnalyze,
		Label: "always",
		To:    StageReport,
	},
	{
		From:      StageReport,
		Label:     "complete",
		Predicate: hasResponse,
		To:        StageDone,
	},
	{
		From:      StageReport,
		Label:     "error ceiling",
		Predicate: exceededErrorCeiling,
		To:        StageErrorDone,
	},
	{
		From:  StageReport,
		Label: "retry",
		To:    StageAnalyze,
	},
}

// Next 根据路由表求下一个阶段，无命中时进入 error_done
func Next(current Stage, s *State) Stage {
	for _, t := range transitions {
		if t.From != current {
			continue
		}
		if t.Predicate == nil || t.Predicate(s) {
			return t.To
		}
	}
	return StageErrorDone
}

// needsCollection 意图需要行情/新闻数据，或显式提到了股票代码
func needsCollection(s *State) bool {
	if s.Intent == nil {
		return true
	}
	return s.Intent.RequiresMarketData || len(s.Intent.Tickers) > 0
}

func needsRetrieval(s *State) bool {
	if s.Intent == nil {
		return true
	}
	return s.Intent.RequiresRetrieval
}

func hasResponse(s *State) bool {
	return s.Response != nil && s.Response.Content != ""
}

func exceededErrorCeiling(s *State) bool {
	return len(s.Errors) > reportErrorCeiling
}

// GraphNode 图结构描述中的节点
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GraphEdge 图结构描述中的边
type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// GraphDescription 状态机的静态结构，用于诊断与可视化
type GraphDescription struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Describe 导出状态图的节点与边
func Describe() GraphDescription {
	nodes := []GraphNode{
		{ID: string(StageClassify), Label: "Intent Classifier"},
		{ID: string(StageCollect), Label: "Concurrent Collector"},
		{ID: string(StageRetrieve), Label: "Retrieval Engine"},
		{ID: string(StageAnalyze), Label: "Analyst"},
		{ID: string(StageReport), Label: "Reporter"},
	}

	edges := make([]GraphEdge, 0, len(transitions))
	for _, t := range transitions {
		if t.From == StageStart {
			continue
		}
		edges = append(edges, GraphEdge{
			From:  string(t.From),
			To:    string(t.To),
			Label: t.Label,
		})
	}
	return GraphDescription{Nodes: nodes, Edges: edges}
}
