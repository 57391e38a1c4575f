// Package workflow 实现研究查询的编排状态机
package workflow

import (
	"fin-research-api/internal/domain/entity"
)

// Stage 状态机阶段名
type Stage string

const (
	StageStart     Stage = "start"
	StageClassify  Stage = "classify"
	StageCollect   Stage = "collect"
	StageRetrieve  Stage = "retrieve"
	StageAnalyze   Stage = "analyze"
	StageReport    Stage = "report"
	StageDone      Stage = "done"
	StageErrorDone Stage = "error_done"
)

// Terminal 检查阶段是否为终止态
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageErrorDone
}

// ErrorKind 阶段错误类别
type ErrorKind string

const (
	ErrorKindTransient       ErrorKind = "transient"
	ErrorKindMalformedOutput ErrorKind = "malformed_output"
	ErrorKindPartialSource   ErrorKind = "partial_source"
	ErrorKindStageFailure    ErrorKind = "stage_failure"
)

// StageError 记录在状态中的结构化错误
type StageError struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// State 贯穿整个状态机的共享状态
// 阶段函数不原地修改，只通过 Clone 产出新状态（写时复制）
type State struct {
	Query           *entity.ResearchQuery
	Intent          *entity.QueryIntent
	Collected       *entity.CollectedData
	Retrieval       *entity.RetrievalContext
	Analysis        *entity.AnalysisResult
	Response        *entity.ResearchResponse
	CompletedStages []Stage
	Errors          []StageError
	Metadata        map[string]string
}

// NewState 创建运行初始状态
func NewState(query *entity.ResearchQuery) *State {
	return &State{
		Query:    query,
		Metadata: make(map[string]string),
	}
}

// Clone 复制状态，切片与元数据做浅层拷贝以保证追加互不影响
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s

	next.CompletedStages = make([]Stage, len(s.CompletedStages), len(s.CompletedStages)+1)
	copy(next.CompletedStages, s.CompletedStages)

	next.Errors = make([]StageError, len(s.Errors), len(s.Errors)+1)
	copy(next.Errors, s.Errors)

	next.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		next.Metadata[k] = v
	}
	return &next
}

// Complete 返回追加了完成阶段的新状态，重复阶段名不会追加
func (s *State) Complete(stage Stage) *State {
	next := s.Clone()
	for _, done := range next.CompletedStages {
		if done == stage {
			return next
		}
	}
	next.CompletedStages = append(next.CompletedStages, stage)
	return next
}

// AddError 返回追加了结构化错误的新状态
func (s *State) AddError(stage Stage, kind ErrorKind, err error) *State {
	next := s.Clone()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	next.Errors = append(next.Errors, StageError{
		Stage:   stage,
		Message: msg,
		Kind:    kind,
	})
	return next
}

// HasData 检查是否有任何收集到的数据可供分析
func (s *State) HasData() bool {
	if s.Collected != nil && !s.Collected.IsEmpty() {
		return true
	}
	return s.Retrieval != nil && len(s.Retrieval.Chunks) > 0
}

// CompletedStageNames 完成阶段名的字符串形式，用于持久化与响应
func (s *State) CompletedStageNames() []string {
	out := make([]string, len(s.CompletedStages))
	for i, stage := range s.CompletedStages {
		out[i] = string(stage)
	}
	return out
}
