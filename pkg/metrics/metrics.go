// Package metrics 提供 Prometheus 指标定义与注册
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fin_research"

// HTTP 请求指标
var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时分布",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 工作流指标
var (
	WorkflowStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_stage_duration_seconds",
			Help:      "工作流各阶段耗时分布",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	WorkflowStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_stage_errors_total",
			Help:      "工作流各阶段错误总数",
		},
		[]string{"stage"},
	)

	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "工作流执行总数",
		},
		[]string{"intent", "outcome"},
	)
)

// 数据收集指标
var (
	CollectorSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_source_requests_total",
			Help:      "各数据源收集请求总数",
		},
		[]string{"source", "status"},
	)

	CollectorSourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collector_source_duration_seconds",
			Help:      "各数据源收集耗时分布",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	CollectorCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_cache_hits_total",
			Help:      "数据收集缓存命中总数",
		},
		[]string{"source", "result"},
	)
)

// 检索指标
var (
	RetrievalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_requests_total",
			Help:      "向量检索请求总数",
		},
		[]string{"status", "reranked"},
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "向量检索耗时分布",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	RetrievalChunksReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_chunks_returned",
			Help:      "检索返回片段数分布",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)

// LLM 指标
var (
	LLMRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "大模型请求总数",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "大模型请求耗时分布",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "大模型 token 使用总数",
		},
		[]string{"provider", "model", "type"},
	)
)

// 索引指标
var (
	IndexedChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "已写入向量库的片段总数",
		},
	)
)
