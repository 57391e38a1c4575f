// Package collector 并行采集外部数据源并汇总为结构化数据
package collector

import (
	"context"
	"time"

	"fin-research-api/internal/domain/entity"
)

// MarketDataSource 行情数据端口
type MarketDataSource interface {
	// Quote 获取单只股票的实时行情
	Quote(ctx context.Context, ticker string) (*entity.MarketData, error)
}

// NewsSource 新闻数据端口
type NewsSource interface {
	// Search 按股票代码检索近期新闻
	Search(ctx context.Context, tickers []string, daysBack int) ([]entity.NewsItem, error)
}

// FilingsSource 监管披露文件端口
type FilingsSource interface {
	// ListFilings 列出某只股票的披露文件，year 为 0 时不限年份
	ListFilings(ctx context.Context, ticker string, year int) ([]entity.Filing, error)
}

// Result 单次数据源调用的结果封装
type Result[T any] struct {
	Success    bool
	Data       T
	Err        error
	Source     string
	DurationMs int64
}

// RetryPolicy 指数退避重试策略
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
}

// DefaultRetryPolicy 默认策略：最多 3 次，等待 1s 起倍增，上限 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		MinWait:     time.Second,
		MaxWait:     10 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.MinWait <= 0 {
		p.MinWait = time.Second
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	return p
}
