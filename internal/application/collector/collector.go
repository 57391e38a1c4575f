package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fin-research-api/internal/config"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/infrastructure/persistence/redis"
	"fin-research-api/pkg/logger"
	"fin-research-api/pkg/metrics"
)

var tracer = otel.Tracer("collector")

// 数据源名称，写入 CollectedData.Sources 与指标标签
const (
	SourceMarketData = "market_data"
	SourceNews       = "news"
	SourceFilings    = "filings"
)

// Collector 并行采集行情、新闻与披露文件
// 任一数据源失败不会中断整体收集，失败的来源不出现在 Sources 中
type Collector struct {
	market  MarketDataSource
	news    NewsSource
	filings FilingsSource
	cache   *redis.Cache
	cfg     *config.SourcesConfig
	policy  RetryPolicy
}

func NewCollector(
	market MarketDataSource,
	news NewsSource,
	filings FilingsSource,
	cache *redis.Cache,
	cfg *config.SourcesConfig,
	workflowCfg *config.WorkflowConfig,
) *Collector {
	policy := DefaultRetryPolicy()
	if workflowCfg != nil {
		policy = RetryPolicy{
			MaxAttempts: workflowCfg.MaxRetries,
			MinWait:     workflowCfg.RetryMinWait,
			MaxWait:     workflowCfg.RetryMaxWait,
		}.normalize()
	}
	return &Collector{
		market:  market,
		news:    news,
		filings: filings,
		cache:   cache,
		cfg:     cfg,
		policy:  policy,
	}
}

// Collect 按查询意图并行收集所有需要的数据源
func (c *Collector) Collect(ctx context.Context, intent *entity.QueryIntent) (*entity.CollectedData, error) {
	if intent == nil {
		intent = entity.FallbackIntent()
	}

	ctx, span := tracer.Start(ctx, "collector.Collect",
		trace.WithAttributes(
			attribute.String("intent", string(intent.IntentType)),
			attribute.Int("tickers", len(intent.Tickers)),
		))
	defer span.End()

	collected := entity.NewCollectedData()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	if intent.RequiresMarketData && c.market != nil {
		for _, ticker := range intent.Tickers {
			ticker := ticker
			g.Go(func() error {
				c.collectQuote(gctx, ticker, collected, &mu)
				return nil
			})
		}
	}

	if intent.RequiresNews && c.news != nil && len(intent.Tickers) > 0 {
		g.Go(func() error {
			c.collectNews(gctx, intent, collected, &mu)
			return nil
		})
	}

	if intent.RequiresRetrieval && c.filings != nil {
		for _, ticker := range intent.Tickers {
			ticker := ticker
			g.Go(func() error {
				c.collectFilings(gctx, ticker, collected, &mu)
				return nil
			})
		}
	}

	// 所有分支都吞掉自身错误，Wait 仅用于同步
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("market_data", len(collected.MarketData)),
		attribute.Int("news_items", len(collected.NewsItems)),
		attribute.Int("filings", len(collected.Filings)),
		attribute.StringSlice("sources", collected.Sources),
	)
	logger.Info(ctx, "数据收集完成",
		"sources", strings.Join(collected.Sources, ","),
		"market_data", len(collected.MarketData),
		"news_items", len(collected.NewsItems),
		"filings", len(collected.Filings),
	)
	return collected, nil
}

func (c *Collector) collectQuote(ctx context.Context, ticker string, collected *entity.CollectedData, mu *sync.Mutex) {
	cacheKey := redis.BuildSourceCacheKey("quote", ticker)

	var cached entity.MarketData
	if c.cacheGet(ctx, SourceMarketData, cacheKey, &cached) {
		mu.Lock()
		collected.MarketData = append(collected.MarketData, cached)
		collected.AddSource(SourceMarketData)
		mu.Unlock()
		return
	}

	res := WithRetry(ctx, SourceMarketData, c.policy, func(ctx context.Context) (*entity.MarketData, error) {
		return c.market.Quote(ctx, ticker)
	})
	c.observe(SourceMarketData, res.Success, res.DurationMs)
	if !res.Success {
		logger.Warn(ctx, "行情数据收集失败", "ticker", ticker, "error", res.Err.Error())
		return
	}

	c.cacheSet(ctx, cacheKey, res.Data, c.sourceTTL(SourceMarketData))

	mu.Lock()
	collected.MarketData = append(collected.MarketData, *res.Data)
	collected.AddSource(SourceMarketData)
	mu.Unlock()
}

func (c *Collector) collectNews(ctx context.Context, intent *entity.QueryIntent, collected *entity.CollectedData, mu *sync.Mutex) {
	daysBack := daysBackFromTimeRange(intent.TimeRange)
	cacheKey := redis.BuildSourceCacheKey("news", strings.Join(intent.Tickers, ","))

	var cached []entity.NewsItem
	if c.cacheGet(ctx, SourceNews, cacheKey, &cached) {
		mu.Lock()
		collected.NewsItems = append(collected.NewsItems, cached...)
		collected.AddSource(SourceNews)
		mu.Unlock()
		return
	}

	res := WithRetry(ctx, SourceNews, c.policy, func(ctx context.Context) ([]entity.NewsItem, error) {
		return c.news.Search(ctx, intent.Tickers, daysBack)
	})
	c.observe(SourceNews, res.Success, res.DurationMs)
	if !res.Success {
		logger.Warn(ctx, "新闻数据收集失败", "error", res.Err.Error())
		return
	}

	c.cacheSet(ctx, cacheKey, res.Data, c.sourceTTL(SourceNews))

	mu.Lock()
	collected.NewsItems = append(collected.NewsItems, res.Data...)
	collected.AddSource(SourceNews)
	mu.Unlock()
}

func (c *Collector) collectFilings(ctx context.Context, ticker string, collected *entity.CollectedData, mu *sync.Mutex) {
	cacheKey := redis.BuildSourceCacheKey("filings", ticker)

	var cached []entity.Filing
	if c.cacheGet(ctx, SourceFilings, cacheKey, &cached) {
		mu.Lock()
		collected.Filings = append(collected.Filings, cached...)
		collected.AddSource(SourceFilings)
		mu.Unlock()
		return
	}

	res := WithRetry(ctx, SourceFilings, c.policy, func(ctx context.Context) ([]entity.Filing, error) {
		return c.filings.ListFilings(ctx, ticker, 0)
	})
	c.observe(SourceFilings, res.Success, res.DurationMs)
	if !res.Success {
		logger.Warn(ctx, "披露文件收集失败", "ticker", ticker, "error", res.Err.Error())
		return
	}

	c.cacheSet(ctx, cacheKey, res.Data, c.sourceTTL(SourceFilings))

	mu.Lock()
	collected.Filings = append(collected.Filings, res.Data...)
	collected.AddSource(SourceFilings)
	mu.Unlock()
}

func (c *Collector) cacheGet(ctx context.Context, source, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	found, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		logger.Warn(ctx, "读取数据源缓存失败", "key", key, "error", err.Error())
		return false
	}
	if found {
		metrics.CollectorCacheHits.WithLabelValues(source, "hit").Inc()
		return true
	}
	metrics.CollectorCacheHits.WithLabelValues(source, "miss").Inc()
	return false
}

func (c *Collector) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.cache == nil || ttl <= 0 {
		return
	}
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		logger.Warn(ctx, "写入数据源缓存失败", "key", key, "error", err.Error())
	}
}

func (c *Collector) sourceTTL(source string) time.Duration {
	if c.cfg == nil {
		return 0
	}
	switch source {
	case SourceMarketData:
		return c.cfg.MarketData.CacheTTL
	case SourceNews:
		return c.cfg.News.CacheTTL
	case SourceFilings:
		return c.cfg.Filings.CacheTTL
	}
	return 0
}

func (c *Collector) observe(source string, success bool, durationMs int64) {
	status := "success"
	if !success {
		status = "error"
	}
	metrics.CollectorSourceTotal.WithLabelValues(source, status).Inc()
	metrics.CollectorSourceDuration.WithLabelValues(source).Observe(float64(durationMs) / 1000)
}

// daysBackFromTimeRange 把意图中的时间范围翻译为新闻检索的回看天数
func daysBackFromTimeRange(timeRange string) int {
	switch strings.ToLower(strings.TrimSpace(timeRange)) {
	case "1d", "day", "today":
		return 1
	case "1w", "week", "7d":
		return 7
	case "1m", "month", "30d":
		return 30
	case "3m", "quarter", "90d":
		return 90
	case "1y", "year", "365d":
		return 365
	default:
		return 7
	}
}
