package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"fin-research-api/internal/application/collector"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/infrastructure/persistence/redis"
	"fin-research-api/internal/interfaces/http/dto"
)

// QuoteCache 行情直查使用的 Read-Through 缓存端口
// 并发请求同一 key 时由 singleflight 合并到一次加载
type QuoteCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// MarketHandler 行情直查处理器
type MarketHandler struct {
	market collector.MarketDataSource
	cache  QuoteCache
	ttl    time.Duration
}

func NewMarketHandler(market collector.MarketDataSource, cache QuoteCache, ttl time.Duration) *MarketHandler {
	return &MarketHandler{market: market, cache: cache, ttl: ttl}
}

// Quote 查询单只股票的实时行情
// GET /api/v1/market/quote/:ticker
func (h *MarketHandler) Quote(c *gin.Context) {
	ticker := c.Param("ticker")
	if ticker == "" {
		dto.BadRequest(c, "ticker is required")
		return
	}
	ctx := c.Request.Context()

	if h.cache == nil {
		quote, err := h.market.Quote(ctx, ticker)
		if err != nil {
			dto.FromError(c, err)
			return
		}
		dto.Success(c, dto.QuoteResult{Quote: quote})
		return
	}

	// 与采集器共用同一缓存 key，直查命中采集器写入的条目
	raw, err := h.cache.GetOrLoadSafe(ctx, redis.BuildSourceCacheKey("quote", ticker), h.ttl,
		func() (interface{}, error) {
			return h.market.Quote(ctx, ticker)
		})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	var quote entity.MarketData
	if err := json.Unmarshal(raw, &quote); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.QuoteResult{Quote: &quote})
}
