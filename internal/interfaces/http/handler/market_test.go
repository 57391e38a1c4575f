package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/infrastructure/persistence/redis"
	"fin-research-api/internal/interfaces/http/dto"
	"fin-research-api/pkg/errors"
)

type fakeMarketSource struct {
	quote *entity.MarketData
	err   error
	calls atomic.Int32
}

func (f *fakeMarketSource) Quote(ctx context.Context, ticker string) (*entity.MarketData, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

// fakeQuoteCache 命中时直接返回缓存字节，未命中时执行 loader 并序列化结果
type fakeQuoteCache struct {
	cached  []byte
	lastKey string
	lastTTL time.Duration
	loads   int
}

func (f *fakeQuoteCache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.cached != nil {
		return f.cached, nil
	}
	f.loads++
	data, err := loader()
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func performQuote(h *MarketHandler, ticker string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/market/quote/:ticker", h.Quote)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/market/quote/"+ticker, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestQuote_CacheMissLoadsFromSource(t *testing.T) {
	source := &fakeMarketSource{quote: &entity.MarketData{Ticker: "PETR4.SA", CurrentPrice: 32.5}}
	cache := &fakeQuoteCache{}
	h := NewMarketHandler(source, cache, 5*time.Minute)

	w := performQuote(h, "PETR4")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, cache.loads)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 5*time.Minute, cache.lastTTL)
	assert.Equal(t, redis.BuildSourceCacheKey("quote", "PETR4"), cache.lastKey)

	var resp dto.Response[dto.QuoteResult]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Quote)
	assert.Equal(t, "PETR4.SA", resp.Data.Quote.Ticker)
	assert.InDelta(t, 32.5, resp.Data.Quote.CurrentPrice, 1e-9)
}

func TestQuote_CacheHitSkipsSource(t *testing.T) {
	cached, err := json.Marshal(entity.MarketData{Ticker: "VALE3.SA", CurrentPrice: 61.2})
	require.NoError(t, err)
	source := &fakeMarketSource{}
	h := NewMarketHandler(source, &fakeQuoteCache{cached: cached}, time.Minute)

	w := performQuote(h, "VALE3")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(0), source.calls.Load())

	var resp dto.Response[dto.QuoteResult]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Quote)
	assert.Equal(t, "VALE3.SA", resp.Data.Quote.Ticker)
}

func TestQuote_NoCacheGoesDirect(t *testing.T) {
	source := &fakeMarketSource{quote: &entity.MarketData{Ticker: "ITUB4.SA"}}
	h := NewMarketHandler(source, nil, 0)

	w := performQuote(h, "ITUB4")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestQuote_SourceErrorMapped(t *testing.T) {
	srcErr := errors.New(errors.CodeMarketDataError)
	source := &fakeMarketSource{err: srcErr}
	h := NewMarketHandler(source, &fakeQuoteCache{}, time.Minute)

	w := performQuote(h, "PETR4")

	assert.Equal(t, srcErr.HTTPStatus(), w.Code)
}
