package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/config"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/pkg/errors"
)

type fakeMarket struct {
	calls atomic.Int32
	err   error
}

func (f *fakeMarket) Quote(ctx context.Context, ticker string) (*entity.MarketData, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &entity.MarketData{Ticker: ticker, CurrentPrice: 32.5}, nil
}

type fakeNews struct {
	err      error
	daysBack int
}

func (f *fakeNews) Search(ctx context.Context, tickers []string, daysBack int) ([]entity.NewsItem, error) {
	f.daysBack = daysBack
	if f.err != nil {
		return nil, f.err
	}
	return []entity.NewsItem{{Title: "Resultado do trimestre", Tickers: tickers}}, nil
}

type fakeFilings struct {
	err error
}

func (f *fakeFilings) ListFilings(ctx context.Context, ticker string, year int) ([]entity.Filing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []entity.Filing{{Ticker: ticker, Category: string(entity.DocumentTypeAnnualReport)}}, nil
}

func fastWorkflowConfig() *config.WorkflowConfig {
	return &config.WorkflowConfig{
		MaxRetries:   2,
		RetryMinWait: time.Millisecond,
		RetryMaxWait: 2 * time.Millisecond,
	}
}

func TestCollect_AllSources(t *testing.T) {
	news := &fakeNews{}
	c := NewCollector(&fakeMarket{}, news, &fakeFilings{}, nil, nil, fastWorkflowConfig())
	intent := &entity.QueryIntent{
		IntentType:         entity.IntentFinancialAnalysis,
		Tickers:            []string{"PETR4", "VALE3"},
		TimeRange:          "1m",
		RequiresRetrieval:  true,
		RequiresMarketData: true,
		RequiresNews:       true,
	}

	collected, err := c.Collect(context.Background(), intent)

	require.NoError(t, err)
	assert.Len(t, collected.MarketData, 2)
	assert.Len(t, collected.NewsItems, 1)
	assert.Len(t, collected.Filings, 2)
	assert.ElementsMatch(t, []string{SourceMarketData, SourceNews, SourceFilings}, collected.Sources)
	assert.Equal(t, 30, news.daysBack)
}

func TestCollect_PartialFailureOmitsSource(t *testing.T) {
	market := &fakeMarket{err: errors.Newf(errors.CodeMarketDataError, "provider down")}
	c := NewCollector(market, &fakeNews{}, &fakeFilings{}, nil, nil, fastWorkflowConfig())
	intent := &entity.QueryIntent{
		Tickers:            []string{"PETR4"},
		RequiresRetrieval:  true,
		RequiresMarketData: true,
		RequiresNews:       true,
	}

	collected, err := c.Collect(context.Background(), intent)

	require.NoError(t, err)
	assert.Empty(t, collected.MarketData)
	assert.NotContains(t, collected.Sources, SourceMarketData)
	assert.Contains(t, collected.Sources, SourceNews)
	assert.Contains(t, collected.Sources, SourceFilings)
}

func TestCollect_NilIntentUsesFallback(t *testing.T) {
	c := NewCollector(&fakeMarket{}, &fakeNews{}, &fakeFilings{}, nil, nil, fastWorkflowConfig())

	collected, err := c.Collect(context.Background(), nil)

	// 兜底意图没有代码，行情与披露分支无事可做，新闻分支被跳过
	require.NoError(t, err)
	assert.True(t, collected.IsEmpty())
}

func TestCollect_RespectsIntentFlags(t *testing.T) {
	market := &fakeMarket{}
	c := NewCollector(market, &fakeNews{}, &fakeFilings{}, nil, nil, fastWorkflowConfig())
	intent := &entity.QueryIntent{
		Tickers:            []string{"PETR4"},
		RequiresMarketData: false,
		RequiresNews:       false,
		RequiresRetrieval:  false,
	}

	collected, err := c.Collect(context.Background(), intent)

	require.NoError(t, err)
	assert.True(t, collected.IsEmpty())
	assert.Equal(t, int32(0), market.calls.Load())
}

func TestWithRetry_TransientErrorRetries(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	var calls int

	res := WithRetry(context.Background(), "test", policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.Newf(errors.CodeMarketDataError, "flaky").Transient()
		}
		return "ok", nil
	})

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorFailsFast(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	var calls int

	res := WithRetry(context.Background(), "test", policy, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.Newf(errors.CodeInvalidParams, "bad ticker")
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.CodeInvalidParams, errors.CodeOf(res.Err))
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	var calls int

	res := WithRetry(context.Background(), "test", policy, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.Newf(errors.CodeNewsError, "still down").Transient()
	})

	assert.False(t, res.Success)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_CanceledContext(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MinWait: 50 * time.Millisecond, MaxWait: 100 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := WithRetry(ctx, "test", policy, func(ctx context.Context) (string, error) {
		return "", errors.Newf(errors.CodeNewsError, "down").Transient()
	})

	assert.False(t, res.Success)
	assert.Equal(t, errors.CodeTimeout, errors.CodeOf(res.Err))
}

func TestDaysBackFromTimeRange(t *testing.T) {
	tests := []struct {
		timeRange string
		want      int
	}{
		{"1d", 1},
		{"1w", 7},
		{"1m", 30},
		{"3m", 90},
		{"1y", 365},
		{"", 7},
		{"current", 7},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, daysBackFromTimeRange(tt.timeRange), "time_range=%q", tt.timeRange)
	}
}
