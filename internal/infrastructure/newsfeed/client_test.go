package newsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/config"
	"fin-research-api/pkg/errors"
)

func TestCleanTickers(t *testing.T) {
	got := cleanTickers([]string{"PETR4.SA", " vale3 ", "PETR4", "", "itub4.sa"})
	assert.Equal(t, []string{"PETR4", "VALE3", "ITUB4"}, got)
}

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "PETR4 OR VALE3", r.URL.Query().Get("q"))
		assert.Equal(t, "pt", r.URL.Query().Get("language"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		w.Write([]byte(`{"articles": [
			{"title": "PETR4 sobe após balanço", "source": "InfoMoney", "published_at": "2026-08-30", "summary": "Ação da Petrobras em alta"},
			{"title": "", "source": "ignored"},
			{"title": "Mercado em alta", "source": "Valor", "published_at": "1756500000"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(&config.SourceConfig{BaseURL: srv.URL})
	items, err := client.Search(context.Background(), []string{"PETR4.SA", "VALE3"}, 7)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "PETR4 sobe após balanço", items[0].Title)
	assert.Equal(t, []string{"PETR4"}, items[0].Tickers)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), items[0].PublishedAt)
	assert.Empty(t, items[1].Tickers)
	assert.False(t, items[1].PublishedAt.IsZero())
}

func TestSearch_NoTerms(t *testing.T) {
	client := NewClient(&config.SourceConfig{BaseURL: "http://localhost"})

	_, err := client.Search(context.Background(), []string{"", "  "}, 7)

	require.Error(t, err)
	assert.Equal(t, errors.CodeNewsError, errors.CodeOf(err))
}

func TestSearch_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(&config.SourceConfig{BaseURL: srv.URL})
	_, err := client.Search(context.Background(), []string{"PETR4"}, 7)

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), parseTime("2026-01-02"))
	assert.False(t, parseTime("2026-01-02T15:04:05Z").IsZero())
	assert.False(t, parseTime("1700000000").IsZero())
	assert.True(t, parseTime("not a date").IsZero())
}
