package filings

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

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DFP", "annual_report"},
		{"ITR", "quarterly_report"},
		{"FR", "relevant_fact"},
		{"IPE", "earnings_release"},
		{"FCA", "other"},
		{"FRE", "other"},
		{"dfp", "annual_report"},
		{"XYZ", "XYZ"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCategory(tt.in), "category=%q", tt.in)
	}
}

func TestListFilings_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filings", r.URL.Path)
		assert.Equal(t, "PETR4", r.URL.Query().Get("ticker"))
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		w.Write([]byte(`{"filings": [
			{"ticker": "PETR4", "company": "Petrobras", "category": "DFP", "subject": "Demonstrações 2025", "published_at": "2026-03-15"},
			{"ticker": "PETR4", "company": "Petrobras", "category": "FR", "subject": "Fato relevante", "published_at": "15/04/2026"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(&config.SourceConfig{BaseURL: srv.URL})
	filings, err := client.ListFilings(context.Background(), "petr4", 2025)

	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, "PETR4", filings[0].Ticker)
	assert.Equal(t, "annual_report", filings[0].Category)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), filings[0].PublishedAt)
	assert.Equal(t, "relevant_fact", filings[1].Category)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), filings[1].PublishedAt)
}

func TestListFilings_EmptyTicker(t *testing.T) {
	client := NewClient(&config.SourceConfig{BaseURL: "http://localhost"})

	_, err := client.ListFilings(context.Background(), "   ", 0)

	require.Error(t, err)
	assert.Equal(t, errors.CodeFilingsError, errors.CodeOf(err))
}

func TestListFilings_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(&config.SourceConfig{BaseURL: srv.URL})
	_, err := client.ListFilings(context.Background(), "PETR4", 0)

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}
