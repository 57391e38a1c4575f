package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-research-api/internal/config"
	"fin-research-api/pkg/errors"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PETR4", "PETR4.SA"},
		{"petr4", "PETR4.SA"},
		{" vale3 ", "VALE3.SA"},
		{"PETR4.SA", "PETR4.SA"},
		{"^BVSP", "^BVSP"},
		{"USDBRL=X", "USDBRL=X"},
		{"BRK.B", "BRK.B"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTicker(tt.in), "ticker=%q", tt.in)
	}
}

func newTestClient(serverURL string) *Client {
	return NewClient(&config.SourceConfig{BaseURL: serverURL, APIKey: "test-key"})
}

func TestQuote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "PETR4.SA", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{
			"longName": "Petróleo Brasileiro S.A.",
			"regularMarketPrice": 32.5,
			"regularMarketChangePercent": 1.2,
			"previousClose": 32.1
		}`))
	}))
	defer srv.Close()

	md, err := newTestClient(srv.URL).Quote(context.Background(), "petr4")

	require.NoError(t, err)
	assert.Equal(t, "PETR4", md.Ticker)
	assert.Equal(t, "Petróleo Brasileiro S.A.", md.CompanyName)
	assert.Equal(t, 32.5, md.CurrentPrice)
	assert.Equal(t, 1.2, md.ChangePercent)
	assert.Equal(t, "BRL", md.AdditionalData["currency"])
	assert.Equal(t, "32.10", md.AdditionalData["previous_close"])
}

func TestQuote_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"longName": "Unknown Corp"}`))
	}))
	defer srv.Close()

	md, err := newTestClient(srv.URL).Quote(context.Background(), "XXXX1")

	require.Error(t, err)
	assert.Nil(t, md)
	assert.False(t, errors.IsTransient(err))
}

func TestQuote_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "PETR4")

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, errors.CodeMarketDataError, errors.CodeOf(err))
}

func TestQuote_NotFoundIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "PETR4")

	require.Error(t, err)
	assert.False(t, errors.IsTransient(err))
}

func TestQuote_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "PETR4")

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}
