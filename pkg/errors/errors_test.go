package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")

	err := Wrapf(CodeMarketDataError, cause, "quote failed: ticker=%s", "PETR4")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "quote failed: ticker=PETR4")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTransient_SurvivesWrapping(t *testing.T) {
	inner := Newf(CodeNewsError, "rate limited").Transient()
	outer := fmt.Errorf("collect news: %w", inner)

	assert.True(t, IsTransient(outer))
	assert.False(t, IsTransient(stderrors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeFilingsError, CodeOf(New(CodeFilingsError)))
	assert.Equal(t, CodeFilingsError, CodeOf(fmt.Errorf("wrapped: %w", New(CodeFilingsError))))
	assert.Equal(t, CodeInternalError, CodeOf(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidParams, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeAnalysisFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, New(tt.code).HTTPStatus(), "code=%d", tt.code)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeCollectionFailed).WithDetails("all sources failed")

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "all sources failed", appErr.Details)
	assert.Equal(t, "数据收集失败", appErr.Message)
}
