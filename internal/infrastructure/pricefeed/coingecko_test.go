package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

func newFeed(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "sui", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "", 0)
}

func TestRate_ReadsNestedValue(t *testing.T) {
	feed := newFeed(t, http.StatusOK, `{"sui":{"ngn":2000}}`)

	rate, err := feed.Rate(context.Background(), "NGN")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, rate)
}

func TestRate_MissingCurrency(t *testing.T) {
	feed := newFeed(t, http.StatusOK, `{"sui":{"usd":1.2}}`)

	_, err := feed.Rate(context.Background(), "ngn")
	assert.True(t, errors.Is(err, domain.ErrConversionUnavailable))
}

func TestRate_UpstreamError(t *testing.T) {
	feed := newFeed(t, http.StatusTooManyRequests, `{"status":{"error_code":429}}`)

	_, err := feed.Rate(context.Background(), "ngn")
	assert.True(t, errors.Is(err, domain.ErrConversionUnavailable))
	assert.True(t, errors.Is(err, domain.ErrRemote))
}
