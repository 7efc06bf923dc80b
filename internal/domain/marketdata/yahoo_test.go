package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartHandler(prices map[string]float64, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		symbol := strings.TrimPrefix(r.URL.Path, "/")
		price, ok := prices[symbol]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"chart":{"result":[{"meta":{"symbol":%q,"currency":"USD","regularMarketPrice":%v}}],"error":null}}`, symbol, price)
	}
}

func TestYahooProvider_Quotes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(chartHandler(map[string]float64{"AAPL": 189.25, "VTI": 250.5}, &calls))
	defer srv.Close()

	p := NewYahooProvider(srv.Client(), srv.URL, 0, 2)
	quotes, failures := p.Quotes(context.Background(), []string{"AAPL", "VTI", "AAPL", "NOPE", ""})

	require.Len(t, quotes, 2)
	assert.Equal(t, "189.25", quotes["AAPL"].Price.String())
	assert.Equal(t, "USD", quotes["VTI"].Currency)
	assert.False(t, quotes["VTI"].RecordedAt.IsZero())

	require.Len(t, failures, 1)
	assert.Equal(t, "NOPE", failures[0].Symbol)
	assert.Contains(t, failures[0].Error(), "NOPE")
	assert.Equal(t, int32(3), calls.Load(), "duplicate and empty symbols are not fetched")
}

func TestYahooProvider_ZeroPrice(t *testing.T) {
	srv := httptest.NewServer(chartHandler(map[string]float64{"ZERO": 0}, nil))
	defer srv.Close()

	p := NewYahooProvider(srv.Client(), srv.URL, 0, 1)
	quotes, failures := p.Quotes(context.Background(), []string{"ZERO"})
	assert.Empty(t, quotes)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "zero price")
}

func TestYahooProvider_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprint(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.Client(), srv.URL, 10, 1)
	_, failures := p.Quotes(context.Background(), []string{"AAPL"})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "502")
}

func TestYahooProvider_Cancelled(t *testing.T) {
	srv := httptest.NewServer(chartHandler(map[string]float64{"AAPL": 1}, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewYahooProvider(srv.Client(), srv.URL, 1, 1)
	quotes, failures := p.Quotes(ctx, []string{"AAPL"})
	assert.Empty(t, quotes)
	assert.Len(t, failures, 1)
}

func TestNewYahooProvider_Defaults(t *testing.T) {
	p := NewYahooProvider(http.DefaultClient, "", 0, 0)
	assert.Equal(t, yahooChartURL, p.baseURL)
	assert.Equal(t, 1, p.concurrency)
	assert.Equal(t, "Yahoo Finance", p.Name())
}
