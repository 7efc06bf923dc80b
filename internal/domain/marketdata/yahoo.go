package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooChartResponse is the v8 chart API response.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider fetches prices from the Yahoo Finance chart API, one request
// per symbol, rate limited and fanned out over a bounded number of workers.
type YahooProvider struct {
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	concurrency int
}

// NewYahooProvider creates a Yahoo Finance provider. An empty baseURL uses the
// public chart endpoint; requestsPerSecond <= 0 disables rate limiting.
func NewYahooProvider(httpClient *http.Client, baseURL string, requestsPerSecond float64, concurrency int) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooChartURL
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &YahooProvider{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		limiter:     rate.NewLimiter(limit, 1),
		concurrency: concurrency,
	}
}

// Name returns the provider's display name.
func (p *YahooProvider) Name() string { return "Yahoo Finance" }

// Quotes fetches the latest price of every distinct symbol.
func (p *YahooProvider) Quotes(ctx context.Context, symbols []string) (map[string]Quote, []FetchError) {
	var mu sync.Mutex
	quotes := make(map[string]Quote, len(symbols))
	seen := make(map[string]bool, len(symbols))
	var failures []FetchError
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, symbol := range symbols {
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		g.Go(func() error {
			q, err := p.fetch(gctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, FetchError{Symbol: symbol, Err: err})
				return nil
			}
			q.RecordedAt = now
			quotes[symbol] = q
			return nil
		})
	}
	// workers never return errors; failures are collected per symbol
	_ = g.Wait()

	return quotes, failures
}

func (p *YahooProvider) fetch(ctx context.Context, symbol string) (Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Quote{}, err
	}

	u := p.baseURL + "/" + url.PathEscape(symbol) + "?interval=1d&range=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Quote{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return Quote{}, fmt.Errorf("decoding response: %w", err)
	}
	if chart.Chart.Error != nil {
		return Quote{}, fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(chart.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("symbol %s not found in response", symbol)
	}

	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return Quote{}, fmt.Errorf("zero price for %s", symbol)
	}
	return Quote{
		Symbol:   symbol,
		Price:    decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency: meta.Currency,
	}, nil
}
