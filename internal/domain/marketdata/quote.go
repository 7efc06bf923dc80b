// Package marketdata fetches current security prices and writes them into
// spreadsheets that track a portfolio.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest price of a symbol.
type Quote struct {
	Symbol     string
	Price      decimal.Decimal
	Currency   string
	RecordedAt time.Time
}

// FetchError represents a failed price fetch for a specific symbol.
type FetchError struct {
	Symbol string
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch price for %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Quoter fetches current prices.
type Quoter interface {
	// Name returns the provider's display name.
	Name() string

	// Quotes fetches prices for symbols. It returns as many quotes as possible
	// along with one FetchError per symbol that failed.
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, []FetchError)
}
