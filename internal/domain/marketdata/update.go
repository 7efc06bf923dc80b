package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	SecurityColumn = "security"
	PriceColumn    = "current price"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrSheetNotFound  = errors.New("sheet not found")
)

// UpdateResult summarizes one price refresh.
type UpdateResult struct {
	Rows     int
	Updated  int
	Failures []FetchError
}

// UpdatePrices looks up the symbol of every row below the header and writes
// its current price into the price column. Headers are matched case
// insensitively. Rows whose symbol could not be priced keep their old value.
func UpdatePrices(ctx context.Context, sheet Sheet, quoter Quoter, logger *slog.Logger) (*UpdateResult, error) {
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrColumnNotFound)
	}

	securityCol, err := columnIndex(rows[0], SecurityColumn)
	if err != nil {
		return nil, err
	}
	priceCol, err := columnIndex(rows[0], PriceColumn)
	if err != nil {
		return nil, err
	}

	symbols := make(map[int]string, len(rows)-1)
	var lookup []string
	for i := 1; i < len(rows); i++ {
		if securityCol >= len(rows[i]) {
			continue
		}
		symbol := strings.TrimSpace(rows[i][securityCol])
		if symbol == "" {
			continue
		}
		symbols[i] = symbol
		lookup = append(lookup, symbol)
	}

	result := &UpdateResult{Rows: len(symbols)}
	if len(lookup) == 0 {
		return result, nil
	}

	quotes, failures := quoter.Quotes(ctx, lookup)
	result.Failures = failures
	for _, f := range failures {
		logger.Warn("price lookup failed", "symbol", f.Symbol, "error", f.Err)
	}

	for i := 1; i < len(rows); i++ {
		symbol, ok := symbols[i]
		if !ok {
			continue
		}
		quote, ok := quotes[symbol]
		if !ok {
			continue
		}
		if err := sheet.SetCell(i, priceCol, quote.Price.InexactFloat64()); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		result.Updated++
	}

	if result.Updated > 0 {
		if err := sheet.Save(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("prices updated",
		"provider", quoter.Name(),
		"rows", result.Rows,
		"updated", result.Updated,
		"failed", len(result.Failures))
	return result, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}
