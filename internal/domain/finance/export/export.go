// Package export writes statements out as CSV reports: Tiller Money
// transaction imports, consolidated holdings and monthly realized income.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/webclinic017/serendipity/internal/domain/categorization"
	"github.com/webclinic017/serendipity/internal/domain/finance"
)

const (
	tillerDateLayout  = "01/02/2006"
	holdingDateLayout = "2006/01/02"
	incomeMonthLayout = "2006/01"
)

// TillerEntry is one row of a Tiller Money transaction import.
type TillerEntry struct {
	Date            string `csv:"Date"`
	Description     string `csv:"Description"`
	Category        string `csv:"Category"`
	Amount          string `csv:"Amount"`
	Account         string `csv:"Account"`
	Statement       string `csv:"Statement"`
	AccountNumber   string `csv:"Account #"`
	Institution     string `csv:"Institution"`
	Month           string `csv:"Month"`
	Week            string `csv:"Week"`
	CheckNumber     string `csv:"Check Number"`
	FullDescription string `csv:"Full Description"`
}

var tillerCategories = categorization.Default()

// TillerEntries flattens the transactions of every statement. Weeks start on
// Sunday.
func TillerEntries(statements []finance.Statement) ([]TillerEntry, error) {
	var entries []TillerEntry
	for _, s := range statements {
		for _, t := range s.Transactions {
			amount, err := finance.Amount(t.Amount)
			if err != nil {
				return nil, fmt.Errorf("%s transaction on %s: %w", s.AccountNumber, t.TradeDate, err)
			}
			traded := t.TradeDate.In(time.UTC)
			month := civil.Date{Year: t.TradeDate.Year, Month: t.TradeDate.Month, Day: 1}
			week := t.TradeDate.AddDays(-int(traded.Weekday()))

			entries = append(entries, TillerEntry{
				Date:            traded.Format(tillerDateLayout),
				Description:     fmt.Sprintf("%s %s", t.Type, t.Symbol),
				Category:        tillerCategories.Category(t),
				Amount:          amount.StringFixed(2),
				AccountNumber:   finance.ShortAccount(s.AccountNumber),
				Institution:     s.InstitutionName,
				Month:           month.In(time.UTC).Format(tillerDateLayout),
				Week:            week.In(time.UTC).Format(tillerDateLayout),
				FullDescription: t.Description,
			})
		}
	}
	return entries, nil
}

// WriteTiller writes the Tiller Money CSV for statements.
func WriteTiller(w io.Writer, statements []finance.Statement) error {
	entries, err := TillerEntries(statements)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(entries, w); err != nil {
		return fmt.Errorf("failed to write tiller csv: %w", err)
	}
	return nil
}

// HoldingRow is one holding with the statement it came from.
type HoldingRow struct {
	Symbol       string `csv:"Symbol"`
	Account      string `csv:"Account"`
	Institution  string `csv:"Institution"`
	CostBasis    string `csv:"Cost Basis"`
	PurchaseDate string `csv:"Purchase Date"`
	Quantity     string `csv:"Quantity"`
	Value        string `csv:"Value"`

	purchased *civil.Date `csv:"-"`
}

// ConsolidateHoldings merges the holdings of every statement, sorted by
// symbol and then purchase date. Holdings without a purchase date sort first
// within their symbol.
func ConsolidateHoldings(statements []finance.Statement) []HoldingRow {
	var rows []HoldingRow
	for _, s := range statements {
		for _, h := range s.Holdings {
			row := HoldingRow{
				Symbol:      h.Symbol,
				Account:     s.AccountNumber,
				Institution: s.InstitutionName,
				CostBasis:   h.CostBasis,
				Quantity:    h.Quantity,
				Value:       h.Value.End,
				purchased:   h.PurchaseDate,
			}
			if h.PurchaseDate != nil {
				row.PurchaseDate = h.PurchaseDate.In(time.UTC).Format(holdingDateLayout)
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		switch {
		case a.purchased == nil:
			return b.purchased != nil
		case b.purchased == nil:
			return false
		}
		return a.purchased.Before(*b.purchased)
	})
	return rows
}

// WriteHoldings writes rows with CRLF record endings, which some spreadsheet
// importers require.
func WriteHoldings(w io.Writer, rows []HoldingRow) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("failed to write holdings csv: %w", err)
	}
	return nil
}

// MonthlyIncome is the realized income of one month.
type MonthlyIncome struct {
	Month string `csv:"Date"`
	Gains string `csv:"Gains"`
}

// MonthlyRealizedIncome sums realized lot gains by liquidation month and
// dividend and interest payments by settlement month.
func MonthlyRealizedIncome(statements []finance.Statement) ([]MonthlyIncome, error) {
	byMonth := make(map[string]decimal.Decimal)
	add := func(d civil.Date, amount decimal.Decimal) {
		key := d.In(time.UTC).Format(incomeMonthLayout)
		byMonth[key] = byMonth[key].Add(amount)
	}

	for _, s := range statements {
		for _, lot := range s.RealizedLots {
			gain, err := lot.Gain()
			if err != nil {
				return nil, fmt.Errorf("%s lot %s: %w", s.AccountNumber, lot.Symbol, err)
			}
			add(lot.LiquidationDate, gain)
		}
		for _, t := range s.Transactions {
			if !t.Type.Income() {
				continue
			}
			amount, err := finance.Amount(t.Amount)
			if err != nil {
				return nil, fmt.Errorf("%s %s on %s: %w", s.AccountNumber, t.Type, t.SettlementDate, err)
			}
			add(t.SettlementDate, amount)
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthlyIncome, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlyIncome{Month: m, Gains: byMonth[m].StringFixed(2)})
	}
	return out, nil
}

// WriteMonthlyIncome writes the monthly income report.
func WriteMonthlyIncome(w io.Writer, rows []MonthlyIncome) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write income csv: %w", err)
	}
	return nil
}
