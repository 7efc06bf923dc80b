package extractor

import (
	"fmt"
	"regexp"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
)

var fidelityDownloadedRe = regexp.MustCompile(`Date downloaded (\d{2}/\d{2}/\d{4})`)

type fidelityPositionRow struct {
	Account     string `csv:"Account Name/Number"`
	Symbol      string `csv:"Symbol"`
	Description string `csv:"Description"`
	Quantity    string `csv:"Quantity"`
	CostBasis   string `csv:"Cost Basis"`
	Value       string `csv:"Current Value"`
}

// FidelityPositions reads the portfolio positions CSV downloaded from
// Fidelity. Every statement is dated on the download date found in the
// trailing disclaimer.
type FidelityPositions struct {
	markers *markers
}

func NewFidelityPositions() *FidelityPositions {
	return &FidelityPositions{markers: newMarkers("Fidelity Brokerage Services")}
}

func (f *FidelityPositions) Institution() string { return "Fidelity" }

func (f *FidelityPositions) CanProcess(doc document.Document) bool {
	if !isTabular(doc) {
		return false
	}
	text, err := doc.Text()
	if err != nil {
		return false
	}
	return f.markers.all(text) && fidelityDownloadedRe.MatchString(text)
}

func (f *FidelityPositions) Statements(doc document.Document) ([]finance.Statement, error) {
	text, err := doc.Text()
	if err != nil {
		return nil, err
	}
	downloaded, err := extractString(fidelityDownloadedRe, text)
	if err != nil {
		return nil, err
	}
	reportDate, err := parseDate(downloaded, "01/02/2006")
	if err != nil {
		return nil, err
	}

	table, err := doc.SingleTable()
	if err != nil {
		return nil, err
	}
	var rows []fidelityPositionRow
	if err := table.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}

	set := finance.NewAccountSet()
	for i, row := range rows {
		// pending activity and disclaimer lines have no quantity
		if row.Quantity == "" || row.Account == "" {
			continue
		}
		symbol, err := finance.FidelityOptionToOCC(row.Symbol, row.Description)
		if err != nil {
			return nil, fmt.Errorf("positions row %d: %w", i+1, err)
		}
		s, _ := set.Get(row.Account, func() finance.Statement {
			return finance.Statement{
				AccountNumber:   row.Account,
				StartDate:       reportDate,
				EndDate:         reportDate,
				InstitutionName: f.Institution(),
			}
		})
		s.Holdings = append(s.Holdings, finance.Holding{
			Symbol:    symbol,
			Quantity:  row.Quantity,
			CostBasis: row.CostBasis,
			Value:     finance.AssetValue{Start: row.Value, End: row.Value},
		})
	}
	return set.Statements(), nil
}
