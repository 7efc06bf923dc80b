package extractor

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
)

const (
	merrillEdge       = "Merrill Edge"
	merrillDateLayout = "1/2/2006"
)

// merrillTransactionTypes maps the "Description 1" column of activity exports.
var merrillTransactionTypes = map[string]finance.TransactionType{
	"Purchase":              finance.TransactionPurchase,
	"Option Purchase":       finance.TransactionPurchase,
	"Sale":                  finance.TransactionSale,
	"Option Sale":           finance.TransactionSale,
	"Sale-Option Assigned":  finance.TransactionSale,
	"Bank Interest":         finance.TransactionInterest,
	"Interest":              finance.TransactionInterest,
	"Deposit":               finance.TransactionDeposit,
	"Exchange":              finance.TransactionExchange,
	"Option Assigned":       finance.TransactionOptionAssigned,
	"Dividend":              finance.TransactionDividend,
	"Withdrawal":            finance.TransactionWithdrawal,
	"Option Expired":        finance.TransactionOptionExpired,
	"Transfer / Adjustment": finance.TransactionTransfer,
}

// merrillExport recognizes Merrill Edge CSV exports. The export kind is told
// apart by a column only that kind has.
type merrillExport struct {
	markers   *markers
	keyColumn string
	excludes  []string
}

func newMerrillExport(keyColumn string, excludes ...string) merrillExport {
	return merrillExport{markers: newMarkers(merrillEdge, "Edge"), keyColumn: keyColumn, excludes: excludes}
}

func (m merrillExport) Institution() string { return merrillEdge }

func (m merrillExport) CanProcess(doc document.Document) bool {
	if !isTabular(doc) {
		return false
	}
	text, err := doc.Text()
	if err != nil || !m.markers.any(text) {
		return false
	}
	table, err := doc.SingleTable()
	if err != nil {
		return false
	}
	for _, c := range m.excludes {
		if table.Has(c) {
			return false
		}
	}
	return table.Has(m.keyColumn)
}

func newMerrillStatement(account string, date civil.Date) func() finance.Statement {
	return func() finance.Statement {
		return finance.Statement{
			AccountNumber:   account,
			StartDate:       date,
			EndDate:         date,
			InstitutionName: merrillEdge,
		}
	}
}

type merrillHoldingRow struct {
	Account         string `csv:"Account #"`
	COBDate         string `csv:"COB Date"`
	Symbol          string `csv:"Symbol"`
	Quantity        string `csv:"Quantity"`
	CostBasis       string `csv:"Cost Basis ($)"`
	Value           string `csv:"Value ($)"`
	AcquisitionDate string `csv:"Acquisition Date"`
}

// MerrillEdgeHoldings reads the holdings export: one row per lot, grouped by
// account. The statement covers the close-of-business dates of its rows.
type MerrillEdgeHoldings struct {
	merrillExport
}

func NewMerrillEdgeHoldings() *MerrillEdgeHoldings {
	return &MerrillEdgeHoldings{newMerrillExport("Short/Long", "Liquidation Date", "Settlement Date")}
}

func (m *MerrillEdgeHoldings) Statements(doc document.Document) ([]finance.Statement, error) {
	table, err := doc.SingleTable()
	if err != nil {
		return nil, err
	}
	var rows []merrillHoldingRow
	if err := table.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode holdings: %w", err)
	}

	set := finance.NewAccountSet()
	for i, row := range rows {
		if row.Account == "" {
			continue
		}
		cob, err := parseDate(row.COBDate, merrillDateLayout)
		if err != nil {
			return nil, fmt.Errorf("holdings row %d: %w", i+1, err)
		}
		purchased, err := optionalDate(row.AcquisitionDate, merrillDateLayout)
		if err != nil {
			return nil, fmt.Errorf("holdings row %d: %w", i+1, err)
		}

		s, _ := set.Get(row.Account, newMerrillStatement(row.Account, cob))
		s.Widen(cob)
		s.Holdings = append(s.Holdings, finance.Holding{
			Symbol:       finance.SymbolToOCC(row.Symbol),
			Quantity:     row.Quantity,
			CostBasis:    dollars(row.CostBasis),
			Value:        finance.AssetValue{Start: dollars(row.Value), End: dollars(row.Value)},
			PurchaseDate: purchased,
		})
	}
	return set.Statements(), nil
}

type merrillTransactionRow struct {
	Account        string `csv:"Account #"`
	TradeDate      string `csv:"Trade Date"`
	SettlementDate string `csv:"Settlement Date"`
	Status         string `csv:"Pending/Settled"`
	Description1   string `csv:"Description 1"`
	Description2   string `csv:"Description 2"`
	Symbol         string `csv:"Symbol/CUSIP #"`
	Quantity       string `csv:"Quantity"`
	Price          string `csv:"Price ($)"`
	Amount         string `csv:"Amount ($)"`
}

// MerrillEdgeTransactions reads the activity export. Each statement spans the
// earliest to the latest trade date of its account.
type MerrillEdgeTransactions struct {
	merrillExport
}

func NewMerrillEdgeTransactions() *MerrillEdgeTransactions {
	return &MerrillEdgeTransactions{newMerrillExport("Settlement Date")}
}

func (m *MerrillEdgeTransactions) Statements(doc document.Document) ([]finance.Statement, error) {
	table, err := doc.SingleTable()
	if err != nil {
		return nil, err
	}
	var rows []merrillTransactionRow
	if err := table.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	set := finance.NewAccountSet()
	for i, row := range rows {
		if row.Account == "" {
			continue
		}
		t, err := merrillTransaction(row)
		if err != nil {
			return nil, fmt.Errorf("transactions row %d: %w", i+1, err)
		}
		s, _ := set.Get(row.Account, newMerrillStatement(row.Account, t.TradeDate))
		s.Transactions = append(s.Transactions, t)
		s.Widen(t.TradeDate)
	}
	return set.Statements(), nil
}

func merrillTransaction(row merrillTransactionRow) (finance.Transaction, error) {
	kind, ok := merrillTransactionTypes[row.Description1]
	if !ok {
		return finance.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownTransaction, row.Description1)
	}
	traded, err := parseDate(row.TradeDate, merrillDateLayout)
	if err != nil {
		return finance.Transaction{}, err
	}
	settled, err := parseDate(row.SettlementDate, merrillDateLayout)
	if err != nil {
		return finance.Transaction{}, err
	}
	status := finance.StatusPending
	if row.Status == "Settled" {
		status = finance.StatusSettled
	}
	return finance.Transaction{
		TradeDate:      traded,
		SettlementDate: settled,
		Status:         status,
		Type:           kind,
		Quantity:       row.Quantity,
		Price:          dollars(row.Price),
		Amount:         dollars(row.Amount),
		Symbol:         finance.SymbolToOCC(row.Symbol),
		Description:    row.Description2,
	}, nil
}

type merrillRealizedRow struct {
	Account           string `csv:"Account #"`
	Symbol            string `csv:"Security"`
	Description       string `csv:"Security Description"`
	Quantity          string `csv:"Quantity"`
	AcquisitionDate   string `csv:"Acquisition Date"`
	AcquisitionPrice  string `csv:"Acquisition Price ($)"`
	AcquisitionCost   string `csv:"Acquisition Cost ($)"`
	LiquidationDate   string `csv:"Liquidation Date"`
	LiquidationPrice  string `csv:"Liquidation Price ($)"`
	LiquidationAmount string `csv:"Liquidation Amount ($)"`
}

// MerrillEdgeRealizedGains reads the realized gain/loss export. Each statement
// spans the liquidation dates of its lots.
type MerrillEdgeRealizedGains struct {
	merrillExport
}

func NewMerrillEdgeRealizedGains() *MerrillEdgeRealizedGains {
	return &MerrillEdgeRealizedGains{newMerrillExport("Liquidation Date")}
}

func (m *MerrillEdgeRealizedGains) Statements(doc document.Document) ([]finance.Statement, error) {
	table, err := doc.SingleTable()
	if err != nil {
		return nil, err
	}
	var rows []merrillRealizedRow
	if err := table.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode realized gains: %w", err)
	}

	set := finance.NewAccountSet()
	for i, row := range rows {
		if row.Account == "" {
			continue
		}
		acquired, err := parseDate(row.AcquisitionDate, merrillDateLayout)
		if err != nil {
			return nil, fmt.Errorf("realized gains row %d: %w", i+1, err)
		}
		liquidated, err := parseDate(row.LiquidationDate, merrillDateLayout)
		if err != nil {
			return nil, fmt.Errorf("realized gains row %d: %w", i+1, err)
		}

		s, _ := set.Get(row.Account, newMerrillStatement(row.Account, liquidated))
		s.Widen(liquidated)
		s.RealizedLots = append(s.RealizedLots, finance.RealizedLot{
			Symbol:            finance.SymbolToOCC(row.Symbol),
			Description:       row.Description,
			Quantity:          row.Quantity,
			AcquisitionDate:   acquired,
			AcquisitionPrice:  dollars(row.AcquisitionPrice),
			AcquisitionAmount: dollars(row.AcquisitionCost),
			LiquidationDate:   liquidated,
			LiquidationPrice:  dollars(row.LiquidationPrice),
			LiquidationAmount: dollars(row.LiquidationAmount),
		})
	}
	return set.Statements(), nil
}
