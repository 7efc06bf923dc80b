// Package finance holds the normalized statement model shared by every
// institution extractor, plus the symbol and number helpers they rely on.
//
// Monetary fields are kept as the formatted strings found in the source
// documents (for example "$8,435.97"). Use Amount to turn one into a decimal.
package finance

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of brokerage activity kinds.
type TransactionType string

const (
	TransactionPurchase       TransactionType = "purchase"
	TransactionSale           TransactionType = "sale"
	TransactionInterest       TransactionType = "interest"
	TransactionDeposit        TransactionType = "deposit"
	TransactionExchange       TransactionType = "exchange"
	TransactionOptionAssigned TransactionType = "option_assigned"
	TransactionDividend       TransactionType = "dividend"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionOptionExpired  TransactionType = "option_expired"
	TransactionTransfer       TransactionType = "transfer"
)

// TransactionTypes lists every valid TransactionType.
var TransactionTypes = []TransactionType{
	TransactionPurchase,
	TransactionSale,
	TransactionInterest,
	TransactionDeposit,
	TransactionExchange,
	TransactionOptionAssigned,
	TransactionDividend,
	TransactionWithdrawal,
	TransactionOptionExpired,
	TransactionTransfer,
}

// Valid reports whether t belongs to the closed set.
func (t TransactionType) Valid() bool {
	for _, v := range TransactionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Income reports whether the transaction is realized income rather than a trade.
func (t TransactionType) Income() bool {
	return t == TransactionDividend || t == TransactionInterest
}

// TransactionStatus is either settled or pending.
type TransactionStatus string

const (
	StatusSettled TransactionStatus = "settled"
	StatusPending TransactionStatus = "pending"
)

// AssetValue is the value of a position at the start and end of a statement.
type AssetValue struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Holding is a point-in-time position.
type Holding struct {
	Symbol       string      `json:"symbol"`
	Quantity     string      `json:"quantity"`
	CostBasis    string      `json:"cost_basis"`
	Value        AssetValue  `json:"value"`
	PurchaseDate *civil.Date `json:"purchase_date,omitempty"`
}

// Transaction is one dated brokerage event.
type Transaction struct {
	TradeDate      civil.Date        `json:"trade_date"`
	SettlementDate civil.Date        `json:"settlement_date"`
	Status         TransactionStatus `json:"status"`
	Type           TransactionType   `json:"transaction_type"`
	Quantity       string            `json:"quantity"`
	Price          string            `json:"price"`
	Amount         string            `json:"amount"`
	Symbol         string            `json:"symbol"`
	Description    string            `json:"description,omitempty"`
}

// RealizedLot is a closed position with its acquisition and liquidation legs.
type RealizedLot struct {
	Symbol            string     `json:"symbol"`
	Description       string     `json:"description,omitempty"`
	Quantity          string     `json:"quantity"`
	AcquisitionDate   civil.Date `json:"acquisition_date"`
	AcquisitionPrice  string     `json:"acquisition_price"`
	AcquisitionAmount string     `json:"acquisition_amount"`
	LiquidationDate   civil.Date `json:"liquidation_date"`
	LiquidationPrice  string     `json:"liquidation_price"`
	LiquidationAmount string     `json:"liquidation_amount"`
}

// Gain is liquidation minus acquisition amount.
func (l RealizedLot) Gain() (decimal.Decimal, error) {
	sold, err := Amount(l.LiquidationAmount)
	if err != nil {
		return decimal.Zero, err
	}
	bought, err := Amount(l.AcquisitionAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return sold.Sub(bought), nil
}

// Statement is one account's activity over a date range at one institution.
type Statement struct {
	AccountNumber   string        `json:"account_number"`
	StartDate       civil.Date    `json:"start_date"`
	EndDate         civil.Date    `json:"end_date"`
	InstitutionName string        `json:"institution_name"`
	Holdings        []Holding     `json:"brokerage_holdings,omitempty"`
	Transactions    []Transaction `json:"brokerage_transactions,omitempty"`
	RealizedLots    []RealizedLot `json:"brokerage_realized_lots,omitempty"`
}

// Widen extends the statement range so that it covers d.
func (s *Statement) Widen(d civil.Date) {
	if d.Before(s.StartDate) {
		s.StartDate = d
	}
	if d.After(s.EndDate) {
		s.EndDate = d
	}
}

// AccountSet collects statements keyed by account number, keeping the order in
// which accounts were first seen.
type AccountSet struct {
	order []string
	byID  map[string]*Statement
}

func NewAccountSet() *AccountSet {
	return &AccountSet{byID: make(map[string]*Statement)}
}

// Get returns the statement for account, creating it with newFn on first sight.
// The boolean is true when the statement was just created.
func (a *AccountSet) Get(account string, newFn func() Statement) (*Statement, bool) {
	if s, ok := a.byID[account]; ok {
		return s, false
	}
	s := newFn()
	a.byID[account] = &s
	a.order = append(a.order, account)
	return &s, true
}

func (a *AccountSet) Len() int { return len(a.order) }

// Statements returns the collected statements in first-seen order.
func (a *AccountSet) Statements() []Statement {
	out := make([]Statement, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.byID[id])
	}
	return out
}

// ArchiveRecord describes one statement document filed into the archive.
type ArchiveRecord struct {
	ID          uuid.UUID  `json:"id"`
	Key         string     `json:"key"`
	URI         string     `json:"uri"`
	Source      string     `json:"source"`
	Institution string     `json:"institution"`
	Accounts    []string   `json:"accounts"` // redacted
	StartDate   civil.Date `json:"start_date"`
	EndDate     civil.Date `json:"end_date"`
	Statements  int        `json:"statements"`
	ArchivedAt  time.Time  `json:"archived_at"`
}
