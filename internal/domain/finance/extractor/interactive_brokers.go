package extractor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
	"github.com/webclinic017/serendipity/pkg/money"
)

const interactiveBrokers = "Interactive Brokers"

// Flex query section codes.
const (
	sectionPositions    = "POST"
	sectionConfirms     = "CONF"
	sectionTrades       = "TRNT"
	sectionCashActivity = "CTRN"
)

var (
	errMissingBOF = errors.New("flex statement has no BOF row")

	flexDateTimeLayouts = []string{"20060102;150405", "20060102 150405", "20060102"}

	ibCashTransactionTypes = map[string]finance.TransactionType{
		"Dividends":                finance.TransactionDividend,
		"Broker Interest Received": finance.TransactionInterest,
	}
)

// InteractiveBrokers reads flex query CSV exports with section headers
// (BOF, BOS, HEADER, DATA, EOS rows). Positions become holdings; trade
// confirmations, trades and cash activity become transactions; closing trades
// are expanded into realized lots.
type InteractiveBrokers struct {
	markers *markers
}

func NewInteractiveBrokers() *InteractiveBrokers {
	return &InteractiveBrokers{markers: newMarkers("ClientAccountID")}
}

func (ib *InteractiveBrokers) Institution() string { return interactiveBrokers }

func (ib *InteractiveBrokers) CanProcess(doc document.Document) bool {
	if doc.Format() != document.FormatCSV {
		return false
	}
	text, err := doc.Text()
	if err != nil {
		return false
	}
	return ib.markers.all(text)
}

func (ib *InteractiveBrokers) Statements(doc document.Document) ([]finance.Statement, error) {
	raw, err := doc.Rows()
	if err != nil {
		return nil, err
	}
	rows := trimRows(raw)
	if len(rows) == 0 || rows[0][0] != "BOF" {
		return nil, errMissingBOF
	}
	bof := rows[0]
	if len(bof) < 6 {
		return nil, fmt.Errorf("%w: BOF row has %d fields", ErrDateRange, len(bof))
	}
	start, err := parseDate(bof[4], "20060102")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(bof[5], "20060102")
	if err != nil {
		return nil, err
	}

	x := &flexExtraction{start: start, end: end, set: finance.NewAccountSet()}
	sections := groupFlexSections(rows)

	for _, row := range sections[sectionPositions] {
		if err := x.addHolding(row); err != nil {
			return nil, fmt.Errorf("positions: %w", err)
		}
	}
	for _, row := range sections[sectionConfirms] {
		if _, err := x.addTrade(row); err != nil {
			return nil, fmt.Errorf("trade confirmations: %w", err)
		}
	}
	trades := sections[sectionTrades]
	for i, row := range trades {
		if row.get("TransactionType") == "" {
			continue
		}
		leg, err := x.addTrade(row)
		if err != nil {
			return nil, fmt.Errorf("trades: %w", err)
		}
		if leg == nil || !row.closing() {
			continue
		}
		lots, err := realizedLots(trades, i, *leg)
		if err != nil {
			return nil, fmt.Errorf("trades: %w", err)
		}
		s := x.statement(row)
		s.RealizedLots = append(s.RealizedLots, lots...)
	}
	for _, row := range sections[sectionCashActivity] {
		if err := x.addCash(row); err != nil {
			return nil, fmt.Errorf("cash activity: %w", err)
		}
	}
	return x.set.Statements(), nil
}

// flexRow is one DATA row keyed by its section's HEADER columns.
type flexRow map[string]string

func (r flexRow) get(key string) string { return r[key] }

// fallback returns the value of the first key present in the row.
func (r flexRow) fallback(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return v
		}
	}
	return ""
}

// first returns the first non-empty value among keys.
func (r flexRow) first(keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

func (r flexRow) closing() bool {
	return strings.Contains(r.get("Open/CloseIndicator"), "C")
}

func (r flexRow) currency() string { return r.get("CurrencyPrimary") }

func trimRows(raw [][]string) [][]string {
	rows := make([][]string, 0, len(raw))
	for _, row := range raw {
		if len(row) == 0 {
			continue
		}
		trimmed := make([]string, len(row))
		for i, cell := range row {
			trimmed[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, trimmed)
	}
	return rows
}

// groupFlexSections collects DATA rows by the code of their enclosing BOS row.
func groupFlexSections(rows [][]string) map[string][]flexRow {
	sections := make(map[string][]flexRow)
	var (
		code    string
		columns []string
		open    bool
	)
	for _, row := range rows {
		switch row[0] {
		case "BOS":
			if len(row) > 1 {
				code, open = row[1], true
			}
		case "HEADER":
			if len(row) > 2 {
				columns = row[2:]
			}
		case "DATA":
			if !open || len(row) < 2 {
				continue
			}
			values := row[2:]
			rec := make(flexRow, len(columns))
			for i := 0; i < len(values) && i < len(columns); i++ {
				rec[columns[i]] = values[i]
			}
			sections[code] = append(sections[code], rec)
		case "EOS":
			code, columns, open = "", nil, false
		}
	}
	return sections
}

type flexExtraction struct {
	start, end civil.Date
	set        *finance.AccountSet
}

// statement returns the account's statement, or nil for rows without an account.
func (x *flexExtraction) statement(row flexRow) *finance.Statement {
	account := row.get("ClientAccountID")
	if account == "" {
		return nil
	}
	s, _ := x.set.Get(account, func() finance.Statement {
		return finance.Statement{
			AccountNumber:   account,
			StartDate:       x.start,
			EndDate:         x.end,
			InstitutionName: interactiveBrokers,
		}
	})
	return s
}

func (x *flexExtraction) addHolding(row flexRow) error {
	s := x.statement(row)
	if s == nil {
		return nil
	}
	cur := row.currency()
	cost, err := formatMoney(row.get("CostBasisMoney"), cur)
	if err != nil {
		return err
	}
	value, err := formatMoney(row.get("PositionValue"), cur)
	if err != nil {
		return err
	}
	quantity, err := finance.Amount(row.get("Quantity"))
	if err != nil {
		return err
	}
	s.Holdings = append(s.Holdings, finance.Holding{
		Symbol:    ibSymbol(row.get("Symbol")),
		Quantity:  quantity.String(),
		CostBasis: cost,
		Value:     finance.AssetValue{Start: value, End: value},
	})
	return nil
}

// tradeLeg keeps the numeric side of a trade for realized lot expansion.
type tradeLeg struct {
	transaction finance.Transaction
	currency    string
	quantity    decimal.Decimal
	amount      decimal.Decimal
}

// addTrade records a trade transaction. It returns nil for rows without an account.
func (x *flexExtraction) addTrade(row flexRow) (*tradeLeg, error) {
	s := x.statement(row)
	if s == nil {
		return nil, nil
	}
	cur := row.currency()

	quantity, err := finance.Amount(row.get("Quantity"))
	if err != nil {
		return nil, err
	}
	amountField := "Proceeds"
	if _, ok := row["NetCash"]; ok {
		amountField = "NetCash"
	}
	amount, err := finance.Amount(row.get(amountField))
	if err != nil {
		return nil, err
	}
	price, err := formatMoney(row.fallback("Price", "TradePrice"), cur)
	if err != nil {
		return nil, err
	}
	traded, err := parseFlexDate(row.fallback("Date/Time", "DateTime"))
	if err != nil {
		return nil, err
	}
	settled, err := parseFlexDate(row.first("SettleDate", "SettleDateTarget", "TradeDate"))
	if err != nil {
		return nil, err
	}

	kind := finance.TransactionSale
	if quantity.IsPositive() {
		kind = finance.TransactionPurchase
	}
	t := finance.Transaction{
		TradeDate:      traded,
		SettlementDate: settled,
		Status:         finance.StatusSettled,
		Type:           kind,
		Quantity:       quantity.String(),
		Price:          price,
		Amount:         money.NewFromDecimal(amount, cur).Display(),
		Symbol:         ibSymbol(row.get("Symbol")),
		Description:    row.get("Description"),
	}
	s.Transactions = append(s.Transactions, t)
	return &tradeLeg{transaction: t, currency: cur, quantity: quantity, amount: amount}, nil
}

// addCash records dividends and interest. Other cash activity, fees included,
// has no transaction type and is skipped.
func (x *flexExtraction) addCash(row flexRow) error {
	kind, ok := ibCashTransactionTypes[row.get("Type")]
	if !ok {
		return nil
	}
	s := x.statement(row)
	if s == nil {
		return nil
	}
	cur := row.currency()
	amount, err := formatMoney(row.get("Amount"), cur)
	if err != nil {
		return err
	}
	settled, err := parseFlexDate(row.get("SettleDate"))
	if err != nil {
		return err
	}
	traded, err := parseFlexDate(row.fallback("Date/Time", "DateTime"))
	if err != nil {
		return err
	}
	zero := money.NewFromDecimal(decimal.Zero, cur).Display()
	s.Transactions = append(s.Transactions, finance.Transaction{
		TradeDate:      traded,
		SettlementDate: settled,
		Status:         finance.StatusSettled,
		Type:           kind,
		Quantity:       "0",
		Price:          zero,
		Amount:         amount,
		Symbol:         row.get("Symbol"),
		Description:    row.get("Description"),
	})
	return nil
}

type openedLot struct {
	date      civil.Date
	price     decimal.Decimal
	costBasis decimal.Decimal
	quantity  decimal.Decimal
}

type washSale struct {
	quantity decimal.Decimal
	amount   decimal.Decimal
}

// realizedLots expands the closing trade at rows[i] using the lot rows that
// follow it: closed lots give the acquisition side, wash sale rows adjust the
// acquisition amounts in lot order.
func realizedLots(rows []flexRow, i int, closed tradeLeg) ([]finance.RealizedLot, error) {
	origin := rows[i]

	var (
		opened []openedLot
		washes []washSale
	)
	for _, row := range rows[i+1:] {
		hasOpenDate := row.fallback("OpenDateTime") != ""
		isClosed := row.closing() && hasOpenDate
		isWash := hasOpenDate && row.get("WhenRealized") != ""
		if !(isClosed || isWash) ||
			row.get("ClientAccountID") != origin.get("ClientAccountID") ||
			row.get("Symbol") != origin.get("Symbol") ||
			row.get("TransactionType") != "" {
			break
		}

		quantity, err := finance.Amount(row.get("Quantity"))
		if err != nil {
			return nil, err
		}
		if isClosed {
			date, err := parseFlexDate(row.get("OpenDateTime"))
			if err != nil {
				return nil, err
			}
			price, err := finance.Amount(row.get("TradePrice"))
			if err != nil {
				return nil, err
			}
			cost, err := finance.Amount(row.get("CostBasis"))
			if err != nil {
				return nil, err
			}
			opened = append(opened, openedLot{date: date, price: price, costBasis: cost, quantity: quantity})
			continue
		}
		pnl, err := finance.Amount(row.get("FifoPnlRealized"))
		if err != nil {
			return nil, err
		}
		washes = append(washes, washSale{quantity: quantity, amount: pnl})
	}

	if err := applyWashSales(opened, washes, origin.get("Symbol")); err != nil {
		return nil, err
	}

	soldQuantity := closed.quantity.Neg()
	lots := make([]finance.RealizedLot, 0, len(opened))
	for _, ol := range opened {
		liquidation := decimal.Zero
		if !soldQuantity.IsZero() {
			liquidation = closed.amount.Mul(ol.quantity).Div(soldQuantity)
		}
		lots = append(lots, finance.RealizedLot{
			Symbol:            closed.transaction.Symbol,
			Description:       closed.transaction.Description,
			Quantity:          ol.quantity.String(),
			AcquisitionDate:   ol.date,
			AcquisitionPrice:  money.NewFromDecimal(ol.price, closed.currency).Display(),
			AcquisitionAmount: money.NewFromDecimal(ol.costBasis, closed.currency).Display(),
			LiquidationDate:   closed.transaction.TradeDate,
			LiquidationPrice:  closed.transaction.Price,
			LiquidationAmount: money.NewFromDecimal(liquidation, closed.currency).Display(),
		})
	}
	return lots, nil
}

// applyWashSales moves each wash sale's disallowed loss onto the cost basis of
// the opened lots, consuming lot quantity in order.
func applyWashSales(opened []openedLot, washes []washSale, symbol string) error {
	if len(opened) == 0 {
		return nil
	}
	lot := -1
	remaining := decimal.Zero
	for w := 0; w < len(washes); w++ {
		wash := &washes[w]
		if wash.quantity.Sign() <= 0 {
			continue
		}
		if remaining.IsZero() {
			lot++
			if lot >= len(opened) {
				return fmt.Errorf("not all wash sales applied for %s", symbol)
			}
			remaining = opened[lot].quantity
		}

		adjustQuantity := decimal.Min(remaining, wash.quantity)
		adjustAmount := wash.amount.Mul(adjustQuantity).Div(wash.quantity)
		wash.quantity = wash.quantity.Sub(adjustQuantity)
		wash.amount = wash.amount.Sub(adjustAmount)
		opened[lot].costBasis = opened[lot].costBasis.Sub(adjustAmount)

		remaining = remaining.Sub(adjustQuantity)
		if remaining.IsNegative() {
			return fmt.Errorf("wash sale quantity exceeds lot quantity for %s", symbol)
		}
		if wash.quantity.IsPositive() {
			w--
		}
	}
	return nil
}

// ibSymbol drops the padding IB puts inside option symbols.
func ibSymbol(symbol string) string {
	return strings.Join(strings.Fields(symbol), "")
}

func parseFlexDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range flexDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid flex date %q", s)
}

// formatMoney renders a numeric field in currency, e.g. "$1,234.56".
func formatMoney(raw, currency string) (string, error) {
	d, err := finance.Amount(raw)
	if err != nil {
		return "", err
	}
	return money.NewFromDecimal(d, currency).Display(), nil
}
