package finance

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/webclinic017/serendipity/pkg/money"
)

// compactOptionRe matches the compact option codes used in Merrill Edge
// exports: underlying, '#', month letter, day, year, strike divisor letter and
// the strike payload, e.g. "FSLY#A2023D450000".
var compactOptionRe = regexp.MustCompile(`([a-zA-Z]+)#([a-zA-Z])([0-9]{2})([0-9]{2})([a-zA-Z])([0-9]+)`)

// SymbolToOCC converts a compact option code into an OCC option symbol
// (underlying, yymmdd, C or P, strike in thousandths padded to 8 digits).
//
// The month letter counts from 'A' = 1; values above 12 are puts. The divisor
// letter gives the power of ten the payload is divided by before rounding the
// strike to whole units. Symbols that are not compact option codes are
// returned unchanged.
func SymbolToOCC(symbol string) string {
	m := compactOptionRe.FindStringSubmatch(symbol)
	if m == nil {
		return symbol
	}
	underlying, monthLetter, day, year, divisorLetter, payload := m[1], m[2], m[3], m[4], m[5], m[6]

	divisor := int32(letterIndex(divisorLetter))
	raw, err := decimal.NewFromString(payload)
	if err != nil {
		return symbol
	}
	strike := raw.Shift(-divisor).RoundBank(0).Mul(decimal.NewFromInt(1000)).IntPart()

	month := letterIndex(monthLetter)
	side := "C"
	if month > 12 {
		month -= 12
		side = "P"
	}
	return fmt.Sprintf("%s%s%02d%s%s%08d", underlying, year, month, day, side, strike)
}

// letterIndex maps 'A' to 1, 'B' to 2 and so on, counting from uppercase 'A'
// for any ASCII letter.
func letterIndex(s string) int {
	return int(s[0]) - 'A' + 1
}

// FidelityOptionToOCC rebuilds an OCC symbol from a Fidelity positions row.
// Option rows carry a dashed symbol ("-AAPL230120C150") and a description such
// as "AAPL JAN 20 2023 $150 CALL"; other symbols are returned unchanged.
func FidelityOptionToOCC(symbol, description string) (string, error) {
	if !strings.Contains(symbol, "-") {
		return symbol, nil
	}
	p := strings.Fields(description)
	if len(p) < 6 {
		return "", fmt.Errorf("unexpected option description %q", description)
	}
	expiry, err := time.Parse("Jan 02 2006", p[1]+" "+p[2]+" "+p[3])
	if err != nil {
		return "", fmt.Errorf("invalid option expiry in %q: %w", description, err)
	}
	strike, err := NormalizeNumber(p[4])
	if err != nil {
		return "", fmt.Errorf("invalid option strike in %q: %w", description, err)
	}
	side := "P"
	if p[5] == "CALL" {
		side = "C"
	}
	thousandths := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	return fmt.Sprintf("%s%s%s%08d", p[0], expiry.Format("060102"), side, thousandths), nil
}

// NormalizeNumber parses a statement number: "$1,234.50" is 1234.50 and the
// accounting form "(1,234.50)" is negative.
func NormalizeNumber(s string) (decimal.Decimal, error) {
	return money.ParseDecimal(s)
}

// Amount parses a formatted monetary field. An empty field is zero.
func Amount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return money.ParseDecimal(s)
}

// RedactAccount keeps the last four characters of account and masks the rest
// with 'X', preserving the original length.
func RedactAccount(account string) string {
	const visible = 4
	r := []rune(account)
	if len(r) <= visible {
		return account
	}
	return strings.Repeat("X", len(r)-visible) + string(r[len(r)-visible:])
}

// ShortAccount is the last four characters left-padded with 'x' to eight.
func ShortAccount(account string) string {
	r := []rune(account)
	if len(r) > 4 {
		r = r[len(r)-4:]
	}
	return strings.Repeat("x", 8-len(r)) + string(r)
}
