// Package categorization assigns spending categories to brokerage
// transactions, for exports whose consumers group by category.
package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/webclinic017/serendipity/internal/domain/finance"
)

// Rule assigns Category to transactions whose description contains Pattern.
type Rule struct {
	Pattern  string
	Category string
	Priority int // higher wins when several rules match
}

// Category names used by Tiller Money's default category sheet.
const (
	CategoryInvestments     = "Investments"
	CategoryDividends       = "Dividends"
	CategoryInterest        = "Interest"
	CategoryInterestExpense = "Interest Expense"
	CategoryTransfer        = "Transfer"
	CategoryTaxes           = "Taxes"
	CategoryFees            = "Fees"
)

// typeCategories is the fallback when no description rule matches.
var typeCategories = map[finance.TransactionType]string{
	finance.TransactionPurchase:       CategoryInvestments,
	finance.TransactionSale:           CategoryInvestments,
	finance.TransactionExchange:       CategoryInvestments,
	finance.TransactionOptionAssigned: CategoryInvestments,
	finance.TransactionOptionExpired:  CategoryInvestments,
	finance.TransactionDividend:       CategoryDividends,
	finance.TransactionInterest:       CategoryInterest,
	finance.TransactionDeposit:        CategoryTransfer,
	finance.TransactionWithdrawal:     CategoryTransfer,
	finance.TransactionTransfer:       CategoryTransfer,
}

// DefaultRules catch the descriptions whose category differs from what the
// transaction type suggests.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "FOREIGN TAX", Category: CategoryTaxes, Priority: 100},
		{Pattern: "TAX WITHHELD", Category: CategoryTaxes, Priority: 100},
		{Pattern: "WITHHOLDING", Category: CategoryTaxes, Priority: 100},
		{Pattern: "MARGIN INTEREST", Category: CategoryInterestExpense, Priority: 90},
		{Pattern: "DEBIT INTEREST", Category: CategoryInterestExpense, Priority: 90},
		{Pattern: "ADR FEE", Category: CategoryFees, Priority: 80},
		{Pattern: "COMMISSION ADJ", Category: CategoryFees, Priority: 80},
		{Pattern: "REINVEST", Category: CategoryInvestments, Priority: 50},
	}
}

// Engine matches every rule pattern in a single pass using Aho-Corasick.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string // unique patterns in matcher order
	rules    [][]Rule // rules sharing each pattern
	mu       sync.RWMutex
}

// NewEngine creates an engine from rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Default returns an engine with DefaultRules.
func Default() *Engine {
	return NewEngine(DefaultRules())
}

// Build replaces the engine's rules. Patterns are matched case
// insensitively; rules with the same pattern are grouped.
func (e *Engine) Build(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	patternToIndex := make(map[string]int, len(rules))
	patterns := make([]string, 0, len(rules))
	grouped := make([][]Rule, 0, len(rules))

	for _, rule := range rules {
		p := strings.ToUpper(strings.TrimSpace(rule.Pattern))
		if p == "" {
			continue
		}
		if idx, ok := patternToIndex[p]; ok {
			grouped[idx] = append(grouped[idx], rule)
			continue
		}
		patternToIndex[p] = len(patterns)
		patterns = append(patterns, p)
		grouped = append(grouped, []Rule{rule})
	}

	e.patterns = patterns
	e.rules = grouped
	e.matcher = nil
	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(patterns)
	}
}

// Match returns the highest priority rule matching description, or nil.
// Ties go to the rule registered first.
func (e *Engine) Match(description string) *Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil || description == "" {
		return nil
	}

	var (
		best      *Rule
		bestIndex int
	)
	for _, idx := range e.matcher.Match([]byte(strings.ToUpper(description))) {
		if idx < 0 || idx >= len(e.rules) {
			continue
		}
		for i := range e.rules[idx] {
			r := e.rules[idx][i]
			if best == nil || r.Priority > best.Priority || (r.Priority == best.Priority && idx < bestIndex) {
				best, bestIndex = &r, idx
			}
		}
	}
	return best
}

// Category returns the category of t: the best description rule, otherwise
// the default for its transaction type, otherwise "".
func (e *Engine) Category(t finance.Transaction) string {
	if r := e.Match(t.Description); r != nil {
		return r.Category
	}
	return typeCategories[t.Type]
}

// PatternCount returns the number of distinct patterns loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}
