// Package extractor turns institution documents into normalized statements.
//
// Each institution gets an Extractor: a stable name, a side-effect-free
// CanProcess predicate and Statements, which performs the field mapping. The
// Registry holds extractors in a fixed priority order and picks the first one
// that applies to a document.
package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cloudflare/ahocorasick"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
)

var (
	// ErrNoExtractor means no registered extractor applies to the document.
	ErrNoExtractor = errors.New("no statement extractor found")
	// ErrFieldNotFound means a labeled field is missing from the document text.
	ErrFieldNotFound = errors.New("field not found")
	// ErrDateRange means a statement period is not exactly two dates.
	ErrDateRange = errors.New("malformed statement date range")
	// ErrNoStatements means a document yielded no statements.
	ErrNoStatements = errors.New("document contains no statements")
	// ErrUnknownTransaction means an activity description has no transaction type.
	ErrUnknownTransaction = errors.New("unknown transaction description")
)

// Extractor maps one institution's documents into statements.
type Extractor interface {
	// Institution is the stable institution name written into statements.
	Institution() string
	// CanProcess reports whether doc looks like this institution's document.
	CanProcess(doc document.Document) bool
	// Statements extracts one statement per account in doc, in first-seen order.
	Statements(doc document.Document) ([]finance.Statement, error)
}

// Statement returns the first statement e extracts from doc.
func Statement(e Extractor, doc document.Document) (finance.Statement, error) {
	statements, err := e.Statements(doc)
	if err != nil {
		return finance.Statement{}, err
	}
	if len(statements) == 0 {
		return finance.Statement{}, ErrNoStatements
	}
	return statements[0], nil
}

// extractString returns the single capture group of re in s.
func extractString(re *regexp.Regexp, s string) (string, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrFieldNotFound, re)
	}
	if len(m) != 2 {
		return "", fmt.Errorf("%w: %s has %d capture groups", ErrFieldNotFound, re, len(m)-1)
	}
	return strings.TrimSpace(m[1]), nil
}

// parseDateRange splits "<start> - <end>" and parses both halves with layout.
func parseDateRange(s, layout string) (civil.Date, civil.Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: %q", ErrDateRange, s)
	}
	start, err := parseDate(parts[0], layout)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	end, err := parseDate(parts[1], layout)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	return start, end, nil
}

func parseDate(s, layout string) (civil.Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return civil.DateOf(t), nil
}

// optionalDate parses s unless it is empty or a "--" placeholder.
func optionalDate(s, layout string) (*civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return nil, nil
	}
	d, err := parseDate(s, layout)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// dollars prefixes a non-empty amount with a dollar sign.
func dollars(s string) string {
	if s == "" {
		return ""
	}
	return "$" + s
}

// markers finds a fixed set of phrases in a document's text in a single pass.
type markers struct {
	phrases []string

	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func newMarkers(phrases ...string) *markers {
	return &markers{phrases: phrases, matcher: ahocorasick.NewStringMatcher(phrases)}
}

// found returns which phrases occur in text, indexed like phrases.
func (m *markers) found(text string) []bool {
	m.mu.Lock()
	hits := m.matcher.Match([]byte(text))
	m.mu.Unlock()

	out := make([]bool, len(m.phrases))
	for _, i := range hits {
		if i >= 0 && i < len(out) {
			out[i] = true
		}
	}
	return out
}

// all reports whether every phrase occurs in text.
func (m *markers) all(text string) bool {
	for _, ok := range m.found(text) {
		if !ok {
			return false
		}
	}
	return true
}

// any reports whether at least one phrase occurs in text.
func (m *markers) any(text string) bool {
	for _, ok := range m.found(text) {
		if ok {
			return true
		}
	}
	return false
}

// isTabular reports whether doc supports table extraction.
func isTabular(doc document.Document) bool {
	return doc.Format() == document.FormatCSV || doc.Format() == document.FormatExcel
}
