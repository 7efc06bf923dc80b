package extractor

import (
	"regexp"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
)

// labeledStatement extracts a single statement from a document whose text
// carries an account label and a "<start> - <end>" period label.
type labeledStatement struct {
	institution string
	accountRe   *regexp.Regexp
	periodRe    *regexp.Regexp
	dateLayout  string
}

func (l labeledStatement) statements(doc document.Document) ([]finance.Statement, error) {
	text, err := doc.Text()
	if err != nil {
		return nil, err
	}
	account, err := extractString(l.accountRe, text)
	if err != nil {
		return nil, err
	}
	period, err := extractString(l.periodRe, text)
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(period, l.dateLayout)
	if err != nil {
		return nil, err
	}
	return []finance.Statement{{
		AccountNumber:   account,
		StartDate:       start,
		EndDate:         end,
		InstitutionName: l.institution,
	}}, nil
}

// Chase reads Chase PDF account statements.
type Chase struct {
	labeledStatement
	markers *markers
}

func NewChase() *Chase {
	return &Chase{
		labeledStatement: labeledStatement{
			institution: "Chase",
			accountRe:   regexp.MustCompile(`Account number:\s+([\w ]+)`),
			periodRe:    regexp.MustCompile(`Opening/Closing Date\s+([\w -/]+)`),
			dateLayout:  "1/2/06",
		},
		markers: newMarkers("www.chase.com"),
	}
}

func (c *Chase) Institution() string { return c.institution }

func (c *Chase) CanProcess(doc document.Document) bool {
	text, err := doc.Text()
	if err != nil {
		return false
	}
	return c.markers.all(text)
}

func (c *Chase) Statements(doc document.Document) ([]finance.Statement, error) {
	return c.statements(doc)
}

// Fidelity reads Fidelity PDF investment reports.
type Fidelity struct {
	labeledStatement
	markers *markers
}

func NewFidelity() *Fidelity {
	return &Fidelity{
		labeledStatement: labeledStatement{
			institution: "Fidelity",
			accountRe:   regexp.MustCompile(`Account Number:\s+([\w-]+)`),
			periodRe:    regexp.MustCompile(`INVESTMENT REPORT\s+([\w ,-]+)`),
			dateLayout:  "January 2, 2006",
		},
		markers: newMarkers("Fidelity", "Investment Report"),
	}
}

func (f *Fidelity) Institution() string { return f.institution }

// CanProcess requires both "Fidelity" and "Investment Report" in the text.
func (f *Fidelity) CanProcess(doc document.Document) bool {
	text, err := doc.Text()
	if err != nil {
		return false
	}
	return f.markers.all(text)
}

func (f *Fidelity) Statements(doc document.Document) ([]finance.Statement, error) {
	return f.statements(doc)
}
