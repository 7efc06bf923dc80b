package document

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// wordGap is the horizontal gap, as a fraction of the font size, above which
// two neighbouring glyphs belong to different words.
const wordGap = 0.2

// PDFDocument exposes the plain text of a PDF. Tables are not extracted.
type PDFDocument struct {
	path string

	text   string
	loaded bool
}

func (d *PDFDocument) Path() string   { return d.path }
func (d *PDFDocument) Format() Format { return FormatPDF }

// Text lays out every page as lines of words, top to bottom. Words on a line
// are separated by a single space and lines by a newline.
func (d *PDFDocument) Text() (string, error) {
	if d.loaded {
		return d.text, nil
	}

	f, r, err := pdf.Open(d.path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lines, err := pageLines(p)
		if err != nil {
			return "", fmt.Errorf("failed to extract text of page %d: %w", i, err)
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	d.text = b.String()
	d.loaded = true
	return d.text, nil
}

func (d *PDFDocument) Rows() ([][]string, error) {
	return nil, ErrTablesUnsupported
}

func (d *PDFDocument) ExtractTable(TableQuery) (*Table, error) {
	return nil, ErrTablesUnsupported
}

func (d *PDFDocument) SingleTable() (*Table, error) {
	return nil, ErrTablesUnsupported
}

// pageLines groups the glyphs of a page by baseline and joins each group
// into a line of text.
func pageLines(p pdf.Page) (lines []string, err error) {
	// the pdf package reports malformed content streams by panicking
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("malformed content: %v", r)
		}
	}()

	rows := make(map[int64][]pdf.Text)
	for _, t := range p.Content().Text {
		y := int64(math.Round(t.Y))
		rows[y] = append(rows[y], t)
	}

	baselines := make([]int64, 0, len(rows))
	for y := range rows {
		baselines = append(baselines, y)
	}
	sort.Slice(baselines, func(i, j int) bool { return baselines[i] > baselines[j] })

	for _, y := range baselines {
		if line := joinGlyphs(rows[y]); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// joinGlyphs orders the glyphs of one line left to right and inserts a space
// wherever the gap between them is wider than a letter spacing. Glyphs that
// share a position keep their stream order.
func joinGlyphs(glyphs []pdf.Text) string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var b strings.Builder
	space := false
	end := math.Inf(-1)
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			space = true
			continue
		}
		if g.X-end > wordGap*math.Max(g.FontSize, 1) {
			space = true
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteString(g.S)
		end = g.X + g.W
	}
	return b.String()
}
