// Package document wraps statement files on disk (CSV, Excel, PDF) behind a
// single interface that exposes their full text and any tables they contain.
//
// A Document is owned by the call path that opened it. Derived values (text,
// rows, the single table) are computed on first use and cached on the
// instance; Documents are not safe for concurrent use.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is the closed set of supported document kinds.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTablesUnsupported = errors.New("table extraction not supported for this format")
)

// Document is a statement file with lazily computed content.
type Document interface {
	Path() string
	Format() Format
	// Text returns the entire document in textual form.
	Text() (string, error)
	// Rows returns the raw cell grid. Only tabular formats support it.
	Rows() ([][]string, error)
	// ExtractTable locates one table region. A nil table with a nil error means not found.
	ExtractTable(q TableQuery) (*Table, error)
	// SingleTable parses a document made of exactly one table whose first row is the header.
	SingleTable() (*Table, error)
}

// Option customizes how a document is opened.
type Option func(*options)

type options struct {
	delimiter rune
	sheet     string
}

// WithDelimiter forces the CSV field delimiter instead of detecting it.
func WithDelimiter(d rune) Option {
	return func(o *options) { o.delimiter = d }
}

// WithSheet selects the Excel worksheet to read. The first sheet is used otherwise.
func WithSheet(name string) Option {
	return func(o *options) { o.sheet = name }
}

// FormatOf maps a file extension to its Format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Open returns the Document variant for path. The file must exist and have a
// known extension; nothing else is read until content is requested.
func Open(path string, opts ...Option) (Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open document: %s is a directory", path)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	switch format {
	case FormatCSV:
		return &CSVDocument{path: path, delimiter: o.delimiter}, nil
	case FormatExcel:
		return &ExcelDocument{path: path, sheet: o.sheet}, nil
	default:
		return &PDFDocument{path: path}, nil
	}
}
