package document

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CSVDocument is a delimited text file.
type CSVDocument struct {
	path      string
	delimiter rune

	raw    []byte
	rows   [][]string
	single *Table
}

func (d *CSVDocument) Path() string   { return d.path }
func (d *CSVDocument) Format() Format { return FormatCSV }

func (d *CSVDocument) load() ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	d.raw = bytes.TrimPrefix(data, []byte("\ufeff"))
	return d.raw, nil
}

// Text returns the file contents without a leading byte order mark.
func (d *CSVDocument) Text() (string, error) {
	data, err := d.load()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Delimiter returns the configured or detected field separator.
func (d *CSVDocument) Delimiter() (rune, error) {
	if d.delimiter != 0 {
		return d.delimiter, nil
	}
	data, err := d.load()
	if err != nil {
		return 0, err
	}
	d.delimiter = DetectDelimiter(data)
	return d.delimiter, nil
}

// Rows parses the whole file. Rows may have different lengths.
func (d *CSVDocument) Rows() ([][]string, error) {
	if d.rows != nil {
		return d.rows, nil
	}
	data, err := d.load()
	if err != nil {
		return nil, err
	}
	delim, err := d.Delimiter()
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &ParseError{Row: perr.StartLine, Column: perr.Column, Message: perr.Err.Error()}
		}
		return nil, fmt.Errorf("failed to parse %s: %w", d.path, err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	d.rows = rows
	return d.rows, nil
}

func (d *CSVDocument) ExtractTable(q TableQuery) (*Table, error) {
	rows, err := d.Rows()
	if err != nil {
		return nil, err
	}
	return ExtractRows(rows, q), nil
}

func (d *CSVDocument) SingleTable() (*Table, error) {
	if d.single != nil {
		return d.single, nil
	}
	rows, err := d.Rows()
	if err != nil {
		return nil, err
	}
	d.single = singleTable(rows)
	return d.single, nil
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// DetectDelimiter picks the candidate that splits the most sample lines into
// the same number of fields, ignoring separators inside quotes. Ties go to
// the larger field count, then to the comma.
func DetectDelimiter(data []byte) rune {
	const sampleLines = 20

	lines := strings.SplitN(string(data), "\n", sampleLines+1)
	if len(lines) > sampleLines {
		lines = lines[:sampleLines]
	}

	best, bestLines, bestFields := ',', 0, 0
	for _, d := range candidateDelimiters {
		consistent, fields := fieldConsistency(lines, d)
		if consistent > bestLines || (consistent == bestLines && fields > bestFields) {
			best, bestLines, bestFields = d, consistent, fields
		}
	}
	return best
}

// fieldConsistency returns how many lines share the most common separator
// count for d, and that count. Lines without d are ignored.
func fieldConsistency(lines []string, d rune) (int, int) {
	freq := make(map[int]int)
	for _, line := range lines {
		if n := countOutsideQuotes(strings.TrimRight(line, "\r"), d); n > 0 {
			freq[n]++
		}
	}
	matched, count := 0, 0
	for n, c := range freq {
		if c > matched || (c == matched && n > count) {
			matched, count = c, n
		}
	}
	return matched, count
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == d && !inQuotes:
			n++
		}
	}
	return n
}
