package document

import (
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Table maps unique, ordered column names to equally long value sequences.
type Table struct {
	columns []string
	index   map[string]int
	data    [][]string // data[column][row]
}

func newTable(header []string) *Table {
	t := &Table{
		columns: make([]string, 0, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for _, name := range header {
		t.addColumn(name)
	}
	return t
}

// NewTable builds a table from a header and data rows. Header names and values
// are trimmed; short rows are padded with empty cells and long rows truncated.
func NewTable(header []string, rows [][]string) *Table {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}
	t := newTable(names)
	for _, row := range rows {
		values := make([]string, len(names))
		copy(values, row)
		t.appendRow(values)
	}
	return t
}

// addColumn registers a column. Repeated names get a ".N" suffix so every key stays unique.
func (t *Table) addColumn(name string) {
	unique := name
	for n := 1; ; n++ {
		if _, taken := t.index[unique]; !taken {
			break
		}
		unique = name + "." + strconv.Itoa(n)
	}
	t.index[unique] = len(t.columns)
	t.columns = append(t.columns, unique)
	t.data = append(t.data, nil)
}

// appendRow adds one value per column. Callers guarantee len(values) == len(columns).
func (t *Table) appendRow(values []string) {
	for i, v := range values {
		t.data[i] = append(t.data[i], strings.TrimSpace(v))
	}
}

// Columns returns the column names in header order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether name is a column.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// RowCount is the shared length of every column.
func (t *Table) RowCount() int {
	if t == nil || len(t.data) == 0 {
		return 0
	}
	return len(t.data[0])
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	if t == nil {
		return 0, 0
	}
	return t.RowCount(), len(t.columns)
}

// Column returns the values of one column, or nil if absent.
func (t *Table) Column(name string) []string {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(t.data[i]))
	copy(out, t.data[i])
	return out
}

// Row returns the i-th row as a name-addressable view.
func (t *Table) Row(i int) Row {
	return Row{table: t, i: i}
}

// Rows returns every row in order.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.RowCount())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Records returns the table as a header row followed by data rows.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, t.RowCount()+1)
	records = append(records, t.Columns())
	for i := 0; i < t.RowCount(); i++ {
		record := make([]string, len(t.columns))
		for c := range t.columns {
			record[c] = t.data[c][i]
		}
		records = append(records, record)
	}
	return records
}

// Decode unmarshals every row into out, a pointer to a slice of structs
// tagged with `csv:"<column name>"`.
func (t *Table) Decode(out any) error {
	return gocsv.UnmarshalCSV(&tableReader{records: t.Records()}, out)
}

// Row is a view over one table row.
type Row struct {
	table *Table
	i     int
}

// Get returns the value in column name, or "" if the column is absent.
func (r Row) Get(name string) string {
	c, ok := r.table.index[name]
	if !ok {
		return ""
	}
	return r.table.data[c][r.i]
}

// Has reports whether the row's table has column name.
func (r Row) Has(name string) bool {
	return r.table.Has(name)
}

// First returns the first non-empty value among the named columns.
func (r Row) First(names ...string) string {
	for _, name := range names {
		if v := r.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// tableReader feeds table records to gocsv.
type tableReader struct {
	records [][]string
	pos     int
}

func (r *tableReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *tableReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}
