package document

import "strings"

// TableQuery selects one table region inside a grid of rows.
//
// TableName and TableEndMarker are case-sensitive substrings matched against
// every cell of a row. The header is bounded by FirstColumnName/Index and
// LastColumnName/Index; names are substrings and win over indices when they
// match. Indices are zero based and -1 means unset.
type TableQuery struct {
	TableName        string
	FirstColumnName  string
	FirstColumnIndex int
	LastColumnName   string
	LastColumnIndex  int
	TableEndMarker   string
}

// NewTableQuery returns a query with both column indices unset.
func NewTableQuery() TableQuery {
	return TableQuery{FirstColumnIndex: -1, LastColumnIndex: -1}
}

func anyCellContains(row []string, s string) bool {
	for _, cell := range row {
		if strings.Contains(cell, s) {
			return true
		}
	}
	return false
}

// ExtractRows runs a three phase scan over rows: find the row naming the
// table, then the header row, then collect data rows until the end marker.
// Data rows whose slice of the header range is shorter than the header are
// skipped. It returns nil when the table or its header is never found.
func ExtractRows(rows [][]string, q TableQuery) *Table {
	var (
		tableFound  bool
		headerFound bool
		table       *Table
		first       = q.FirstColumnIndex
		last        = q.LastColumnIndex
	)

	for _, row := range rows {
		switch {
		case headerFound:
			if q.TableEndMarker != "" && anyCellContains(row, q.TableEndMarker) {
				return table
			}
			values := sliceRow(row, first, last+1)
			if len(values) == len(table.columns) {
				table.appendRow(values)
			}

		case tableFound:
			if !(q.FirstColumnName != "" && anyCellContains(row, q.FirstColumnName)) && first < 0 {
				continue
			}
			header := newTable(nil)
			firstFound := false
			col := -1
			for i, cell := range row {
				col = i
				if !firstFound {
					firstFound = (q.FirstColumnName != "" && strings.Contains(cell, q.FirstColumnName)) || i == first
					if firstFound {
						first = i
					}
				}
				if firstFound {
					name := strings.TrimSpace(cell)
					header.addColumn(name)
					if (q.LastColumnName != "" && strings.Contains(name, q.LastColumnName)) || i == last {
						break
					}
				}
			}
			last = col
			if firstFound && last >= 0 {
				headerFound = true
				table = header
			}

		case q.TableName == "" || anyCellContains(row, q.TableName):
			tableFound = true
		}
	}

	if !headerFound {
		return nil
	}
	return table
}

// sliceRow mirrors a clamped slice row[from:to].
func sliceRow(row []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(row) {
		to = len(row)
	}
	if from >= to {
		return nil
	}
	return row[from:to]
}

// singleTable treats the first row as the header. Short rows are padded with
// empty cells, long rows are truncated, blank rows are dropped.
func singleTable(rows [][]string) *Table {
	if len(rows) == 0 {
		return newTable(nil)
	}
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if !isBlank(row) {
			data = append(data, row)
		}
	}
	return NewTable(rows[0], data)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
