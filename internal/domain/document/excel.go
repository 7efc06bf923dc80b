package document

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelDocument is a workbook; one worksheet is read as a grid of cells.
type ExcelDocument struct {
	path  string
	sheet string

	rows   [][]string
	text   string
	loaded bool
	single *Table
}

func (d *ExcelDocument) Path() string   { return d.path }
func (d *ExcelDocument) Format() Format { return FormatExcel }

// Sheet returns the worksheet being read, resolving the default on first load.
func (d *ExcelDocument) Sheet() (string, error) {
	if _, err := d.Rows(); err != nil {
		return "", err
	}
	return d.sheet, nil
}

func (d *ExcelDocument) Rows() ([][]string, error) {
	if d.loaded {
		return d.rows, nil
	}

	f, err := excelize.OpenFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if d.sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets in %s", d.path)
		}
		d.sheet = sheets[0]
	}

	rows, err := f.GetRows(d.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", d.sheet, err)
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, ",")
	}
	d.rows = rows
	d.text = strings.Join(lines, "\n")
	d.loaded = true
	return d.rows, nil
}

// Text renders each row as comma-joined cells, one row per line.
func (d *ExcelDocument) Text() (string, error) {
	if _, err := d.Rows(); err != nil {
		return "", err
	}
	return d.text, nil
}

func (d *ExcelDocument) ExtractTable(q TableQuery) (*Table, error) {
	rows, err := d.Rows()
	if err != nil {
		return nil, err
	}
	return ExtractRows(rows, q), nil
}

func (d *ExcelDocument) SingleTable() (*Table, error) {
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
