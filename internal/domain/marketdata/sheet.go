package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheet is a worksheet whose first row holds column headers. Row and column
// indexes are zero based.
type Sheet interface {
	Rows(ctx context.Context) ([][]string, error)
	SetCell(row, col int, value float64) error
	Save(ctx context.Context) error
}

// XLSXSheet is one worksheet of a local Excel workbook.
type XLSXSheet struct {
	file  *excelize.File
	sheet string
}

// OpenXLSXSheet opens the named worksheet of the workbook at path. An empty
// name selects the first worksheet.
func OpenXLSXSheet(path, name string) (*XLSXSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	if name == "" {
		name = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, name, path)
	}
	return &XLSXSheet{file: f, sheet: name}, nil
}

func (s *XLSXSheet) Rows(_ context.Context) ([][]string, error) {
	return s.file.GetRows(s.sheet)
}

func (s *XLSXSheet) SetCell(row, col int, value float64) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return s.file.SetCellValue(s.sheet, cell, value)
}

func (s *XLSXSheet) Save(_ context.Context) error {
	return s.file.Save()
}

func (s *XLSXSheet) Close() error {
	return s.file.Close()
}

// GoogleSheet is one tab of a Google spreadsheet. Cell updates are buffered
// and sent in a single batch by Save.
type GoogleSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	pending       []*sheets.ValueRange
}

// NewGoogleSheet authenticates with a service account credentials file.
func NewGoogleSheet(ctx context.Context, credentialsFile, spreadsheetID, name string, opts ...option.ClientOption) (*GoogleSheet, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return NewGoogleSheetWithService(service, spreadsheetID, name)
}

func NewGoogleSheetWithService(service *sheets.Service, spreadsheetID, name string) (*GoogleSheet, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if name == "" {
		return nil, fmt.Errorf("%w: sheet name is required", ErrSheetNotFound)
	}
	return &GoogleSheet{service: service, spreadsheetID: spreadsheetID, sheet: name}, nil
}

func (s *GoogleSheet) Rows(ctx context.Context) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", s.sheet, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, values := range resp.Values {
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *GoogleSheet) SetCell(row, col int, value float64) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, &sheets.ValueRange{
		Range:  fmt.Sprintf("'%s'!%s", s.sheet, cell),
		Values: [][]interface{}{{value}},
	})
	return nil
}

func (s *GoogleSheet) Save(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             s.pending,
	}
	if _, err := s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update sheet %q: %w", s.sheet, err)
	}
	s.pending = nil
	return nil
}
