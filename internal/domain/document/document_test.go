package document

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testDataCSV = "testdata/test_data.csv"

func openCSV(t *testing.T, path string) Document {
	t.Helper()
	doc, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, FormatCSV, doc.Format())
	return doc
}

func TestOpen(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Open("testdata/not_a_real_file.pdf")
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("unknown extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "statement.docx")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := Open(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("extension is case insensitive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "STATEMENT.CSV")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

		doc, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, FormatCSV, doc.Format())
		assert.Equal(t, path, doc.Path())
	})

	t.Run("format by extension", func(t *testing.T) {
		tests := map[string]Format{
			"a.csv":  FormatCSV,
			"a.xlsx": FormatExcel,
			"a.pdf":  FormatPDF,
		}
		for name, want := range tests {
			got, err := FormatOf(name)
			require.NoError(t, err)
			assert.Equal(t, want, got, name)
		}
	})

	t.Run("legacy excel workbooks are rejected", func(t *testing.T) {
		_, err := FormatOf("holdings.xls")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestExtractTable(t *testing.T) {
	doc := openCSV(t, testDataCSV)

	tests := []struct {
		name     string
		query    TableQuery
		wantRows int
		wantCols int
	}{
		{
			name:     "column names",
			query:    TableQuery{TableName: "Test Table 1", FirstColumnName: "col1", FirstColumnIndex: -1, LastColumnName: "col4", LastColumnIndex: -1, TableEndMarker: "End Table"},
			wantRows: 2, wantCols: 4,
		},
		{
			name:     "column indices",
			query:    TableQuery{TableName: "Test Table 1", FirstColumnIndex: 0, LastColumnIndex: 3, TableEndMarker: "End Table"},
			wantRows: 2, wantCols: 4,
		},
		{
			name:     "partial columns",
			query:    TableQuery{TableName: "Test Table 1", FirstColumnName: "col1", FirstColumnIndex: -1, LastColumnName: "col3", LastColumnIndex: -1, TableEndMarker: "End Table"},
			wantRows: 2, wantCols: 3,
		},
		{
			name:     "no table name matches first region",
			query:    TableQuery{FirstColumnName: "col1", FirstColumnIndex: -1, LastColumnName: "col3", LastColumnIndex: -1, TableEndMarker: "End Table"},
			wantRows: 2, wantCols: 3,
		},
		{
			name:     "no end marker runs to end of file",
			query:    TableQuery{TableName: "Test Table 3", FirstColumnName: "col1", FirstColumnIndex: -1, LastColumnName: "col5", LastColumnIndex: -1},
			wantRows: 3, wantCols: 2,
		},
		{
			name:     "column indices second table",
			query:    TableQuery{TableName: "Test Table 3", FirstColumnIndex: 0, LastColumnIndex: 1, TableEndMarker: "End Table"},
			wantRows: 3, wantCols: 2,
		},
		{
			name:     "no end marker keeps rows wide enough for the header",
			query:    TableQuery{TableName: "Test Table 1", FirstColumnName: "col1", FirstColumnIndex: -1, LastColumnName: "col4", LastColumnIndex: -1},
			wantRows: 3, wantCols: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := doc.ExtractTable(tt.query)
			require.NoError(t, err)
			require.NotNil(t, table)

			rows, cols := table.Shape()
			assert.Equal(t, tt.wantRows, rows)
			assert.Equal(t, tt.wantCols, cols)
			for _, c := range table.Columns() {
				assert.Len(t, table.Column(c), rows)
			}
		})
	}

	t.Run("absent table is not found", func(t *testing.T) {
		q := NewTableQuery()
		q.TableName = "Test Table 2"
		q.FirstColumnIndex = 0
		q.LastColumnIndex = 1
		q.TableEndMarker = "End Table"

		table, err := doc.ExtractTable(q)
		require.NoError(t, err)
		assert.Nil(t, table)
	})

	t.Run("values are trimmed", func(t *testing.T) {
		q := NewTableQuery()
		q.TableName = "Test Table 3"
		q.FirstColumnName = "col1"
		q.LastColumnName = "col2"

		table, err := doc.ExtractTable(q)
		require.NoError(t, err)
		assert.Equal(t, []string{"col1", "col2"}, table.Columns())
		assert.Equal(t, []string{"c2", "d2", "e2"}, table.Column("col2"))
		assert.Equal(t, "d1", table.Row(1).Get("col1"))
	})
}

func TestExtractRows(t *testing.T) {
	t.Run("name and index select the same shape", func(t *testing.T) {
		rows := [][]string{
			{"Positions"},
			{"", "Symbol", "Qty", "Value", "junk"},
			{"", "T", "300", "8,496.00", "x"},
			{"", "VZ", "10", "600.00", "y"},
		}
		byName := ExtractRows(rows, TableQuery{TableName: "Positions", FirstColumnName: "Symbol", FirstColumnIndex: -1, LastColumnName: "Value", LastColumnIndex: -1})
		byIndex := ExtractRows(rows, TableQuery{TableName: "Positions", FirstColumnIndex: 1, LastColumnIndex: 3})

		require.NotNil(t, byName)
		require.NotNil(t, byIndex)
		r1, c1 := byName.Shape()
		r2, c2 := byIndex.Shape()
		assert.Equal(t, r1, r2)
		assert.Equal(t, c1, c2)
		assert.Equal(t, []string{"Symbol", "Qty", "Value"}, byName.Columns())
		assert.Equal(t, []string{"T", "VZ"}, byIndex.Column("Symbol"))
	})

	t.Run("end marker matches substrings", func(t *testing.T) {
		rows := [][]string{
			{"T"},
			{"a", "b"},
			{"1", "2"},
			{"Total of all", "3"},
			{"4", "5"},
		}
		table := ExtractRows(rows, TableQuery{TableName: "T", FirstColumnIndex: 0, LastColumnIndex: 1, TableEndMarker: "Total"})
		require.NotNil(t, table)
		assert.Equal(t, 1, table.RowCount())
	})

	t.Run("table found without header", func(t *testing.T) {
		rows := [][]string{{"T"}, {"x", "y"}}
		assert.Nil(t, ExtractRows(rows, TableQuery{TableName: "T", FirstColumnName: "missing", FirstColumnIndex: -1, LastColumnIndex: -1}))
	})

	t.Run("matching is case sensitive", func(t *testing.T) {
		rows := [][]string{{"test table"}, {"a", "b"}, {"1", "2"}}
		assert.Nil(t, ExtractRows(rows, TableQuery{TableName: "Test Table", FirstColumnIndex: 0, LastColumnIndex: 1}))
	})

	t.Run("duplicate header names stay unique", func(t *testing.T) {
		rows := [][]string{{"T"}, {"Amount", "Amount"}, {"1", "2"}}
		table := ExtractRows(rows, TableQuery{TableName: "T", FirstColumnIndex: 0, LastColumnIndex: 1})
		require.NotNil(t, table)
		assert.Equal(t, []string{"Amount", "Amount.1"}, table.Columns())
		assert.Equal(t, "2", table.Row(0).Get("Amount.1"))
	})
}

func TestSingleTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holdings.csv")
	body := "Account #,Symbol ,Quantity\n" +
		"11A-11B11,T,300\n" +
		"\n" +
		"11A-11B11,VZ\n" +
		"22A-11B11,\"AAPL\",\"1,000\",extra\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	doc := openCSV(t, path)
	table, err := doc.SingleTable()
	require.NoError(t, err)

	assert.Equal(t, []string{"Account #", "Symbol", "Quantity"}, table.Columns())
	assert.Equal(t, 3, table.RowCount())
	assert.Equal(t, "", table.Row(1).Get("Quantity"))
	assert.Equal(t, "1,000", table.Row(2).Get("Quantity"))
	assert.True(t, table.Has("Symbol"))
	assert.False(t, table.Has("Short/Long"))

	again, err := doc.SingleTable()
	require.NoError(t, err)
	assert.Same(t, table, again)
}

func TestTableDecode(t *testing.T) {
	rows := [][]string{{"Symbol", "Quantity"}, {"T", "300"}, {"VZ", "12"}}
	table := singleTable(rows)

	type position struct {
		Symbol   string `csv:"Symbol"`
		Quantity int    `csv:"Quantity"`
	}
	var positions []position
	require.NoError(t, table.Decode(&positions))
	assert.Equal(t, []position{{"T", 300}, {"VZ", 12}}, positions)
}

func TestRowFirst(t *testing.T) {
	table := singleTable([][]string{{"SettleDate", "TradeDate"}, {"", "20201001"}})
	assert.Equal(t, "20201001", table.Row(0).First("SettleDate", "SettleDateTarget", "TradeDate"))
	assert.Equal(t, "", table.Row(0).First("Missing"))
}

func TestCSVDelimiterDetection(t *testing.T) {
	doc := openCSV(t, "testdata/semicolon.csv")

	rows, err := doc.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"01/02/2021", "Coffee; large", "-3,50"}, rows[1])

	csvDoc := doc.(*CSVDocument)
	d, err := csvDoc.Delimiter()
	require.NoError(t, err)
	assert.Equal(t, ';', d)

	forced, err := Open("testdata/semicolon.csv", WithDelimiter(','))
	require.NoError(t, err)
	rows, err = forced.Rows()
	require.NoError(t, err)
	assert.Equal(t, []string{"Date;Description;Amount"}, rows[0])
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', DetectDelimiter(nil))
	assert.Equal(t, '\t', DetectDelimiter([]byte("a\tb\tc\n1\t2\t3\n")))
	assert.Equal(t, '|', DetectDelimiter([]byte("a|b|c\n")))
	assert.Equal(t, ',', DetectDelimiter([]byte("\"a;b;c\",d\n")))

	t.Run("banner does not outvote the table", func(t *testing.T) {
		data := "Account: 1234; Owner: J Doe; Branch: 7; Report: Q4; Pages: 2; Currency: USD; Basis: trade; Status: final\n" +
			"Symbol,Quantity,Price\n" +
			"AAPL,10,110.01\n" +
			"MSFT,5,210\n"
		assert.Equal(t, ',', DetectDelimiter([]byte(data)))
	})

	t.Run("prose with pipes above tab separated rows", func(t *testing.T) {
		data := "Exported | all accounts | all dates | unaudited | page 1 | v2\n" +
			"Date\tAmount\n" +
			"01/02/2021\t-3.50\n" +
			"01/03/2021\t2500\n"
		assert.Equal(t, '\t', DetectDelimiter([]byte(data)))
	})
}

func TestCSVText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffMerrill Edge,x\n"), 0o644))

	doc := openCSV(t, path)
	text, err := doc.Text()
	require.NoError(t, err)
	assert.Equal(t, "Merrill Edge,x\n", text)
}

func TestExcelDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.xlsx")

	f := excelize.NewFile()
	rows := [][]any{
		{"Test Table 1"},
		{"col1", "col2", "col3"},
		{"a1", "a2", "a3"},
		{"b1", "b2", "b3"},
		{"End Table"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	doc, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, FormatExcel, doc.Format())

	q := NewTableQuery()
	q.TableName = "Test Table 1"
	q.FirstColumnName = "col1"
	q.LastColumnName = "col3"
	q.TableEndMarker = "End Table"

	table, err := doc.ExtractTable(q)
	require.NoError(t, err)
	require.NotNil(t, table)
	r, c := table.Shape()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	text, err := doc.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "col1,col2,col3")

	sheet, err := doc.(*ExcelDocument).Sheet()
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet)
}

func TestPDFDocumentTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	doc, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, doc.Format())

	_, err = doc.ExtractTable(NewTableQuery())
	assert.ErrorIs(t, err, ErrTablesUnsupported)
	_, err = doc.SingleTable()
	assert.ErrorIs(t, err, ErrTablesUnsupported)
}

func TestPDFDocumentText(t *testing.T) {
	doc, err := Open("testdata/chase_statement.pdf")
	require.NoError(t, err)
	require.Equal(t, FormatPDF, doc.Format())

	text, err := doc.Text()
	require.NoError(t, err)

	want := []string{
		"JPMorgan Chase Bank, N.A.",
		"P O Box 182051",
		"Columbus, OH 43218 - 2051",
		"Web site: www.chase.com",
		"Opening/Closing Date 10/01/20 - 10/31/20",
		"Account number: 000000123456789",
		"CHECKING SUMMARY",
		"Opening Balance $1,000.00",
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", text)

	t.Run("text is cached", func(t *testing.T) {
		again, err := doc.Text()
		require.NoError(t, err)
		assert.Equal(t, text, again)
	})
}

func TestPDFDocumentTextMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	doc, err := Open(path)
	require.NoError(t, err)
	_, err = doc.Text()
	assert.Error(t, err)
}
