// Package sheet reads the input table of books to check.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("sheet: missing header row")

// Table is a rectangular input table. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnMap names the input columns that hold each request field.
// PublicationDate is optional and may be empty.
type ColumnMap struct {
	Author          string
	ISBN            string
	Title           string
	PublicationDate string
}

// ReadTable loads an .xlsx or .csv file. sheetName selects a worksheet and
// defaults to the first one; it is ignored for CSV input.
func ReadTable(path, sheetName string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, sheetName)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

// ReadXLSX reads a workbook from r.
func ReadXLSX(r io.Reader, sheetName string) (*Table, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	if sheetName == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheetName = sheets[0]
	}

	rows, err := book.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return newTable(rows)
}

// ReadCSV reads a comma-separated table from r.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return newTable(rows)
}

func newTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}

	body := rows[1:]
	for len(body) > 0 && isBlank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	// Blank rows inside the table are kept so the export lines up with the input.
	table := &Table{Header: header}
	for _, row := range body {
		cells := make([]string, len(header))
		copy(cells, row)
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Column returns the index of the named column, or -1. Exact matches win
// over case-insensitive ones.
func (t *Table) Column(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// Records maps every row to a record using m. Author, ISBN and Title
// columns must exist.
func (t *Table) Records(m ColumnMap) ([]*models.Record, error) {
	author, isbn, title := t.Column(m.Author), t.Column(m.ISBN), t.Column(m.Title)

	var missing []string
	if author < 0 {
		missing = append(missing, fmt.Sprintf("author %q", m.Author))
	}
	if isbn < 0 {
		missing = append(missing, fmt.Sprintf("ISBN %q", m.ISBN))
	}
	if title < 0 {
		missing = append(missing, fmt.Sprintf("title %q", m.Title))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s (have %s)", strings.Join(missing, ", "), strings.Join(t.Header, ", "))
	}

	date := -1
	if m.PublicationDate != "" {
		date = t.Column(m.PublicationDate)
		if date < 0 {
			return nil, fmt.Errorf("missing columns: publication date %q", m.PublicationDate)
		}
	}

	records := make([]*models.Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		req := models.BookRequest{
			Author: strings.TrimSpace(row[author]),
			ISBN:   strings.TrimSpace(row[isbn]),
			Title:  strings.TrimSpace(row[title]),
		}
		if date >= 0 {
			req.PublicationDate = strings.TrimSpace(row[date])
		}
		records = append(records, &models.Record{
			Row:     i + 1,
			Fields:  row,
			Request: req,
		})
	}
	return records, nil
}
