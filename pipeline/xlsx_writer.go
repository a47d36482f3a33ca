package pipeline

import (
	"fmt"
	"os"
	"sync"

	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/xuri/excelize/v2"
)

// ResultsSheet is the worksheet name used for spreadsheet exports.
const ResultsSheet = "Results"

// XLSXWriter builds a workbook in memory and saves it on Close.
type XLSXWriter struct {
	path  string
	book  *excelize.File
	row   int
	saved bool
	mu    sync.Mutex
}

// NewXLSXWriter creates the workbook and writes the header row.
func NewXLSXWriter(filename string, sourceHeader []string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	book := excelize.NewFile()
	if err := book.SetSheetName(book.GetSheetName(0), ResultsSheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("name results sheet: %w", err)
	}

	xw := &XLSXWriter{
		path: filename,
		book: book,
	}
	if err := xw.appendRow(OutputHeader(sourceHeader)); err != nil {
		book.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	return xw, nil
}

// Write appends records below the previous rows.
func (xw *XLSXWriter) Write(records []*models.Record) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.saved {
		return fmt.Errorf("xlsx workbook already saved")
	}
	for _, record := range records {
		if err := xw.appendRow(outputRow(record)); err != nil {
			return fmt.Errorf("write xlsx record: %w", err)
		}
	}
	return nil
}

func (xw *XLSXWriter) appendRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, xw.row+1)
	if err != nil {
		return err
	}
	if err := xw.book.SetSheetRow(ResultsSheet, cell, &values); err != nil {
		return err
	}
	xw.row++
	return nil
}

// Close saves the workbook to disk.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.saved {
		return nil
	}
	xw.saved = true

	if err := xw.book.SaveAs(xw.path); err != nil {
		xw.book.Close()
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return xw.book.Close()
}

// Validate ensures the workbook was saved and is non-empty.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	saved := xw.saved
	xw.mu.Unlock()

	if !saved {
		return fmt.Errorf("xlsx workbook not saved yet")
	}
	info, err := os.Stat(xw.path)
	if err != nil {
		return fmt.Errorf("stat xlsx file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("xlsx file is empty")
	}
	return nil
}
