// Package pipeline provides the ordered result sink and its CSV, XLSX and JSON writers.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/peterlang-checker/models"
)

type namedWriter struct {
	format string
	OutputWriter
}

// DualWriter exports the same rows as CSV and XLSX.
type DualWriter struct {
	outputs []namedWriter
	mu      sync.Mutex
}

// NewDualWriter opens both exports with the same header.
func NewDualWriter(csvFilename, xlsxFilename string, sourceHeader []string) (*DualWriter, error) {
	csvOut, err := NewCSVWriter(csvFilename, sourceHeader)
	if err != nil {
		return nil, fmt.Errorf("open csv export: %w", err)
	}

	xlsxOut, err := NewXLSXWriter(xlsxFilename, sourceHeader)
	if err != nil {
		csvOut.Close()
		return nil, fmt.Errorf("open xlsx export: %w", err)
	}

	return &DualWriter{
		outputs: []namedWriter{
			{format: "csv", OutputWriter: csvOut},
			{format: "xlsx", OutputWriter: xlsxOut},
		},
	}, nil
}

// Write hands the batch to every export, stopping at the first failure.
func (dw *DualWriter) Write(records []*models.Record) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, out := range dw.outputs {
		if err := out.Write(records); err != nil {
			return fmt.Errorf("%s export: %w", out.format, err)
		}
	}
	return nil
}

// Close closes every export and reports all failures.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.each(OutputWriter.Close, "close")
}

// Validate checks every export file.
func (dw *DualWriter) Validate() error {
	return dw.each(OutputWriter.Validate, "validate")
}

func (dw *DualWriter) each(op func(OutputWriter) error, verb string) error {
	var errs []error
	for _, out := range dw.outputs {
		if err := op(out.OutputWriter); err != nil {
			errs = append(errs, fmt.Errorf("%s %s export: %w", verb, out.format, err))
		}
	}
	return errors.Join(errs...)
}
