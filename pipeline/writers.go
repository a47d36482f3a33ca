package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/peterlang-checker/models"
)

// ResultColumns are appended to the source header in every export.
var ResultColumns = []string{"Availability", "Search_URL", "Final_URL"}

// OutputHeader returns the export header for a source table header.
func OutputHeader(source []string) []string {
	header := make([]string, 0, len(source)+len(ResultColumns))
	header = append(header, source...)
	return append(header, ResultColumns...)
}

func outputRow(record *models.Record) []string {
	row := make([]string, 0, len(record.Fields)+len(ResultColumns))
	row = append(row, record.Fields...)
	return append(row,
		string(record.Result.Status),
		record.Result.SearchURL,
		record.Result.FinalURL,
	)
}

// fileOutput is an export file created on construction, parent directories included.
type fileOutput struct {
	format string
	path   string
	file   *os.File
	mu     sync.Mutex
}

func createOutput(format, filename string) (*fileOutput, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", format, err)
	}
	return &fileOutput{format: format, path: filename, file: f}, nil
}

// check stats the export. requireData rejects a zero-length file.
func (o *fileOutput) check(requireData bool) error {
	info, err := os.Stat(o.path)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", o.format, err)
	}
	if requireData && info.Size() == 0 {
		return fmt.Errorf("%s file is empty", o.format)
	}
	return nil
}

// CSVWriter writes the source columns plus the result columns as CSV.
type CSVWriter struct {
	*fileOutput
	writer *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string, sourceHeader []string) (*CSVWriter, error) {
	out, err := createOutput("csv", filename)
	if err != nil {
		return nil, err
	}

	cw := &CSVWriter{fileOutput: out, writer: csv.NewWriter(out.file)}
	if err := cw.writeRows([][]string{OutputHeader(sourceHeader)}); err != nil {
		out.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends one line per record and flushes.
func (cw *CSVWriter) Write(records []*models.Record) error {
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = outputRow(record)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.writeRows(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	for _, row := range rows {
		if err := cw.writer.Write(row); err != nil {
			return err
		}
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate requires at least the header row on disk.
func (cw *CSVWriter) Validate() error {
	return cw.check(true)
}

// JSONWriter writes one JSON object per record, diagnostics and run ID included.
type JSONWriter struct {
	*fileOutput
	buf     *bufio.Writer
	encoder *json.Encoder
}

// NewJSONWriter creates filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := createOutput("json", filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out.file)
	return &JSONWriter{fileOutput: out, buf: buf, encoder: json.NewEncoder(buf)}, nil
}

// Write encodes records and flushes the buffer.
func (jw *JSONWriter) Write(records []*models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, record := range records {
		if err := jw.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode row %d: %w", record.Row, err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate only requires the file to exist; an empty input yields an empty file.
func (jw *JSONWriter) Validate() error {
	return jw.check(false)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
