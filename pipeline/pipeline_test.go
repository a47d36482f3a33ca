package pipeline

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aluiziolira/peterlang-checker/config"
	"github.com/aluiziolira/peterlang-checker/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Record
	closed      bool
	writeErr    error
	validateErr error
}

func (mw *mockWriter) Write(records []*models.Record) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Record, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) rows() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var rows []int
	for _, batch := range mw.batches {
		for _, record := range batch {
			rows = append(rows, record.Row)
		}
	}
	return rows
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func newRecord(row int, isbn string, status models.Status) *models.Record {
	result := models.Result{
		Status:    status,
		SearchURL: "https://site.test/search?searchstring=" + isbn,
	}
	if status == models.StatusAvailable {
		result.FinalURL = "https://site.test/document/" + strconv.Itoa(row)
	}
	return &models.Record{
		Row:     row,
		Fields:  []string{"Author", isbn, "Title"},
		Request: models.BookRequest{Author: "Author", ISBN: isbn, Title: "Title"},
		Result:  result,
	}
}

func newTestPipeline(t *testing.T, writer OutputWriter, batchSize int) *Pipeline {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BatchSize = batchSize
	p, err := NewPipeline(writer, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPipelinePreservesOrderAndCountsRepeats(t *testing.T) {
	writer := &mockWriter{}
	p := newTestPipeline(t, writer, 64)

	records := []*models.Record{
		newRecord(1, "978-3-631-12345-6", models.StatusAvailable),
		newRecord(2, "9780000000001", models.StatusNotAvailable),
		newRecord(3, "9783631123456", models.StatusAvailable),
		newRecord(4, "9780000000002", models.StatusError),
	}
	if err := p.Process(records...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rows := writer.rows()
	if len(rows) != 4 {
		t.Fatalf("written records = %d, want 4 (repeats are never skipped)", len(rows))
	}
	for i, row := range rows {
		if row != i+1 {
			t.Fatalf("rows = %v, want input order", rows)
		}
	}

	metrics := p.GetMetrics()
	if got := metrics["repeated_queries"].(int64); got != 1 {
		t.Fatalf("repeated_queries = %d, want 1", got)
	}
	byStatus := metrics["by_status"].(map[string]int)
	if byStatus["Available"] != 2 || byStatus["Not Available"] != 1 || byStatus["Error"] != 1 {
		t.Fatalf("by_status = %v", byStatus)
	}
}

func TestPipelineRejectsInvalidRecord(t *testing.T) {
	writer := &mockWriter{}
	p := newTestPipeline(t, writer, 64)

	invalid := newRecord(1, "9780000000001", "")
	if err := p.Process(invalid); err == nil {
		t.Fatalf("expected validation error")
	}

	validation := p.GetMetrics()["validation_errors"].(map[string]int)
	if validation["invalid_record"] == 0 {
		t.Fatalf("expected invalid_record validation error")
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	writer := &mockWriter{}
	p := newTestPipeline(t, writer, 16)

	for i := 0; i < 17; i++ {
		if err := p.Process(newRecord(i+1, strconv.Itoa(1000+i), models.StatusNotAvailable)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 16 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [16 1]", sizes)
	}
}

func TestPipelineClosedRejectsProcess(t *testing.T) {
	p := newTestPipeline(t, &mockWriter{}, 4)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(newRecord(1, "1", models.StatusNotAvailable)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineWriteErrorIsSticky(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("disk full")}
	p := newTestPipeline(t, writer, 1)

	if err := p.Process(newRecord(1, "1", models.StatusNotAvailable)); err == nil {
		t.Fatalf("expected write error")
	}
	if err := p.Process(newRecord(2, "2", models.StatusNotAvailable)); err == nil {
		t.Fatalf("expected sticky error on later process")
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected close to report write error")
	}
}

func TestQueryKey(t *testing.T) {
	tests := []struct {
		name string
		req  models.BookRequest
		want string
	}{
		{name: "isbn normalized", req: models.BookRequest{ISBN: "978-3-631-12345-6", Title: "X"}, want: "isbn:9783631123456"},
		{name: "nan isbn falls back", req: models.BookRequest{ISBN: "nan", Author: "Jane Doe", Title: "Topology"}, want: "text:jane doe|topology"},
		{name: "title only", req: models.BookRequest{Title: "Topology"}, want: "text:|topology"},
		{name: "nothing", req: models.BookRequest{Author: "Jane Doe"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queryKey(tt.req); got != tt.want {
				t.Fatalf("queryKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
