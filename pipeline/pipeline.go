package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/peterlang-checker/config"
	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/aluiziolira/peterlang-checker/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Pipeline validates classified records and writes them in input order,
// flushing to the writer every batchSize records.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	batch     []*models.Record

	// history maps a query key to the first row that used it. Repeats are
	// counted, never skipped.
	history *lru.Cache[string, int]

	metrics metrics

	mu     sync.Mutex
	closed bool
	err    error

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to writer.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	history, err := lru.New[string, int](cfg.QueryHistorySize)
	if err != nil {
		return nil, fmt.Errorf("create query history: %w", err)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		batch:     make([]*models.Record, 0, batchSize),
		history:   history,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}, nil
}

// Process appends records to the output. Records must carry a valid result.
func (p *Pipeline) Process(records ...*models.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	if p.closed {
		return ErrPipelineClosed
	}

	for _, record := range records {
		if record == nil {
			continue
		}
		if err := parser.ValidateResult(record.Result); err != nil {
			p.metrics.addValidation("invalid_record")
			return fmt.Errorf("row %d: %w", record.Row, err)
		}
		p.trackQuery(record)
		p.metrics.incrementProcessed(record.Result.Status)

		p.batch = append(p.batch, record)
		if len(p.batch) >= p.batchSize {
			if err := p.flushLocked(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes pending records and prevents more submissions.
// The writer itself is left open for the caller to close.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signalShutdown()
	if p.closed {
		return p.err
	}
	p.closed = true

	if p.err == nil {
		if err := p.flushLocked(); err != nil {
			return err
		}
	}
	return p.err
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", metrics["processed_records"].(int64)),
					slog.Any("by_status", metrics["by_status"]),
					slog.Int64("repeated_queries", metrics["repeated_queries"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) flushLocked() error {
	if len(p.batch) == 0 {
		return nil
	}
	if err := p.writer.Write(p.batch); err != nil {
		p.setErrLocked(fmt.Errorf("write batch: %w", err))
		return p.err
	}
	p.batch = p.batch[:0]
	return nil
}

func (p *Pipeline) trackQuery(record *models.Record) {
	key := queryKey(record.Request)
	if key == "" {
		return
	}
	if first, ok := p.history.Get(key); ok {
		p.metrics.addRepeat()
		slog.Debug("query repeats an earlier row",
			slog.Int("row", record.Row),
			slog.Int("first_row", first),
			slog.String("query", key),
		)
		return
	}
	p.history.Add(key, record.Row)
}

// queryKey mirrors the search term selection: ISBN digits, else author and title.
func queryKey(req models.BookRequest) string {
	if !parser.IsMissing(req.ISBN) {
		return "isbn:" + parser.NormalizeISBN(strings.TrimSpace(req.ISBN))
	}
	title := strings.ToLower(strings.TrimSpace(req.Title))
	if title == "" {
		return ""
	}
	return "text:" + strings.ToLower(strings.TrimSpace(req.Author)) + "|" + title
}

func (p *Pipeline) setErrLocked(err error) {
	if err == nil || p.err != nil {
		return
	}
	p.err = err
	p.closed = true
	p.signalShutdown()
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	repeated   int64
	byStatus   map[models.Status]int
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		byStatus:   make(map[models.Status]int),
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed(status models.Status) {
	m.mu.Lock()
	m.processed++
	m.byStatus[status]++
	m.mu.Unlock()
}

func (m *metrics) addRepeat() {
	m.mu.Lock()
	m.repeated++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyStatus := make(map[string]int, len(m.byStatus))
	for k, v := range m.byStatus {
		copyStatus[string(k)] = v
	}
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"repeated_queries":  m.repeated,
		"by_status":         copyStatus,
		"validation_errors": copyValidation,
	}
}
