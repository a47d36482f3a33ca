package checker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/google/uuid"
)

// Progress reports that row Row of Total has been classified.
type Progress struct {
	Row    int
	Total  int
	Result models.Result
}

// ProgressFunc receives a Progress event after every row.
type ProgressFunc func(Progress)

// Sink receives classified records in input order.
type Sink interface {
	Process(records ...*models.Record) error
}

// Runner resolves a batch of rows one at a time, in input order.
type Runner struct {
	resolver *Resolver
	delay    time.Duration
	metrics  *Metrics
	progress ProgressFunc
}

// NewRunner builds a runner that pauses delay after every row.
func NewRunner(resolver *Resolver, delay time.Duration, metrics *Metrics) *Runner {
	return &Runner{
		resolver: resolver,
		delay:    delay,
		metrics:  metrics,
	}
}

// OnProgress registers fn to be called after each row.
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// Run classifies every record and passes it to sink. A failed row is recorded
// as StatusError and the batch continues; only a sink failure aborts the run.
// Cancelling ctx stops the batch between rows.
func (r *Runner) Run(ctx context.Context, records []*models.Record, sink Sink) (*models.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.BatchResult{
		RunID:        uuid.NewString(),
		StartTime:    time.Now(),
		Total:        len(records),
		ByStatus:     make(map[models.Status]int),
		ErrorsByType: make(map[string]int),
	}
	logger := slog.With(slog.String("run_id", result.RunID))
	logger.Info("starting availability check", slog.Int("rows", len(records)))

	total := len(records)
	r.metrics.SetRemaining(total)

	for i, record := range records {
		if ctx.Err() != nil {
			result.Cancelled = true
			logger.Warn("batch cancelled", slog.Int("processed", result.Processed), slog.Int("total", total))
			break
		}

		res, err := r.resolver.resolve(ctx, record.Request)
		if err != nil && res.Status == models.StatusError {
			result.ErrorsByType[errorTypeLabel(err)]++
		}
		record.RunID = result.RunID
		record.Result = res

		result.Processed++
		result.ByStatus[res.Status]++
		r.metrics.IncRow(string(res.Status))
		r.metrics.SetRemaining(total - i - 1)

		if err := sink.Process(record); err != nil {
			result.EndTime = time.Now()
			return result, fmt.Errorf("row %d: %w", record.Row, err)
		}

		if r.progress != nil {
			r.progress(Progress{Row: i + 1, Total: total, Result: res})
		}
		logger.Debug("row processed",
			slog.Int("row", i+1),
			slog.Int("total", total),
			slog.String("availability", string(res.Status)),
		)

		r.pause(ctx)
	}

	result.EndTime = time.Now()
	return result, nil
}

// pause waits the row delay or until ctx is done.
func (r *Runner) pause(ctx context.Context) {
	if r.delay <= 0 {
		return
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
