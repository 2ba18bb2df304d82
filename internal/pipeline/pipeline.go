package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/observability"
)

// rejection label for payloads that are not JSON objects at all.
const reasonMalformed = "malformed_json"

// BatchExtractor reads up to batchSize raw vehicle reports from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReport, error)
}

// Pipeline drives the streaming ingestion loop: extract vehicle reports,
// validate each independently, persist the accepted subset, commit offsets.
// Invalid reports are counted, committed and skipped — they never block the
// rest of the stream.
type Pipeline struct {
	extractor BatchExtractor
	store     BatchPersister
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given source, store and observability.
func New(e BatchExtractor, store BatchPersister, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least one
// report, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any reports yet")
	}
	return nil
}

// Run executes the ingestion loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("ingestion pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingestion pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-validate-persist cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RecordsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	persisted, ok := p.validateAndPersist(ctx, batch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if persisted > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// validateAndPersist validates each report in the batch, persists the
// accepted defects in one store call, and commits offsets. Rejected reports
// are committed immediately so they are never re-consumed. Returns the number
// of persisted defects and false if the pipeline should stop.
func (p *Pipeline) validateAndPersist(ctx context.Context, batch []domain.RawReport, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	accepted := make([]domain.Defect, 0, len(batch))
	acceptedRaws := make([]domain.RawReport, 0, len(batch))

	for _, raw := range batch {
		var record domain.RawRecord
		if err := json.Unmarshal(raw.Value, &record); err != nil {
			p.reject(ctx, raw, reasonMalformed, "error", err)
			continue
		}

		out := domain.ValidateRecord(record)
		if !out.Accepted() {
			p.reject(ctx, raw, string(out.Reason))
			continue
		}

		accepted = append(accepted, out.Defect)
		acceptedRaws = append(acceptedRaws, raw)
	}

	if len(accepted) == 0 {
		return 0, true
	}

	if _, err := p.store.PersistBatch(ctx, accepted); err != nil {
		p.logger.Error("persist batch failed", "error", err, "batch_size", len(accepted))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.RecordsAccepted.Add(float64(len(accepted)))

	for _, raw := range acceptedRaws {
		p.commitOffset(ctx, raw)
	}

	return len(accepted), true
}

// reject counts, logs and commits an invalid report so the stream moves on.
func (p *Pipeline) reject(ctx context.Context, raw domain.RawReport, reason string, extra ...any) {
	args := append([]any{
		"reason", reason,
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	}, extra...)
	p.logger.Warn("report rejected, skipping", args...)
	p.metrics.RecordsRejected.WithLabelValues(reason).Inc()
	p.commitOffset(ctx, raw)
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the report offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawReport) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
