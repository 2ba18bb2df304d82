package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/observability"
)

// ErrStructural marks top-level malformed input: the batch is not a JSON
// array of objects at all. Distinct from per-record rejections, which never
// surface as errors.
var ErrStructural = errors.New("malformed batch")

// BatchPersister writes accepted defects to the store in one all-or-nothing
// call, returning assigned IDs in input order.
type BatchPersister interface {
	PersistBatch(ctx context.Context, defects []domain.Defect) ([]int64, error)
}

// Rejection is one per-record diagnostic. Index is the record's position in
// the original input.
type Rejection struct {
	Index  int                 `json:"index"`
	Reason domain.RejectReason `json:"reason"`
	Error  string              `json:"error"`
}

// BulkIngestResult describes the outcome of one batch. Rejections appear in
// input order; FailedCount is derived, never stored.
type BulkIngestResult struct {
	ProcessedCount int         `json:"processed_count"`
	SuccessCount   int         `json:"success_count"`
	Rejections     []Rejection `json:"failed_entries"`
}

// FailedCount returns the number of rejected records.
func (r BulkIngestResult) FailedCount() int {
	return r.ProcessedCount - r.SuccessCount
}

// DecodeBatch parses an uploaded JSON payload into raw records. Any failure
// here is structural — the whole call fails once, before per-record
// validation starts.
func DecodeBatch(data []byte) ([]domain.RawRecord, error) {
	var raws []domain.RawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of defect objects: %v", ErrStructural, err)
	}
	return raws, nil
}

// Ingestor validates raw record batches and persists the accepted subset.
type Ingestor struct {
	store   BatchPersister
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIngestor creates an Ingestor backed by the given store.
func NewIngestor(store BatchPersister, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{store: store, logger: logger, metrics: metrics}
}

// IngestBatch validates every record independently — one bad record never
// aborts or reorders its siblings — then persists all accepted defects with a
// single store call. A store failure fails the whole call; rejected records
// are reported, never partially persisted.
func (i *Ingestor) IngestBatch(ctx context.Context, raws []domain.RawRecord) (BulkIngestResult, error) {
	accepted := make([]domain.Defect, 0, len(raws))
	rejections := make([]Rejection, 0)

	for idx, raw := range raws {
		out := domain.ValidateRecord(raw)
		if !out.Accepted() {
			rejections = append(rejections, Rejection{
				Index:  idx,
				Reason: out.Reason,
				Error:  out.Reason.Message(),
			})
			i.metrics.RecordsRejected.WithLabelValues(string(out.Reason)).Inc()
			continue
		}
		accepted = append(accepted, out.Defect)
	}

	if len(accepted) > 0 {
		ids, err := i.store.PersistBatch(ctx, accepted)
		if err != nil {
			return BulkIngestResult{}, fmt.Errorf("persist batch: %w", err)
		}
		for j := range accepted {
			accepted[j].ID = ids[j]
		}
	}

	i.metrics.RecordsAccepted.Add(float64(len(accepted)))
	i.logger.Info("batch ingested",
		"processed", len(raws),
		"accepted", len(accepted),
		"rejected", len(rejections),
	)

	return BulkIngestResult{
		ProcessedCount: len(raws),
		SuccessCount:   len(accepted),
		Rejections:     rejections,
	}, nil
}
