package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/observability"
	"github.com/roadmetrics/defect-analytics/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawReport
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawReport, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for reports
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type trackingStore struct {
	mu        sync.Mutex
	persisted [][]domain.Defect
	failures  int // fail this many calls before succeeding
}

func (m *trackingStore) PersistBatch(_ context.Context, defects []domain.Defect) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("store unavailable")
	}
	m.persisted = append(m.persisted, defects)
	return make([]int64, len(defects)), nil
}

func (m *trackingStore) batches() [][]domain.Defect {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted
}

func rawReport(t *testing.T, rec domain.RawRecord, offset int64, commit func(context.Context) error) domain.RawReport {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return domain.RawReport{
		Value:  data,
		Topic:  "vehicle-defect-reports",
		Offset: offset,
		Commit: commit,
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	var committed atomic.Int64
	commit := func(context.Context) error { committed.Add(1); return nil }

	ext := &mockExtractor{batches: [][]domain.RawReport{{
		rawReport(t, record("v1", "2024-01-01T00:00:00Z", "pothole", 10, 10), 1, commit),
		rawReport(t, record("v2", "2024-01-01T01:00:00Z", "crack", 11, 11), 2, commit),
	}}}
	store := &trackingStore{}

	p := pipeline.New(ext, store, slog.Default(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	batches := store.batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, int64(2), committed.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_InvalidReportCommittedAndSkipped(t *testing.T) {
	var committed atomic.Int64
	commit := func(context.Context) error { committed.Add(1); return nil }

	ext := &mockExtractor{batches: [][]domain.RawReport{{
		{Value: []byte("{not json"), Topic: "vehicle-defect-reports", Offset: 1, Commit: commit},
		rawReport(t, record("v1", "bad", "pothole", 10, 10), 2, commit),
		rawReport(t, record("v2", "2024-01-01T00:00:00Z", "pothole", 10, 10), 3, commit),
	}}}
	store := &trackingStore{}

	p := pipeline.New(ext, store, slog.Default(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	batches := store.batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "v2", *batches[0][0].VehicleID)
	// Invalid reports are committed too, so they are never re-consumed.
	assert.Equal(t, int64(3), committed.Load())
}

func TestPipeline_Run_RetriesPersistFailure(t *testing.T) {
	rec := record("v1", "2024-01-01T00:00:00Z", "pothole", 10, 10)
	ext := &mockExtractor{batches: [][]domain.RawReport{
		{rawReport(t, rec, 1, nil)},
		{rawReport(t, rec, 1, nil)}, // same offset redelivered after failed persist
	}}
	store := &trackingStore{failures: 1}

	p := pipeline.New(ext, store, slog.Default(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	require.Len(t, store.batches(), 1)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches — will block
	store := &trackingStore{}

	p := pipeline.New(ext, store, slog.Default(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, store.batches())
}

func TestPipeline_CheckReadiness_BeforeFirstBatch(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &trackingStore{}, slog.Default(), observability.NewMetricsForTesting(), 50)

	require.Error(t, p.CheckReadiness(context.Background()))
}
