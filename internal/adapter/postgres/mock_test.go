package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

func storedDefect(t *testing.T, m *Mock, d domain.Defect) domain.Defect {
	t.Helper()
	stored, err := m.Insert(context.Background(), d)
	require.NoError(t, err)
	return stored
}

func TestMockFetchByFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	storedDefect(t, m, domain.Defect{
		Type: domain.TypePothole, Severity: domain.SeverityHigh,
		Coordinate: domain.Coordinate{Latitude: 12.97, Longitude: 77.59},
		ReportedAt: base,
	})
	storedDefect(t, m, domain.Defect{
		Type: domain.TypeCrack, Severity: domain.SeverityLow,
		Coordinate: domain.Coordinate{Latitude: 12.98, Longitude: 77.60},
		ReportedAt: base.Add(-48 * time.Hour),
	})
	storedDefect(t, m, domain.Defect{
		Type: domain.TypePothole, Severity: domain.SeverityLow,
		Coordinate: domain.Coordinate{Latitude: 40.0, Longitude: -74.0},
		ReportedAt: base.Add(-time.Hour),
	})

	t.Run("newest first", func(t *testing.T) {
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, base, got[0].ReportedAt)
	})

	t.Run("by type", func(t *testing.T) {
		pothole := domain.TypePothole
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{Type: &pothole})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by bbox", func(t *testing.T) {
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{
			BBox: &domain.BBox{LatMin: 12, LatMax: 13, LngMin: 77, LngMax: 78},
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("since is inclusive, until exclusive", func(t *testing.T) {
		since := base.Add(-time.Hour)
		until := base
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{Since: &since, Until: &until})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, since, got[0].ReportedAt)
	})

	t.Run("skip and limit", func(t *testing.T) {
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, base.Add(-time.Hour), got[0].ReportedAt)
	})

	t.Run("skip past the end", func(t *testing.T) {
		got, err := m.FetchByFilter(ctx, domain.FilterQuery{Skip: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMockFetchByRadius(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	center := domain.Coordinate{Latitude: 12.97, Longitude: 77.59}

	near := storedDefect(t, m, domain.Defect{
		Type: domain.TypePothole, Severity: domain.SeverityHigh,
		Coordinate: domain.Coordinate{Latitude: 12.9705, Longitude: 77.5905},
		ReportedAt: now,
	})
	storedDefect(t, m, domain.Defect{
		Type: domain.TypePothole, Severity: domain.SeverityHigh,
		Coordinate: domain.Coordinate{Latitude: 13.5, Longitude: 77.59},
		ReportedAt: now,
	})

	got, err := m.FetchByRadius(ctx, center, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].ID)
}

func TestMockCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	stored := storedDefect(t, m, domain.Defect{
		Type: domain.TypePothole, Severity: domain.SeverityHigh,
		Coordinate: domain.Coordinate{Latitude: 12.97, Longitude: 77.59},
		ReportedAt: now,
	})
	require.Equal(t, int64(1), stored.ID)

	t.Run("update changes only the given fields", func(t *testing.T) {
		sev := domain.SeverityCritical
		updated, err := m.Update(ctx, stored.ID, domain.DefectUpdate{Severity: &sev})
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityCritical, updated.Severity)
		assert.Equal(t, domain.TypePothole, updated.Type)
		assert.Equal(t, stored.Coordinate, updated.Coordinate)
	})

	t.Run("update missing id", func(t *testing.T) {
		_, err := m.Update(ctx, 99, domain.DefectUpdate{})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete then get", func(t *testing.T) {
		require.NoError(t, m.Delete(ctx, stored.ID))
		_, err := m.GetByID(ctx, stored.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, m.Delete(ctx, stored.ID), domain.ErrNotFound)
	})
}

func TestMockUpsertDailyStatistics(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	date := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.UpsertDailyStatistics(ctx, date, []byte(`{"total_count":3}`)))
	require.NoError(t, m.UpsertDailyStatistics(ctx, date, []byte(`{"total_count":5}`)))

	// Rerunning a date overwrites the row instead of adding one.
	assert.Equal(t, 1, m.StatisticsRowCount())
	blob, ok := m.DailyStatistics(date)
	require.True(t, ok)
	assert.JSONEq(t, `{"total_count":5}`, string(blob))
}
