package analytics

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

func TestCompute(t *testing.T) {
	t.Run("year window buckets by month with zero fill", func(t *testing.T) {
		w := YearWindow(2024)
		defects := []domain.Defect{
			defect(10, 10, domain.TypePothole, domain.SeverityHigh, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
			defect(10, 10, domain.TypePothole, domain.SeverityLow, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
			defect(10, 10, domain.TypeCrack, domain.SeverityHigh, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)),
			defect(10, 10, domain.TypeCrack, domain.SeverityHigh, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)), // outside
		}

		stats := Compute(defects, w)

		assert.Equal(t, 3, stats.TotalCount)
		assert.Len(t, stats.ByTimeBucket, 12)
		assert.Equal(t, 2, stats.ByTimeBucket["2024-01"])
		assert.Equal(t, 1, stats.ByTimeBucket["2024-07"])
		assert.Equal(t, 0, stats.ByTimeBucket["2024-12"])
		assert.Equal(t, 2, stats.ByType[domain.TypePothole])
		assert.Equal(t, 0, stats.ByType[domain.TypeMissingManhole])
		assert.Equal(t, 2, stats.BySeverity[domain.SeverityHigh])
		assert.Equal(t, 0, stats.BySeverity[domain.SeverityCritical])
	})

	t.Run("day window buckets by day", func(t *testing.T) {
		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		w := DayWindow(date)
		defects := []domain.Defect{
			defect(10, 10, domain.TypePothole, domain.SeverityLow, date.Add(6*time.Hour)),
			defect(10, 10, domain.TypePothole, domain.SeverityLow, date.AddDate(0, 0, 1)), // next day, excluded
		}

		stats := Compute(defects, w)

		assert.Equal(t, 1, stats.TotalCount)
		assert.Equal(t, map[string]int{"2024-05-01": 1}, stats.ByTimeBucket)
	})

	t.Run("window boundaries are half-open", func(t *testing.T) {
		w := DayWindow(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

		assert.True(t, w.Contains(w.Start))
		assert.False(t, w.Contains(w.End))
		assert.True(t, w.Contains(w.End.Add(-time.Nanosecond)))
	})

	t.Run("empty collection yields all-zero stable keys", func(t *testing.T) {
		stats := Compute(nil, YearWindow(2024))

		assert.Equal(t, 0, stats.TotalCount)
		require.Len(t, stats.ByType, len(domain.DefectTypes()))
		require.Len(t, stats.BySeverity, len(domain.SeverityLevels()))
		require.Len(t, stats.ByTimeBucket, 12)
		for bucket, count := range stats.ByTimeBucket {
			assert.Equal(t, 0, count, "bucket %s", bucket)
		}
	})

	t.Run("31-day window still buckets by day", func(t *testing.T) {
		start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		w := Window{Start: start, End: start.AddDate(0, 0, 31)}

		stats := Compute(nil, w)
		assert.Len(t, stats.ByTimeBucket, 31)
		assert.Contains(t, stats.ByTimeBucket, "2024-05-31")
	})
}

func TestHeatmap(t *testing.T) {
	defects := []domain.Defect{
		defect(10, 20, domain.TypePothole, domain.SeverityLow, testNow),
		defect(11, 21, domain.TypeCrack, domain.SeverityCritical, testNow),
	}

	points, err := Heatmap(defects, Filter{})
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, 0.5, points[0].Weight)
	assert.Equal(t, 2.0, points[1].Weight)
	assert.Equal(t, domain.TypeCrack, points[1].Type)
	assert.Equal(t, domain.Coordinate{Latitude: 11, Longitude: 21}, points[1].Coordinate)
}

func TestBuildReport(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	defer domain.SetClock(nil)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	w := DayWindow(date)
	defects := []domain.Defect{
		defect(12.9716, 77.5946, domain.TypePothole, domain.SeverityCritical, date.Add(2*time.Hour)),
		defect(12.9716, 77.5946, domain.TypePothole, domain.SeverityCritical, date.Add(3*time.Hour)),
		defect(12.9000, 77.6000, domain.TypeCrack, domain.SeverityLow, date.Add(4*time.Hour)),
		defect(12.9716, 77.5946, domain.TypePothole, domain.SeverityCritical, date.AddDate(0, 0, 2)), // outside window
	}

	report := BuildReport(defects, w, "2024-05-01")

	assert.Equal(t, "2024-05-01", report.Date)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, 3, report.Statistics.TotalCount)
	require.Len(t, report.CriticalCells, 1)
	assert.Equal(t, 2, report.CriticalCells[0].Count)

	// Idempotent: same input, same report.
	again := BuildReport(defects, w, "2024-05-01")
	assert.Equal(t, report, again)
}
