package analytics

import (
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// Window is a half-open time interval [Start, End) over reported_at.
type Window struct {
	Start time.Time
	End   time.Time
}

// YearWindow covers the given calendar year in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// DayWindow covers the UTC calendar day containing date.
func DayWindow(date time.Time) Window {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// daily windows use day buckets; anything longer uses month buckets.
const maxDailyBucketSpan = 31 * 24 * time.Hour

// Statistics is a time-windowed rollup. Every defect type, severity level and
// time bucket inside the window is present as a key, zero counts included —
// consumers rely on the key set being stable.
type Statistics struct {
	TotalCount   int                       `json:"total_count"`
	ByType       map[domain.DefectType]int `json:"by_type"`
	BySeverity   map[domain.Severity]int   `json:"by_severity"`
	ByTimeBucket map[string]int            `json:"by_time"`
}

// Compute aggregates the defects reported inside the window. Windows longer
// than 31 days bucket by month ("2006-01"); shorter windows bucket by day
// ("2006-01-02").
func Compute(defects []domain.Defect, w Window) Statistics {
	stats := Statistics{
		ByType:       zeroTypeCounts(),
		BySeverity:   zeroSeverityCounts(),
		ByTimeBucket: zeroBuckets(w),
	}

	layout := bucketLayout(w)
	for _, d := range defects {
		if !w.Contains(d.ReportedAt) {
			continue
		}
		stats.TotalCount++
		stats.ByType[d.Type]++
		stats.BySeverity[d.Severity]++
		stats.ByTimeBucket[d.ReportedAt.UTC().Format(layout)]++
	}
	return stats
}

func bucketLayout(w Window) string {
	if w.End.Sub(w.Start) > maxDailyBucketSpan {
		return "2006-01"
	}
	return "2006-01-02"
}

// zeroBuckets enumerates every bucket the window spans, so empty periods
// still appear in the rollup.
func zeroBuckets(w Window) map[string]int {
	buckets := make(map[string]int)
	if !w.Start.Before(w.End) {
		return buckets
	}

	if bucketLayout(w) == "2006-01" {
		cursor := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
		for cursor.Before(w.End) {
			buckets[cursor.Format("2006-01")] = 0
			cursor = cursor.AddDate(0, 1, 0)
		}
		return buckets
	}

	cursor := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	for cursor.Before(w.End) {
		buckets[cursor.Format("2006-01-02")] = 0
		cursor = cursor.AddDate(0, 0, 1)
	}
	return buckets
}
