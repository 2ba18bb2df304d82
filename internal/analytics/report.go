package analytics

import (
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// criticalCellLimit caps the critical-area list in periodic reports.
const criticalCellLimit = 10

// Report is the durable output of a periodic aggregation run. Date labels the
// window ("2024-05-01" for daily runs, "2024-05" or "2024" for longer ones).
type Report struct {
	Date          string        `json:"date"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Statistics    Statistics    `json:"statistics"`
	CriticalCells []HotspotCell `json:"critical_cells"`
}

// BuildReport rolls up the defects inside the window and locates the grid
// cells with the most critical-severity reports.
func BuildReport(defects []domain.Defect, w Window, date string) Report {
	inWindow := make([]domain.Defect, 0, len(defects))
	for _, d := range defects {
		if w.Contains(d.ReportedAt) {
			inWindow = append(inWindow, d)
		}
	}

	critical := domain.SeverityCritical
	// Limit ≥ 1 and a bare severity filter: Hotspots cannot fail here.
	cells, _ := Hotspots(inWindow, criticalCellLimit, Filter{Severity: &critical})

	return Report{
		Date:          date,
		GeneratedAt:   domain.Now().UTC(),
		Statistics:    Compute(inWindow, w),
		CriticalCells: cells,
	}
}
