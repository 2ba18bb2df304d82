package analytics

import (
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// HeatmapPoint is one weighted point for map visualization. Weight comes from
// the fixed severity table; consumers use it as-is.
type HeatmapPoint struct {
	Coordinate domain.Coordinate `json:"coordinate"`
	Weight     float64           `json:"weight"`
	Type       domain.DefectType `json:"type"`
	ReportedAt time.Time         `json:"reported_at"`
}

// Heatmap maps each filtered defect to a severity-weighted point, preserving
// snapshot order.
func Heatmap(defects []domain.Defect, f Filter) ([]HeatmapPoint, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	matched := f.apply(defects)
	points := make([]HeatmapPoint, 0, len(matched))
	for _, d := range matched {
		points = append(points, HeatmapPoint{
			Coordinate: d.Coordinate,
			Weight:     d.Severity.Weight(),
			Type:       d.Type,
			ReportedAt: d.ReportedAt,
		})
	}
	return points, nil
}
