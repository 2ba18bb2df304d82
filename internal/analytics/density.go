package analytics

import (
	"fmt"
	"math"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// MaxRadiusMeters bounds radius queries; requests beyond city scale are
// rejected rather than scanned.
const MaxRadiusMeters = 50000

// earthRadiusMeters is the mean earth radius of the spherical model.
const earthRadiusMeters = 6371000

// DensityResult is the outcome of a radius density search: the defects inside
// the radius and their counts. ByType and BySeverity carry an entry for every
// enumerated category, zero included.
type DensityResult struct {
	Center       domain.Coordinate         `json:"center"`
	RadiusMeters float64                   `json:"radius_meters"`
	TotalCount   int                       `json:"total_count"`
	ByType       map[domain.DefectType]int `json:"by_type"`
	BySeverity   map[domain.Severity]int   `json:"by_severity"`
	Defects      []domain.Defect           `json:"defects"`
}

// Density returns every defect whose great-circle distance to center is at
// most radiusMeters (boundary inclusive), grouped by type and severity.
// Radius must lie in (0, MaxRadiusMeters]; the center must be a valid
// coordinate.
func Density(defects []domain.Defect, center domain.Coordinate, radiusMeters float64, f Filter) (DensityResult, error) {
	if radiusMeters <= 0 || radiusMeters > MaxRadiusMeters {
		return DensityResult{}, fmt.Errorf("radius %.0fm outside (0, %d]: %w", radiusMeters, MaxRadiusMeters, ErrOutOfRange)
	}
	if !center.InRange() {
		return DensityResult{}, fmt.Errorf("center %v outside WGS-84 bounds: %w", center, ErrOutOfRange)
	}
	if err := f.validate(); err != nil {
		return DensityResult{}, err
	}

	result := DensityResult{
		Center:       center,
		RadiusMeters: radiusMeters,
		ByType:       zeroTypeCounts(),
		BySeverity:   zeroSeverityCounts(),
		Defects:      make([]domain.Defect, 0),
	}

	for _, d := range f.apply(defects) {
		if haversineMeters(center, d.Coordinate) > radiusMeters {
			continue
		}
		result.TotalCount++
		result.ByType[d.Type]++
		result.BySeverity[d.Severity]++
		result.Defects = append(result.Defects, d)
	}
	return result, nil
}

// haversineMeters computes the great-circle distance between two coordinates
// on a spherical earth.
func haversineMeters(a, b domain.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func zeroTypeCounts() map[domain.DefectType]int {
	counts := make(map[domain.DefectType]int, len(domain.DefectTypes()))
	for _, t := range domain.DefectTypes() {
		counts[t] = 0
	}
	return counts
}

func zeroSeverityCounts() map[domain.Severity]int {
	counts := make(map[domain.Severity]int, len(domain.SeverityLevels()))
	for _, s := range domain.SeverityLevels() {
		counts[s] = 0
	}
	return counts
}
