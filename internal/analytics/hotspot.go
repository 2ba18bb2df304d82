package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// CellRadiusMeters approximates the extent of one grid cell: 0.001 degree of
// latitude ≈ 111 meters. Constant because the grid precision is constant.
const CellRadiusMeters = 111

// HotspotCell is one occupied grid cell, identified by its snapped
// coordinates.
type HotspotCell struct {
	GridLat            float64 `json:"lat"`
	GridLng            float64 `json:"lng"`
	Count              int     `json:"count"`
	ApproxRadiusMeters float64 `json:"radius"`
}

type gridKey struct {
	lat float64
	lng float64
}

// snap rounds a coordinate component to the 3-decimal hotspot grid.
func snap(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Hotspots groups defects into 3-decimal grid cells and returns the top
// limit cells by count. Ordering is count descending, ties broken by
// ascending grid latitude then longitude, so the result is a pure function
// of the defect multiset regardless of input order.
func Hotspots(defects []domain.Defect, limit int, f Filter) ([]HotspotCell, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1, got %d: %w", limit, ErrOutOfRange)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	counts := make(map[gridKey]int)
	for _, d := range f.apply(defects) {
		key := gridKey{lat: snap(d.Coordinate.Latitude), lng: snap(d.Coordinate.Longitude)}
		counts[key]++
	}

	cells := make([]HotspotCell, 0, len(counts))
	for key, count := range counts {
		cells = append(cells, HotspotCell{
			GridLat:            key.lat,
			GridLng:            key.lng,
			Count:              count,
			ApproxRadiusMeters: CellRadiusMeters,
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		if cells[i].GridLat != cells[j].GridLat {
			return cells[i].GridLat < cells[j].GridLat
		}
		return cells[i].GridLng < cells[j].GridLng
	})

	if len(cells) > limit {
		cells = cells[:limit]
	}
	return cells, nil
}
