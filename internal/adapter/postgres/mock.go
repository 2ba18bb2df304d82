package postgres

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// Mock is an in-memory domain.DefectStore used when no database is configured
// and in tests. Same filter semantics as the real store, no persistence.
type Mock struct {
	mu     sync.Mutex
	nextID int64

	defects    map[int64]domain.Defect
	statistics map[string][]byte // keyed by YYYY-MM-DD
}

// NewMock creates an empty in-memory store.
func NewMock() *Mock {
	return &Mock{
		defects:    make(map[int64]domain.Defect),
		statistics: make(map[string][]byte),
	}
}

func (m *Mock) FetchByFilter(_ context.Context, q domain.FilterQuery) ([]domain.Defect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Defect
	for _, d := range m.defects {
		if q.Type != nil && d.Type != *q.Type {
			continue
		}
		if q.Severity != nil && d.Severity != *q.Severity {
			continue
		}
		if q.BBox != nil {
			b := *q.BBox
			c := d.Coordinate
			if c.Latitude < b.LatMin || c.Latitude > b.LatMax ||
				c.Longitude < b.LngMin || c.Longitude > b.LngMax {
				continue
			}
		}
		if q.Since != nil && d.ReportedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && !d.ReportedAt.Before(*q.Until) {
			continue
		}
		matched = append(matched, d)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReportedAt.Equal(matched[j].ReportedAt) {
			return matched[i].ReportedAt.After(matched[j].ReportedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Mock) FetchByRadius(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Defect, error) {
	latDelta := radiusMeters / metersPerDegree
	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta := radiusMeters / (metersPerDegree * cosLat)
	return m.FetchByFilter(ctx, domain.FilterQuery{BBox: &domain.BBox{
		LatMin: center.Latitude - latDelta,
		LatMax: center.Latitude + latDelta,
		LngMin: center.Longitude - lngDelta,
		LngMax: center.Longitude + lngDelta,
	}})
}

func (m *Mock) PersistBatch(_ context.Context, defects []domain.Defect) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, len(defects))
	for i, d := range defects {
		m.nextID++
		d.ID = m.nextID
		m.defects[d.ID] = d
		ids[i] = d.ID
	}
	return ids, nil
}

func (m *Mock) Insert(_ context.Context, d domain.Defect) (domain.Defect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	d.ID = m.nextID
	m.defects[d.ID] = d
	return d, nil
}

func (m *Mock) GetByID(_ context.Context, id int64) (domain.Defect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.defects[id]
	if !ok {
		return domain.Defect{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *Mock) Update(_ context.Context, id int64, upd domain.DefectUpdate) (domain.Defect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.defects[id]
	if !ok {
		return domain.Defect{}, domain.ErrNotFound
	}
	if upd.Type != nil {
		d.Type = *upd.Type
	}
	if upd.Severity != nil {
		d.Severity = *upd.Severity
	}
	if upd.Notes != nil {
		d.Notes = upd.Notes
	}
	m.defects[id] = d
	return d, nil
}

func (m *Mock) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.defects, id)
	return nil
}

func (m *Mock) UpsertDailyStatistics(_ context.Context, date time.Time, statistics []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statistics[date.UTC().Format("2006-01-02")] = statistics
	return nil
}

// DailyStatistics returns the stored blob for a date, for test assertions.
func (m *Mock) DailyStatistics(date time.Time) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.statistics[date.UTC().Format("2006-01-02")]
	return blob, ok
}

// StatisticsRowCount returns the number of stored statistics rows.
func (m *Mock) StatisticsRowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.statistics)
}

func (m *Mock) Ping(context.Context) error { return nil }
