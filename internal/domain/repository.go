package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups for missing defects.
var ErrNotFound = errors.New("defect not found")

// BBox is a latitude/longitude bounding box filter.
type BBox struct {
	LatMin float64
	LatMax float64
	LngMin float64
	LngMax float64
}

// FilterQuery narrows a store fetch. Nil fields are not applied. Since/Until
// bound reported_at as [Since, Until).
type FilterQuery struct {
	Type     *DefectType
	Severity *Severity
	BBox     *BBox
	Since    *time.Time
	Until    *time.Time
	Skip     int
	Limit    int
}

// DefectUpdate carries the fields an accepted defect may change. Coordinates
// and reported_at are immutable after acceptance.
type DefectUpdate struct {
	Type     *DefectType
	Severity *Severity
	Notes    *string
}

// DefectStore is the persistence collaborator the engine reads from and
// writes to. PersistBatch is all-or-nothing per call; UpsertDailyStatistics
// is idempotent per date. The engine never retries store failures — it
// surfaces them to the caller.
type DefectStore interface {
	FetchByFilter(ctx context.Context, q FilterQuery) ([]Defect, error)

	// FetchByRadius returns candidates near the center using a bounding-box
	// prefilter; callers apply the geodesic distance cut.
	FetchByRadius(ctx context.Context, center Coordinate, radiusMeters float64) ([]Defect, error)

	// PersistBatch stores the defects in one transaction and returns their
	// assigned IDs in input order.
	PersistBatch(ctx context.Context, defects []Defect) ([]int64, error)

	Insert(ctx context.Context, d Defect) (Defect, error)
	GetByID(ctx context.Context, id int64) (Defect, error)
	Update(ctx context.Context, id int64, upd DefectUpdate) (Defect, error)
	Delete(ctx context.Context, id int64) error

	// UpsertDailyStatistics stores the JSON statistics blob for the date,
	// overwriting any previous row for that date.
	UpsertDailyStatistics(ctx context.Context, date time.Time, statistics []byte) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}
