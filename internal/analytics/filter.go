package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// ErrOutOfRange marks a query parameter outside its declared bounds. It is
// returned before any data is touched; callers map it to a client error.
var ErrOutOfRange = errors.New("parameter out of range")

// Filter narrows a defect snapshot. All fields are optional; a zero Filter
// passes everything. The same filter semantics apply to density, hotspot and
// heatmap queries.
type Filter struct {
	Type     *domain.DefectType
	Severity *domain.Severity
	Days     *int // keep only defects reported within the last N days
}

func (f Filter) validate() error {
	if f.Days != nil && *f.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d: %w", *f.Days, ErrOutOfRange)
	}
	return nil
}

// apply returns the defects matching the filter, preserving input order.
// The day cutoff is now − N days, inclusive of the boundary instant.
func (f Filter) apply(defects []domain.Defect) []domain.Defect {
	var cutoff time.Time
	if f.Days != nil {
		cutoff = domain.Now().AddDate(0, 0, -*f.Days)
	}

	matched := make([]domain.Defect, 0, len(defects))
	for _, d := range defects {
		if f.Type != nil && d.Type != *f.Type {
			continue
		}
		if f.Severity != nil && d.Severity != *f.Severity {
			continue
		}
		if f.Days != nil && d.ReportedAt.Before(cutoff) {
			continue
		}
		matched = append(matched, d)
	}
	return matched
}
