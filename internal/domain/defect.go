package domain

import (
	"strings"
	"time"
)

// DefectType classifies a road defect. The set is closed: every value stored
// or aggregated is one of the constants below.
type DefectType string

const (
	TypePothole         DefectType = "pothole"
	TypeCrack           DefectType = "crack"
	TypeDamagedPavement DefectType = "damaged_pavement"
	TypeWaterLogging    DefectType = "water_logging"
	TypeMissingManhole  DefectType = "missing_manhole"
	TypeOther           DefectType = "other"
)

// DefectTypes returns all defect types in a fixed order. Aggregations iterate
// this list so that zero-count categories still appear in their output.
func DefectTypes() []DefectType {
	return []DefectType{
		TypePothole,
		TypeCrack,
		TypeDamagedPavement,
		TypeWaterLogging,
		TypeMissingManhole,
		TypeOther,
	}
}

// defectTypeSynonyms maps external report labels (lowercased) to canonical
// defect types. Labels not in this table resolve to TypeOther; an unmapped
// label is never a validation failure.
var defectTypeSynonyms = map[string]DefectType{
	"minor pothole":    TypePothole,
	"pothole":          TypePothole,
	"crack":            TypeCrack,
	"damaged pavement": TypeDamagedPavement,
	"damaged_pavement": TypeDamagedPavement,
	"water logging":    TypeWaterLogging,
	"water_logging":    TypeWaterLogging,
	"missing manhole":  TypeMissingManhole,
	"missing_manhole":  TypeMissingManhole,
}

// ParseDefectType resolves an external defect label case-insensitively.
// Unknown labels map to TypeOther by definition.
func ParseDefectType(s string) DefectType {
	if t, ok := defectTypeSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return TypeOther
}

// Severity is the ordered defect severity scale. The ordering (low < medium <
// high < critical) drives heatmap weighting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityLevels returns all severity levels from low to critical.
func SeverityLevels() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// severityWeights is the fixed severity→intensity table used for heatmap
// points. Weights are consumed by downstream visualization, not recomputed.
var severityWeights = map[Severity]float64{
	SeverityLow:      0.5,
	SeverityMedium:   1.0,
	SeverityHigh:     1.5,
	SeverityCritical: 2.0,
}

// Weight returns the heatmap intensity for the severity.
func (s Severity) Weight() float64 {
	return severityWeights[s]
}

// ParseSeverity parses a severity label case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	}
	return "", false
}

// Coordinate is a WGS-84 latitude/longitude pair.
// Latitude ∈ [-90, 90], longitude ∈ [-180, 180]; enforced at validation time.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// InRange reports whether the coordinate lies within WGS-84 bounds.
func (c Coordinate) InRange() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Defect is a single road-defect report. The ID is assigned by the store on
// acceptance and is zero until then. VehicleID is set for machine-reported
// defects only. Analytics never mutate a Defect; all derived results are
// separate values.
type Defect struct {
	ID         int64      `json:"id"`
	VehicleID  *string    `json:"vehicle_id,omitempty"`
	Type       DefectType `json:"defect_type"`
	Severity   Severity   `json:"severity"`
	Coordinate Coordinate `json:"coordinate"`
	Notes      *string    `json:"notes,omitempty"`
	ReportedAt time.Time  `json:"reported_at"`
}
