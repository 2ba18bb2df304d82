package domain

import (
	"time"
)

// RawRecord is one untrusted entry from a bulk upload or vehicle report,
// decoded from a JSON object.
type RawRecord map[string]any

// RejectReason codes why a raw record was refused. The set is closed; an
// unmapped defect-type label is not in it because unmapped labels resolve to
// TypeOther instead of failing.
type RejectReason string

const (
	ReasonNone                   RejectReason = ""
	ReasonMissingField           RejectReason = "missing_field"
	ReasonInvalidTimestamp       RejectReason = "invalid_timestamp"
	ReasonInvalidCoordinateShape RejectReason = "invalid_coordinate_shape"
	ReasonInvalidCoordinateRange RejectReason = "invalid_coordinate_range"
	ReasonInvalidSeverity        RejectReason = "invalid_severity"
)

// Message returns the user-facing diagnostic for the reason.
func (r RejectReason) Message() string {
	switch r {
	case ReasonMissingField:
		return "Missing required fields"
	case ReasonInvalidTimestamp:
		return "Invalid timestamp format"
	case ReasonInvalidCoordinateShape:
		return "Coordinates must be [latitude, longitude]"
	case ReasonInvalidCoordinateRange:
		return "Invalid coordinates"
	case ReasonInvalidSeverity:
		return "Invalid severity level"
	}
	return ""
}

// Outcome is the result of validating one raw record: either an accepted
// Defect or a rejection reason. Validation is total — every input produces
// exactly one of the two, never a panic or error.
type Outcome struct {
	Defect Defect
	Reason RejectReason
}

// Accepted reports whether the record passed validation.
func (o Outcome) Accepted() bool { return o.Reason == ReasonNone }

func rejected(reason RejectReason) Outcome {
	return Outcome{Reason: reason}
}

// timestampLayouts are the accepted ISO-8601 forms. RFC3339 covers trailing
// "Z" (treated as +00:00) and explicit numeric offsets; the remaining layouts
// accept offset-less timestamps, interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp in any accepted layout,
// normalized to UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ValidateRecord normalizes one raw bulk record into a Defect or a rejection.
//
// Required fields: vehicle_id, timestamp, coordinates, defect_type. The
// timestamp must parse as ISO-8601; coordinates must be exactly a two-element
// [latitude, longitude] pair within WGS-84 bounds; severity, when present,
// must be a known level (absent defaults to medium); notes pass through
// unvalidated. ReportedAt is always the parsed timestamp — bulk records are
// never defaulted to ingestion time.
func ValidateRecord(raw RawRecord) Outcome {
	vehicleID, ok := stringField(raw, "vehicle_id")
	if !ok {
		return rejected(ReasonMissingField)
	}
	for _, key := range []string{"timestamp", "coordinates", "defect_type"} {
		if _, present := raw[key]; !present {
			return rejected(ReasonMissingField)
		}
	}

	ts, ok := raw["timestamp"].(string)
	if !ok {
		return rejected(ReasonInvalidTimestamp)
	}
	reportedAt, ok := ParseTimestamp(ts)
	if !ok {
		return rejected(ReasonInvalidTimestamp)
	}

	coord, reason := parseCoordinates(raw["coordinates"])
	if reason != ReasonNone {
		return rejected(reason)
	}

	typeLabel, ok := raw["defect_type"].(string)
	if !ok {
		return rejected(ReasonMissingField)
	}

	severity := SeverityMedium
	if v, present := raw["severity"]; present {
		label, ok := v.(string)
		if !ok {
			return rejected(ReasonInvalidSeverity)
		}
		severity, ok = ParseSeverity(label)
		if !ok {
			return rejected(ReasonInvalidSeverity)
		}
	}

	var notes *string
	if v, present := raw["notes"]; present {
		if s, ok := v.(string); ok {
			notes = &s
		}
	}

	return Outcome{Defect: Defect{
		VehicleID:  &vehicleID,
		Type:       ParseDefectType(typeLabel),
		Severity:   severity,
		Coordinate: coord,
		Notes:      notes,
		ReportedAt: reportedAt,
	}}
}

// parseCoordinates checks shape first (exactly two numeric elements), then
// WGS-84 range. Shape and range failures are distinct reason codes.
func parseCoordinates(v any) (Coordinate, RejectReason) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return Coordinate{}, ReasonInvalidCoordinateShape
	}
	lat, okLat := numeric(pair[0])
	lng, okLng := numeric(pair[1])
	if !okLat || !okLng {
		return Coordinate{}, ReasonInvalidCoordinateShape
	}
	coord := Coordinate{Latitude: lat, Longitude: lng}
	if !coord.InRange() {
		return Coordinate{}, ReasonInvalidCoordinateRange
	}
	return coord, ReasonNone
}

// numeric accepts the number representations encoding/json produces: float64
// by default, json.Number is not used here, and ints appear when records are
// built in code rather than decoded.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringField(raw RawRecord, key string) (string, bool) {
	v, present := raw[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
