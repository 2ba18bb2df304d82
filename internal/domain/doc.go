// Package domain models road-defect reports and their validation rules.
//
// # Report Sources
//
// Defects arrive three ways: manual entry through the API, single uploads
// from survey vehicles, and bulk JSON files. Machine-reported records carry a
// vehicle_id; manual reports do not. Bulk and vehicle records share one raw
// shape:
//
//	{
//	  "vehicle_id":  "veh-042",
//	  "timestamp":   "2024-01-01T00:00:00Z",
//	  "coordinates": [12.9716, 77.5946],
//	  "defect_type": "minor pothole",
//	  "severity":    "high",          // optional, defaults to medium
//	  "notes":       "near exit 4"    // optional, unvalidated
//	}
//
// # Validation Rules
//
// [ValidateRecord] checks, in order: required-field presence, ISO-8601
// timestamp (a trailing "Z" means UTC), coordinate shape (exactly
// [latitude, longitude]), coordinate range (WGS-84 bounds), and severity.
// Each failure maps to one [RejectReason]; validation never aborts a sibling
// record and never panics — failure is returned as data.
//
// Defect-type labels are matched case-insensitively against a fixed synonym
// table ("minor pothole" → pothole, "damaged pavement" → damaged_pavement,
// and so on). A label the table does not know resolves to [TypeOther]; it is
// the defined default, not a rejection.
//
// # Severity
//
// The four-level scale (low, medium, high, critical) is ordered and closed.
// Each level carries a fixed heatmap weight (0.5, 1.0, 1.5, 2.0) consumed by
// downstream visualization.
package domain
