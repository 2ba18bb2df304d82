// Package analytics answers spatial and statistical queries over road-defect
// reports.
//
// Every function here is a pure computation over an in-memory snapshot of
// defects supplied by the caller; fetching the snapshot is the store
// adapter's job. Nothing in this package holds state between calls, performs
// I/O, or mutates its input, which keeps concurrent queries safe without
// locking.
//
// # Distance
//
// Radius queries use great-circle (haversine) distance on a spherical earth
// (R = 6371 km). Planar distance on raw degrees would compress longitudes at
// high latitudes and bias results; the sphere keeps the error well under the
// grid-cell scale these queries operate at.
//
// # Hotspots
//
// Hotspot detection is grid snapping, not true clustering: latitude and
// longitude are rounded independently to three decimal places (one cell unit
// ≈ 111 m at the equator) and reports are counted per cell. Two reports a few
// meters apart can land in adjacent cells. It is a deterministic, fast
// approximation; ties on count break by ascending grid latitude, then grid
// longitude, so identical inputs always produce identical output order.
package analytics
